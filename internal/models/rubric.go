package models

import "strings"

// RubricType classifies how a rubric is meant to be applied.
type RubricType string

const (
	RubricTypeAnalytic    RubricType = "analytic"
	RubricTypeHolistic    RubricType = "holistic"
	RubricTypeSinglePoint RubricType = "single_point"
	RubricTypeChecklist   RubricType = "checklist"
	RubricTypeHybrid      RubricType = "hybrid"
)

// RubricTypes lists every recognised rubric type in schema order.
var RubricTypes = []RubricType{
	RubricTypeAnalytic,
	RubricTypeHolistic,
	RubricTypeSinglePoint,
	RubricTypeChecklist,
	RubricTypeHybrid,
}

// ParseRubricType normalizes a model-supplied rubric type, falling back to
// analytic for anything unrecognised.
func ParseRubricType(raw string) RubricType {
	normalized := RubricType(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range RubricTypes {
		if t == normalized {
			return t
		}
	}
	return RubricTypeAnalytic
}

// ItemType classifies a single rubric criterion.
type ItemType string

const (
	ItemTypeCriterion ItemType = "criterion"
	ItemTypeChecklist ItemType = "checklist"
	ItemTypeHolistic  ItemType = "holistic"
)

// ParseItemType normalizes an item type, defaulting to criterion.
func ParseItemType(raw string) ItemType {
	switch t := ItemType(strings.ToLower(strings.TrimSpace(raw))); t {
	case ItemTypeChecklist, ItemTypeHolistic:
		return t
	default:
		return ItemTypeCriterion
	}
}

// DefaultMaxScore is used when a criterion carries no usable maximum.
const DefaultMaxScore = 1.0

type PerformanceLevel struct {
	Key         string   `json:"level_key" yaml:"level_key"`
	Label       string   `json:"label" yaml:"label"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Score       *float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

type CriterionMetadata struct {
	PerformanceLevels []PerformanceLevel `json:"performance_levels,omitempty" yaml:"performance_levels,omitempty"`
	ChecklistRequired *bool              `json:"checklist_required,omitempty" yaml:"checklist_required,omitempty"`
	Keywords          []string           `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// RubricCriterion is one independently scored dimension of a rubric.
// MaxScore is always positive.
type RubricCriterion struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	ItemType    ItemType          `json:"item_type" yaml:"item_type"`
	MaxScore    float64           `json:"max_score" yaml:"max_score"`
	Weight      *float64          `json:"weight,omitempty" yaml:"weight,omitempty"`
	Metadata    CriterionMetadata `json:"metadata" yaml:"metadata"`
}

// StructuredRubric is the typed result of rubric extraction. It always holds
// at least one criterion.
type StructuredRubric struct {
	ID            string             `json:"id,omitempty" yaml:"id,omitempty"`
	Title         string             `json:"title" yaml:"title"`
	Summary       string             `json:"summary" yaml:"summary"`
	RubricType    RubricType         `json:"rubric_type" yaml:"rubric_type"`
	MaxTotalScore float64            `json:"max_total_score" yaml:"max_total_score"`
	Criteria      []RubricCriterion  `json:"criteria" yaml:"criteria"`
	Levels        []PerformanceLevel `json:"levels,omitempty" yaml:"levels,omitempty"`
	SourceSHA256  string             `json:"source_sha256,omitempty" yaml:"source_sha256,omitempty"`
}
