package prompt

import (
	"sort"

	"github.com/godilite/rubric-grader/internal/llm"
	"github.com/godilite/rubric-grader/internal/models"
)

// ExtractionSchema is the strict JSON schema for rubric extraction. Every
// property is required and nullable fields use a null union, as strict
// decoding demands.
func ExtractionSchema() *llm.Schema {
	types := make([]any, len(models.RubricTypes))
	for i, t := range models.RubricTypes {
		types[i] = string(t)
	}

	level := object(map[string]any{
		"label":       map[string]any{"type": "string"},
		"description": map[string]any{"type": []any{"string", "null"}},
		"score":       map[string]any{"type": []any{"number", "null"}},
	})

	criterion := object(map[string]any{
		"name":               map[string]any{"type": "string"},
		"description":        map[string]any{"type": []any{"string", "null"}},
		"max_score":          map[string]any{"type": "number"},
		"item_type":          map[string]any{"type": "string", "enum": []any{"criterion", "checklist", "holistic"}},
		"weight":             map[string]any{"type": []any{"number", "null"}},
		"checklist_required": map[string]any{"type": []any{"boolean", "null"}},
		"keywords":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"performance_levels": map[string]any{"type": "array", "items": level},
	})

	return &llm.Schema{
		Name:        "rubric_extraction",
		Description: "Structured rubric with its criteria",
		Definition: object(map[string]any{
			"title":           map[string]any{"type": "string"},
			"summary":         map[string]any{"type": "string"},
			"max_total_score": map[string]any{"type": "number"},
			"rubric_type":     map[string]any{"type": "string", "enum": types},
			"criteria":        map[string]any{"type": "array", "items": criterion},
		}),
	}
}

// ScoringSchema is the strict JSON schema for one criterion evaluation.
func ScoringSchema() *llm.Schema {
	return &llm.Schema{
		Name:        "criterion_score",
		Description: "Score, justification and evidence for one rubric criterion",
		Definition: object(map[string]any{
			"evaluation": object(map[string]any{
				"score":         map[string]any{"type": "number"},
				"justification": map[string]any{"type": "string"},
				"evidence":      map[string]any{"type": "string"},
			}),
		}),
	}
}

// LearnerReportSchema is the strict JSON schema for a learner report.
func LearnerReportSchema() *llm.Schema {
	list := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return &llm.Schema{
		Name:        "learner_report",
		Description: "Strengths, growth opportunities and suggestions for a learner",
		Definition: object(map[string]any{
			"top_strengths":          list,
			"growth_opportunities":   list,
			"actionable_suggestions": list,
		}),
	}
}

// Specs returns the per-purpose system instructions and schemas used to build
// the client registry.
func Specs() map[llm.Purpose]llm.PurposeSpec {
	return map[llm.Purpose]llm.PurposeSpec{
		llm.PurposeExtraction: {System: ExtractionSystem, Schema: ExtractionSchema()},
		llm.PurposeScoring:    {System: ScoringSystem, Schema: ScoringSchema()},
		llm.PurposeNarrative:  {System: NarrativeSystem, Schema: LearnerReportSchema()},
	}
}

func object(properties map[string]any) map[string]any {
	required := make([]any, 0, len(properties))
	for _, name := range sortedKeys(properties) {
		required = append(required, name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
