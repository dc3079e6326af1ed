package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by storage when a rubric or evaluation id is unknown.
var ErrNotFound = errors.New("not found")

// CriterionResult is the outcome of scoring one criterion against a transcript.
type CriterionResult struct {
	CriterionID   string  `json:"criterion_id" yaml:"criterion_id"`
	Name          string  `json:"name" yaml:"name"`
	Description   string  `json:"description,omitempty" yaml:"description,omitempty"`
	Score         float64 `json:"score" yaml:"score"`
	MaxScore      float64 `json:"max_score" yaml:"max_score"`
	Justification string  `json:"justification" yaml:"justification"`
	Evidence      string  `json:"evidence" yaml:"evidence"`
	Prompt        string  `json:"prompt,omitempty" yaml:"-"`

	Usage TokenUsage `json:"-" yaml:"-"`
}

// Ratio is Score/MaxScore, or 0 when MaxScore is not positive.
func (r CriterionResult) Ratio() float64 {
	if r.MaxScore <= 0 {
		return 0
	}
	return r.Score / r.MaxScore
}

type PerformanceBand string

const (
	BandOutstanding  PerformanceBand = "Outstanding"
	BandStrong       PerformanceBand = "Strong"
	BandCompetent    PerformanceBand = "Competent"
	BandDeveloping   PerformanceBand = "Developing"
	BandNeedsSupport PerformanceBand = "Needs Support"
)

type AggregateReport struct {
	TotalScore          float64         `json:"total_score" yaml:"total_score"`
	MaxTotalScore       float64         `json:"max_total_score" yaml:"max_total_score"`
	Percent             float64         `json:"percent" yaml:"percent"`
	PerformanceBand     PerformanceBand `json:"performance_band" yaml:"performance_band"`
	KeyStrengths        []string        `json:"key_strengths" yaml:"key_strengths"`
	AreasForDevelopment []string        `json:"areas_for_development" yaml:"areas_for_development"`
	Summary             string          `json:"summary" yaml:"summary"`
	NarrativeFeedback   string          `json:"narrative_feedback" yaml:"narrative_feedback"`
}

type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int64 `json:"output_tokens" yaml:"output_tokens"`
}

// Add returns the element-wise sum of u and other.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Evaluation is a persisted scoring run of one transcript against one rubric.
type Evaluation struct {
	ID                string            `json:"id" yaml:"id"`
	RubricID          string            `json:"rubric_id,omitempty" yaml:"rubric_id,omitempty"`
	RubricTitle       string            `json:"rubric_title" yaml:"rubric_title"`
	RubricSummary     string            `json:"rubric_summary,omitempty" yaml:"rubric_summary,omitempty"`
	Provider          string            `json:"provider" yaml:"provider"`
	StudentIdentifier string            `json:"student_identifier,omitempty" yaml:"student_identifier,omitempty"`
	Transcript        string            `json:"transcript" yaml:"-"`
	Results           []CriterionResult `json:"criterion_scores" yaml:"criterion_scores"`
	Report            AggregateReport   `json:"report" yaml:"report"`
	Usage             TokenUsage        `json:"usage" yaml:"usage"`
	CreatedAt         time.Time         `json:"created_at" yaml:"created_at"`
}

// EvaluationSummary is the list view of an evaluation.
type EvaluationSummary struct {
	ID              string          `json:"id"`
	RubricTitle     string          `json:"rubric_title"`
	TotalScore      float64         `json:"total_score"`
	MaxTotalScore   float64         `json:"max_total_score"`
	PerformanceBand PerformanceBand `json:"performance_band"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LearnerReport is narrative, student-facing feedback for an evaluation.
type LearnerReport struct {
	TopStrengths          []string `json:"top_strengths" yaml:"top_strengths"`
	GrowthOpportunities   []string `json:"growth_opportunities" yaml:"growth_opportunities"`
	ActionableSuggestions []string `json:"actionable_suggestions" yaml:"actionable_suggestions"`
}
