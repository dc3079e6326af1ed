package models

import "time"

// HumanCriterionScore is one criterion as scored by a human grader.
type HumanCriterionScore struct {
	Name     string  `json:"name" yaml:"name"`
	Score    float64 `json:"score" yaml:"score"`
	MaxScore float64 `json:"max_score" yaml:"max_score"`
	Feedback string  `json:"feedback,omitempty" yaml:"feedback,omitempty"`
}

// HumanGrading is a reference grading of an evaluated transcript. An
// evaluation has at most one; saving a new one replaces it.
type HumanGrading struct {
	EvaluationID  string                `json:"evaluation_id" yaml:"evaluation_id"`
	GraderName    string                `json:"grader_name,omitempty" yaml:"grader_name,omitempty"`
	Notes         string                `json:"notes,omitempty" yaml:"notes,omitempty"`
	TotalScore    float64               `json:"total_score" yaml:"total_score"`
	MaxTotalScore float64               `json:"max_total_score" yaml:"max_total_score"`
	Scores        []HumanCriterionScore `json:"criterion_scores" yaml:"criterion_scores"`
	CreatedAt     time.Time             `json:"created_at" yaml:"created_at"`
}

// CriterionComparison lines up the AI and human score for one criterion name.
// Sides missing from either grading are nil, and so is Difference.
type CriterionComparison struct {
	Name          string   `json:"name" yaml:"name"`
	AIScore       *float64 `json:"ai_score" yaml:"ai_score"`
	HumanScore    *float64 `json:"human_score" yaml:"human_score"`
	AIMaxScore    *float64 `json:"ai_max_score" yaml:"ai_max_score"`
	HumanMaxScore *float64 `json:"human_max_score" yaml:"human_max_score"`
	Difference    *float64 `json:"difference" yaml:"difference"`
	HumanFeedback string   `json:"human_feedback,omitempty" yaml:"human_feedback,omitempty"`
}

// HumanComparison compares an evaluation with its human grading. Differences
// are AI minus human; the means cover matched criteria only.
type HumanComparison struct {
	EvaluationID           string                `json:"evaluation_id" yaml:"evaluation_id"`
	RubricTitle            string                `json:"rubric_title" yaml:"rubric_title"`
	GraderName             string                `json:"grader_name,omitempty" yaml:"grader_name,omitempty"`
	Notes                  string                `json:"notes,omitempty" yaml:"notes,omitempty"`
	AITotalScore           float64               `json:"ai_total_score" yaml:"ai_total_score"`
	HumanTotalScore        float64               `json:"human_total_score" yaml:"human_total_score"`
	AIMaxTotalScore        float64               `json:"ai_max_total_score" yaml:"ai_max_total_score"`
	HumanMaxTotalScore     float64               `json:"human_max_total_score" yaml:"human_max_total_score"`
	TotalDifference        float64               `json:"total_difference" yaml:"total_difference"`
	MeanDifference         float64               `json:"mean_difference" yaml:"mean_difference"`
	MeanAbsoluteDifference float64               `json:"mean_absolute_difference" yaml:"mean_absolute_difference"`
	MatchedCriteria        int                   `json:"matched_criteria" yaml:"matched_criteria"`
	Criteria               []CriterionComparison `json:"criterion_comparisons" yaml:"criterion_comparisons"`
	GradedAt               time.Time             `json:"graded_at" yaml:"graded_at"`
}
