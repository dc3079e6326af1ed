package service

import (
	"context"

	"github.com/godilite/rubric-grader/internal/llm"
	"github.com/godilite/rubric-grader/internal/models"
)

// ClientResolver hands out purpose-bound LLM clients. *llm.Registry
// satisfies it.
type ClientResolver interface {
	Resolve(provider string, purpose llm.Purpose) (llm.Completer, error)
}

// EvaluationRepository defines the persistence operations used by the
// evaluation service.
type EvaluationRepository interface {
	SaveRubric(ctx context.Context, rubric models.StructuredRubric) error
	GetRubric(ctx context.Context, id string) (models.StructuredRubric, error)
	FindRubricBySource(ctx context.Context, sourceSHA256 string) (models.StructuredRubric, error)
	SaveEvaluation(ctx context.Context, evaluation models.Evaluation) error
	GetEvaluation(ctx context.Context, id string) (models.Evaluation, error)
	ListEvaluations(ctx context.Context, limit int) ([]models.EvaluationSummary, error)
	SaveHumanGrading(ctx context.Context, grading models.HumanGrading) error
	GetHumanGrading(ctx context.Context, evaluationID string) (models.HumanGrading, error)
	DeleteHumanGrading(ctx context.Context, evaluationID string) error
}

// CriterionScorer scores a single criterion.
type CriterionScorer interface {
	Score(ctx context.Context, provider string, rubricType models.RubricType, criterion models.RubricCriterion, transcript string) (models.CriterionResult, error)
}

// RubricExtractor turns raw rubric text into a structured rubric.
type RubricExtractor interface {
	Extract(ctx context.Context, provider, rawText string) (models.StructuredRubric, error)
}

// BatchScorer scores a whole rubric against a transcript.
type BatchScorer interface {
	ScoreAll(ctx context.Context, provider string, rubricType models.RubricType, criteria []models.RubricCriterion, transcript string, batchSize int) ([]models.CriterionResult, error)
}

// LearnerReporter writes narrative feedback for a finished evaluation.
type LearnerReporter interface {
	Generate(ctx context.Context, provider string, evaluation models.Evaluation) (models.LearnerReport, error)
}
