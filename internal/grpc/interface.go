package grpc

import (
	"context"
	"time"

	"github.com/godilite/rubric-grader/internal/models"
	"github.com/godilite/rubric-grader/internal/service"
)

// Cacher defines the interface for cache operations.
type Cacher interface {
	Close() error
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// GradingService is the pipeline the handlers expose.
type GradingService interface {
	ExtractRubric(ctx context.Context, provider, rawText string) (models.StructuredRubric, error)
	GetRubric(ctx context.Context, id string) (models.StructuredRubric, error)
	Evaluate(ctx context.Context, req service.EvaluateRequest) (models.Evaluation, error)
	GetEvaluation(ctx context.Context, id string) (models.Evaluation, error)
	ListEvaluations(ctx context.Context, limit int) ([]models.EvaluationSummary, error)
	GenerateLearnerReport(ctx context.Context, provider, evaluationID string) (models.LearnerReport, error)
	SaveHumanGrading(ctx context.Context, grading models.HumanGrading) (models.HumanGrading, error)
	CompareWithHuman(ctx context.Context, evaluationID string) (models.HumanComparison, error)
	DeleteHumanGrading(ctx context.Context, evaluationID string) error
}
