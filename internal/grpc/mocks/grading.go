package mocks

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/godilite/rubric-grader/internal/models"
	"github.com/godilite/rubric-grader/internal/service"
)

// MockGradingService is a mock implementation of the GradingService interface
// for testing the handler layer.
type MockGradingService struct {
	ExtractRubricFunc         func(ctx context.Context, provider, rawText string) (models.StructuredRubric, error)
	GetRubricFunc             func(ctx context.Context, id string) (models.StructuredRubric, error)
	EvaluateFunc              func(ctx context.Context, req service.EvaluateRequest) (models.Evaluation, error)
	GetEvaluationFunc         func(ctx context.Context, id string) (models.Evaluation, error)
	ListEvaluationsFunc       func(ctx context.Context, limit int) ([]models.EvaluationSummary, error)
	GenerateLearnerReportFunc func(ctx context.Context, provider, evaluationID string) (models.LearnerReport, error)
	SaveHumanGradingFunc      func(ctx context.Context, grading models.HumanGrading) (models.HumanGrading, error)
	CompareWithHumanFunc      func(ctx context.Context, evaluationID string) (models.HumanComparison, error)
	DeleteHumanGradingFunc    func(ctx context.Context, evaluationID string) error

	ExtractCalls atomic.Int32
}

func (m *MockGradingService) ExtractRubric(ctx context.Context, provider, rawText string) (models.StructuredRubric, error) {
	m.ExtractCalls.Add(1)
	if m.ExtractRubricFunc != nil {
		return m.ExtractRubricFunc(ctx, provider, rawText)
	}
	return models.StructuredRubric{}, errors.New("ExtractRubricFunc not implemented")
}

func (m *MockGradingService) GetRubric(ctx context.Context, id string) (models.StructuredRubric, error) {
	if m.GetRubricFunc != nil {
		return m.GetRubricFunc(ctx, id)
	}
	return models.StructuredRubric{}, errors.New("GetRubricFunc not implemented")
}

func (m *MockGradingService) Evaluate(ctx context.Context, req service.EvaluateRequest) (models.Evaluation, error) {
	if m.EvaluateFunc != nil {
		return m.EvaluateFunc(ctx, req)
	}
	return models.Evaluation{}, errors.New("EvaluateFunc not implemented")
}

func (m *MockGradingService) GetEvaluation(ctx context.Context, id string) (models.Evaluation, error) {
	if m.GetEvaluationFunc != nil {
		return m.GetEvaluationFunc(ctx, id)
	}
	return models.Evaluation{}, errors.New("GetEvaluationFunc not implemented")
}

func (m *MockGradingService) ListEvaluations(ctx context.Context, limit int) ([]models.EvaluationSummary, error) {
	if m.ListEvaluationsFunc != nil {
		return m.ListEvaluationsFunc(ctx, limit)
	}
	return nil, errors.New("ListEvaluationsFunc not implemented")
}

func (m *MockGradingService) GenerateLearnerReport(ctx context.Context, provider, evaluationID string) (models.LearnerReport, error) {
	if m.GenerateLearnerReportFunc != nil {
		return m.GenerateLearnerReportFunc(ctx, provider, evaluationID)
	}
	return models.LearnerReport{}, errors.New("GenerateLearnerReportFunc not implemented")
}

func (m *MockGradingService) SaveHumanGrading(ctx context.Context, grading models.HumanGrading) (models.HumanGrading, error) {
	if m.SaveHumanGradingFunc != nil {
		return m.SaveHumanGradingFunc(ctx, grading)
	}
	return models.HumanGrading{}, errors.New("SaveHumanGradingFunc not implemented")
}

func (m *MockGradingService) CompareWithHuman(ctx context.Context, evaluationID string) (models.HumanComparison, error) {
	if m.CompareWithHumanFunc != nil {
		return m.CompareWithHumanFunc(ctx, evaluationID)
	}
	return models.HumanComparison{}, errors.New("CompareWithHumanFunc not implemented")
}

func (m *MockGradingService) DeleteHumanGrading(ctx context.Context, evaluationID string) error {
	if m.DeleteHumanGradingFunc != nil {
		return m.DeleteHumanGradingFunc(ctx, evaluationID)
	}
	return errors.New("DeleteHumanGradingFunc not implemented")
}
