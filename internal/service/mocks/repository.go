package mocks

import (
	"context"
	"errors"

	"github.com/godilite/rubric-grader/internal/models"
)

// MockEvaluationRepository is a mock implementation of the EvaluationRepository
// interface for testing the service layer.
type MockEvaluationRepository struct {
	SaveRubricFunc         func(ctx context.Context, rubric models.StructuredRubric) error
	GetRubricFunc          func(ctx context.Context, id string) (models.StructuredRubric, error)
	FindRubricBySourceFunc func(ctx context.Context, sourceSHA256 string) (models.StructuredRubric, error)
	SaveEvaluationFunc     func(ctx context.Context, evaluation models.Evaluation) error
	GetEvaluationFunc      func(ctx context.Context, id string) (models.Evaluation, error)
	ListEvaluationsFunc    func(ctx context.Context, limit int) ([]models.EvaluationSummary, error)
	SaveHumanGradingFunc   func(ctx context.Context, grading models.HumanGrading) error
	GetHumanGradingFunc    func(ctx context.Context, evaluationID string) (models.HumanGrading, error)
	DeleteHumanGradingFunc func(ctx context.Context, evaluationID string) error
}

func (m *MockEvaluationRepository) SaveRubric(ctx context.Context, rubric models.StructuredRubric) error {
	if m.SaveRubricFunc != nil {
		return m.SaveRubricFunc(ctx, rubric)
	}
	return errors.New("SaveRubricFunc not implemented")
}

func (m *MockEvaluationRepository) GetRubric(ctx context.Context, id string) (models.StructuredRubric, error) {
	if m.GetRubricFunc != nil {
		return m.GetRubricFunc(ctx, id)
	}
	return models.StructuredRubric{}, errors.New("GetRubricFunc not implemented")
}

// FindRubricBySource reports ErrNotFound when no func is set, so extraction
// tests need not stub it.
func (m *MockEvaluationRepository) FindRubricBySource(ctx context.Context, sourceSHA256 string) (models.StructuredRubric, error) {
	if m.FindRubricBySourceFunc != nil {
		return m.FindRubricBySourceFunc(ctx, sourceSHA256)
	}
	return models.StructuredRubric{}, models.ErrNotFound
}

func (m *MockEvaluationRepository) SaveEvaluation(ctx context.Context, evaluation models.Evaluation) error {
	if m.SaveEvaluationFunc != nil {
		return m.SaveEvaluationFunc(ctx, evaluation)
	}
	return errors.New("SaveEvaluationFunc not implemented")
}

func (m *MockEvaluationRepository) GetEvaluation(ctx context.Context, id string) (models.Evaluation, error) {
	if m.GetEvaluationFunc != nil {
		return m.GetEvaluationFunc(ctx, id)
	}
	return models.Evaluation{}, errors.New("GetEvaluationFunc not implemented")
}

func (m *MockEvaluationRepository) ListEvaluations(ctx context.Context, limit int) ([]models.EvaluationSummary, error) {
	if m.ListEvaluationsFunc != nil {
		return m.ListEvaluationsFunc(ctx, limit)
	}
	return nil, errors.New("ListEvaluationsFunc not implemented")
}

func (m *MockEvaluationRepository) SaveHumanGrading(ctx context.Context, grading models.HumanGrading) error {
	if m.SaveHumanGradingFunc != nil {
		return m.SaveHumanGradingFunc(ctx, grading)
	}
	return errors.New("SaveHumanGradingFunc not implemented")
}

func (m *MockEvaluationRepository) GetHumanGrading(ctx context.Context, evaluationID string) (models.HumanGrading, error) {
	if m.GetHumanGradingFunc != nil {
		return m.GetHumanGradingFunc(ctx, evaluationID)
	}
	return models.HumanGrading{}, errors.New("GetHumanGradingFunc not implemented")
}

func (m *MockEvaluationRepository) DeleteHumanGrading(ctx context.Context, evaluationID string) error {
	if m.DeleteHumanGradingFunc != nil {
		return m.DeleteHumanGradingFunc(ctx, evaluationID)
	}
	return errors.New("DeleteHumanGradingFunc not implemented")
}
