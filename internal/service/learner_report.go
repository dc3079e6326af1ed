package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/godilite/rubric-grader/internal/llm"
	"github.com/godilite/rubric-grader/internal/models"
	"github.com/godilite/rubric-grader/internal/prompt"
	"github.com/godilite/rubric-grader/pkg/llmjson"
)

// LearnerReportService writes student-facing feedback for a finished
// evaluation using the narrative client.
type LearnerReportService struct {
	clients ClientResolver
	logger  *zap.Logger
}

var _ LearnerReporter = (*LearnerReportService)(nil)

func NewLearnerReportService(clients ClientResolver, logger *zap.Logger) *LearnerReportService {
	if clients == nil {
		panic("client resolver cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LearnerReportService{clients: clients, logger: logger}
}

func (s *LearnerReportService) Generate(ctx context.Context, provider string, evaluation models.Evaluation) (models.LearnerReport, error) {
	if len(evaluation.Results) == 0 {
		return models.LearnerReport{}, ErrNoCriteria
	}

	client, err := s.clients.Resolve(provider, llm.PurposeNarrative)
	if err != nil {
		return models.LearnerReport{}, err
	}

	out, err := client.Complete(ctx, prompt.LearnerReport(evaluation.RubricTitle, evaluation.Report, evaluation.Results, evaluation.Transcript))
	if err != nil {
		return models.LearnerReport{}, fmt.Errorf("learner report: %w", err)
	}

	report, err := ParseLearnerReport(out.Text)
	if err != nil {
		s.logger.Warn("learner report rejected", zap.String("evaluation_id", evaluation.ID), zap.Error(err))
		return models.LearnerReport{}, err
	}
	return report, nil
}

// ParseLearnerReport requires all three feedback lists to be present.
func ParseLearnerReport(text string) (models.LearnerReport, error) {
	obj, err := llmjson.ParseObject(text)
	if err != nil {
		return models.LearnerReport{}, err
	}

	lists := make(map[string][]string, 3)
	for _, key := range []string{"top_strengths", "growth_opportunities", "actionable_suggestions"} {
		raw, ok := obj[key].([]any)
		if !ok {
			return models.LearnerReport{}, fmt.Errorf("%w: %q must be a list", ErrInvalidLearnerReport, key)
		}
		items := make([]string, 0, len(raw))
		for _, entry := range raw {
			if s := toString(entry); s != "" {
				items = append(items, s)
			}
		}
		lists[key] = items
	}

	return models.LearnerReport{
		TopStrengths:          lists["top_strengths"],
		GrowthOpportunities:   lists["growth_opportunities"],
		ActionableSuggestions: lists["actionable_suggestions"],
	}, nil
}
