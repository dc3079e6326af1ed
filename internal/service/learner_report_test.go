package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/godilite/rubric-grader/internal/llm"
	"github.com/godilite/rubric-grader/internal/models"
	"github.com/godilite/rubric-grader/internal/service/mocks"
)

func narrativeResolver(text string) (*mocks.MockResolver, *mocks.MockCompleter) {
	completer := &mocks.MockCompleter{
		CompleteFunc: func(ctx context.Context, prompt string) (llm.Output, error) {
			return llm.Output{Provider: "anthropic", Text: text}, nil
		},
	}
	return &mocks.MockResolver{Completers: map[llm.Purpose]llm.Completer{llm.PurposeNarrative: completer}}, completer
}

func sampleEvaluation() models.Evaluation {
	results := []models.CriterionResult{result("Empathy", 5, 5), result("Clarity", 2, 5)}
	return models.Evaluation{
		ID:          "eval-1",
		RubricTitle: "Communication",
		Provider:    "anthropic",
		Transcript:  transcript,
		Results:     results,
		Report:      Aggregate(results),
	}
}

func TestLearnerReportService_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid report", func(t *testing.T) {
		resolver, completer := narrativeResolver(`{"top_strengths":["Warm opening"],"growth_opportunities":["Summarize plans"," "],"actionable_suggestions":["Close with a recap","Check understanding"]}`)
		report, err := NewLearnerReportService(resolver, zap.NewNop()).Generate(ctx, "anthropic", sampleEvaluation())
		require.NoError(t, err)

		assert.Equal(t, []string{"Warm opening"}, report.TopStrengths)
		assert.Equal(t, []string{"Summarize plans"}, report.GrowthOpportunities)
		assert.Len(t, report.ActionableSuggestions, 2)
		require.Equal(t, 1, completer.Calls())
		assert.Contains(t, completer.Prompts[0], "Communication")
	})

	t.Run("missing key", func(t *testing.T) {
		resolver, _ := narrativeResolver(`{"top_strengths":["Warm opening"],"growth_opportunities":[]}`)
		_, err := NewLearnerReportService(resolver, zap.NewNop()).Generate(ctx, "anthropic", sampleEvaluation())
		assert.ErrorIs(t, err, ErrInvalidLearnerReport)
		assert.Contains(t, err.Error(), "actionable_suggestions")
	})

	t.Run("evaluation without results", func(t *testing.T) {
		resolver, completer := narrativeResolver("{}")
		_, err := NewLearnerReportService(resolver, zap.NewNop()).Generate(ctx, "anthropic", models.Evaluation{})
		assert.ErrorIs(t, err, ErrNoCriteria)
		assert.Zero(t, completer.Calls())
	})
}
