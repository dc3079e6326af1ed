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
	"github.com/godilite/rubric-grader/pkg/llmjson"
)

const transcript = "Student: I can see this has been a hard week for you. Patient: It has."

func scoringResolver(text string, err error) (*mocks.MockResolver, *mocks.MockCompleter) {
	completer := &mocks.MockCompleter{
		CompleteFunc: func(ctx context.Context, prompt string) (llm.Output, error) {
			return llm.Output{Provider: "openai", Text: text, InputTokens: 120, OutputTokens: 30}, err
		},
	}
	return &mocks.MockResolver{Completers: map[llm.Purpose]llm.Completer{llm.PurposeScoring: completer}}, completer
}

func empathy() models.RubricCriterion {
	return models.RubricCriterion{ID: "criterion_1", Name: "Empathy", Description: "Acknowledges feelings", MaxScore: 5}
}

func TestCriterionScoringService_Score(t *testing.T) {
	ctx := context.Background()

	t.Run("score above maximum is clamped", func(t *testing.T) {
		resolver, completer := scoringResolver(`{"evaluation":{"score":7,"justification":"Named the feeling","evidence":"hard week"}}`, nil)
		s := NewCriterionScoringService(resolver, zap.NewNop())

		result, err := s.Score(ctx, "openai", models.RubricTypeAnalytic, empathy(), transcript)
		require.NoError(t, err)

		assert.Equal(t, 5.0, result.Score)
		assert.Equal(t, 5.0, result.MaxScore)
		assert.Equal(t, "Empathy", result.Name)
		assert.Equal(t, "criterion_1", result.CriterionID)
		assert.Equal(t, "Named the feeling", result.Justification)
		assert.Equal(t, "hard week", result.Evidence)
		assert.Equal(t, completer.Prompts[0], result.Prompt)
		assert.Equal(t, models.TokenUsage{InputTokens: 120, OutputTokens: 30}, result.Usage)
	})

	t.Run("negative score is clamped to zero", func(t *testing.T) {
		resolver, _ := scoringResolver(`{"evaluation":{"score":-2,"justification":"none","evidence":""}}`, nil)
		result, err := NewCriterionScoringService(resolver, zap.NewNop()).Score(ctx, "openai", models.RubricTypeAnalytic, empathy(), transcript)
		require.NoError(t, err)
		assert.Equal(t, 0.0, result.Score)
		assert.Equal(t, "none", result.Evidence)
	})

	t.Run("missing justification gets placeholder", func(t *testing.T) {
		resolver, _ := scoringResolver(`{"score":"3.5"}`, nil)
		result, err := NewCriterionScoringService(resolver, zap.NewNop()).Score(ctx, "openai", models.RubricTypeAnalytic, empathy(), transcript)
		require.NoError(t, err)
		assert.Equal(t, 3.5, result.Score)
		assert.Equal(t, NoJustification, result.Justification)
		assert.Equal(t, NoJustification, result.Evidence)
	})

	t.Run("empty transcript fails before any call", func(t *testing.T) {
		resolver, completer := scoringResolver("{}", nil)
		_, err := NewCriterionScoringService(resolver, zap.NewNop()).Score(ctx, "openai", models.RubricTypeAnalytic, empathy(), " ")
		assert.ErrorIs(t, err, ErrEmptyTranscript)
		assert.Zero(t, completer.Calls())
	})

	t.Run("missing score", func(t *testing.T) {
		resolver, _ := scoringResolver(`{"evaluation":{"justification":"n/a"}}`, nil)
		_, err := NewCriterionScoringService(resolver, zap.NewNop()).Score(ctx, "openai", models.RubricTypeAnalytic, empathy(), transcript)
		assert.ErrorIs(t, err, ErrInvalidScore)
	})

	t.Run("non-numeric score", func(t *testing.T) {
		resolver, _ := scoringResolver(`{"evaluation":{"score":"excellent"}}`, nil)
		_, err := NewCriterionScoringService(resolver, zap.NewNop()).Score(ctx, "openai", models.RubricTypeAnalytic, empathy(), transcript)
		assert.ErrorIs(t, err, ErrInvalidScore)
	})

	t.Run("prose reply", func(t *testing.T) {
		resolver, _ := scoringResolver("The student did well.", nil)
		_, err := NewCriterionScoringService(resolver, zap.NewNop()).Score(ctx, "openai", models.RubricTypeAnalytic, empathy(), transcript)
		assert.ErrorIs(t, err, llmjson.ErrDecode)
	})

	t.Run("provider error passes through", func(t *testing.T) {
		resolver, _ := scoringResolver("", &llm.ProviderError{Provider: "anthropic", Kind: llm.ErrRefused, Detail: "declined"})
		_, err := NewCriterionScoringService(resolver, zap.NewNop()).Score(ctx, "anthropic", models.RubricTypeAnalytic, empathy(), transcript)
		assert.ErrorIs(t, err, llm.ErrRefused)
	})
}

func TestParseCriterionResult_EvidenceList(t *testing.T) {
	result, err := ParseCriterionResult(`{"evaluation":{"score":2,"justification":"ok","evidence":["first quote"," ","second quote"]}}`, empathy())
	require.NoError(t, err)
	assert.Equal(t, "first quote\nsecond quote", result.Evidence)
}

func TestParseCriterionResult_ProseWrappedTrailingComma(t *testing.T) {
	result, err := ParseCriterionResult(`Here you go: {"evaluation": {"score": 3, "justification": "ok",}} thanks`, empathy())
	require.NoError(t, err)
	assert.Equal(t, 3.0, result.Score)
	assert.Equal(t, "ok", result.Justification)
}
