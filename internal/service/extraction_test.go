package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/godilite/rubric-grader/internal/config"
	"github.com/godilite/rubric-grader/internal/llm"
	"github.com/godilite/rubric-grader/internal/service/mocks"
	"github.com/godilite/rubric-grader/pkg/llmjson"
)

const rubricText = "Communication Rubric\nEmpathy (5 pts)\nClarity (5 pts)"

func extractionResolver(text string, err error) (*mocks.MockResolver, *mocks.MockCompleter) {
	completer := &mocks.MockCompleter{
		CompleteFunc: func(ctx context.Context, prompt string) (llm.Output, error) {
			return llm.Output{Provider: "openai", Text: text}, err
		},
	}
	return &mocks.MockResolver{Completers: map[llm.Purpose]llm.Completer{llm.PurposeExtraction: completer}}, completer
}

func TestNewRubricExtractionService(t *testing.T) {
	t.Run("nil resolver panics", func(t *testing.T) {
		assert.Panics(t, func() { NewRubricExtractionService(nil, zap.NewNop()) })
	})

	t.Run("nil logger gets default", func(t *testing.T) {
		s := NewRubricExtractionService(&mocks.MockResolver{}, nil)
		assert.NotNil(t, s.logger)
	})
}

func TestRubricExtractionService_Extract(t *testing.T) {
	ctx := context.Background()

	t.Run("fenced reply is normalized", func(t *testing.T) {
		reply := "```json\n" + `{"title":"Communication","summary":"Talking to patients","rubric_type":"analytic",
			"max_total_score":10,"criteria":[
			{"name":"Empathy","description":"Acknowledges feelings","max_score":5,"item_type":"criterion",
			 "performance_levels":[{"label":"Rarely","description":"Ignores feelings","score":1},{"label":"Always","score":5}]},
			{"name":"Clarity","max_score":"5","weight":0.5}]}` + "\n```"
		resolver, completer := extractionResolver(reply, nil)

		rubric, err := NewRubricExtractionService(resolver, zap.NewNop()).Extract(ctx, "openai", rubricText)
		require.NoError(t, err)

		assert.Equal(t, "Communication", rubric.Title)
		assert.Equal(t, "Talking to patients", rubric.Summary)
		assert.Equal(t, 10.0, rubric.MaxTotalScore)
		assert.Equal(t, SourceHash(rubricText), rubric.SourceSHA256)
		require.Len(t, rubric.Criteria, 2)

		empathy := rubric.Criteria[0]
		assert.Equal(t, "criterion_1", empathy.ID)
		assert.Equal(t, 5.0, empathy.MaxScore)
		require.Len(t, empathy.Metadata.PerformanceLevels, 2)
		assert.Equal(t, "empathy_level_1", empathy.Metadata.PerformanceLevels[0].Key)
		assert.Equal(t, 1.0, *empathy.Metadata.PerformanceLevels[0].Score)

		clarity := rubric.Criteria[1]
		assert.Equal(t, 5.0, clarity.MaxScore)
		require.NotNil(t, clarity.Weight)
		assert.Equal(t, 0.5, *clarity.Weight)

		require.Equal(t, 1, completer.Calls())
		assert.Contains(t, completer.Prompts[0], "Empathy (5 pts)")
	})

	t.Run("empty text fails before any call", func(t *testing.T) {
		resolver, completer := extractionResolver("{}", nil)
		_, err := NewRubricExtractionService(resolver, zap.NewNop()).Extract(ctx, "openai", "  \n\t ")
		assert.ErrorIs(t, err, ErrEmptyRubricText)
		assert.Zero(t, completer.Calls())
	})

	t.Run("configuration error is returned unchanged", func(t *testing.T) {
		cfgErr := &config.MissingSettingError{Provider: "openai", Setting: "OPENAI_API_KEY"}
		s := NewRubricExtractionService(&mocks.MockResolver{Err: cfgErr}, zap.NewNop())
		_, err := s.Extract(ctx, "openai", rubricText)
		assert.ErrorIs(t, err, config.ErrMissingSetting)
	})

	t.Run("transport error is wrapped", func(t *testing.T) {
		resolver, _ := extractionResolver("", &llm.ProviderError{Provider: "openai", Kind: llm.ErrRateLimited, Status: 429})
		_, err := NewRubricExtractionService(resolver, zap.NewNop()).Extract(ctx, "openai", rubricText)
		assert.ErrorIs(t, err, llm.ErrRateLimited)
		assert.ErrorIs(t, err, llm.ErrTransport)
	})

	t.Run("undecodable reply", func(t *testing.T) {
		resolver, _ := extractionResolver("I could not read that rubric.", nil)
		_, err := NewRubricExtractionService(resolver, zap.NewNop()).Extract(ctx, "openai", rubricText)
		assert.ErrorIs(t, err, llmjson.ErrDecode)
	})

	t.Run("zero criteria", func(t *testing.T) {
		resolver, _ := extractionResolver(`{"title":"Empty","criteria":[]}`, nil)
		_, err := NewRubricExtractionService(resolver, zap.NewNop()).Extract(ctx, "openai", rubricText)
		assert.ErrorIs(t, err, ErrNoCriteria)
	})
}

func TestNormalizeRubric(t *testing.T) {
	t.Run("bare array with defaults", func(t *testing.T) {
		payload := []any{
			map[string]any{"name": "Empathy", "max_score": 4.0},
			map[string]any{"name": "Clarity"},
			"not an object",
		}
		rubric, err := NormalizeRubric(payload, "  Line one\n\nline two  ")
		require.NoError(t, err)

		assert.Equal(t, "Uploaded Rubric", rubric.Title)
		assert.Equal(t, "Line one line two", rubric.Summary)
		assert.Equal(t, "analytic", string(rubric.RubricType))
		require.Len(t, rubric.Criteria, 2)
		assert.Equal(t, 1.0, rubric.Criteria[1].MaxScore)
		assert.Equal(t, 5.0, rubric.MaxTotalScore)
	})

	t.Run("criteria under rubric wrapper use wrapper metadata", func(t *testing.T) {
		payload := map[string]any{
			"rubric": map[string]any{
				"title":       "Wrapped",
				"rubric_type": "CHECKLIST",
				"items": []any{
					map[string]any{"name": "Consent", "item_type": "checklist", "checklist_required": true, "keywords": []any{"consent", "Consent", " "}},
				},
			},
		}
		rubric, err := NormalizeRubric(payload, rubricText)
		require.NoError(t, err)

		assert.Equal(t, "Wrapped", rubric.Title)
		assert.Equal(t, "checklist", string(rubric.RubricType))
		require.Len(t, rubric.Criteria, 1)
		c := rubric.Criteria[0]
		assert.Equal(t, "checklist", string(c.ItemType))
		require.NotNil(t, c.Metadata.ChecklistRequired)
		assert.True(t, *c.Metadata.ChecklistRequired)
		assert.Equal(t, []string{"consent"}, c.Metadata.Keywords)
	})

	t.Run("criteria under data wrapper", func(t *testing.T) {
		payload := map[string]any{"data": map[string]any{"rubric_items": []any{map[string]any{"name": "Tone", "max_score": 2.0}}}}
		rubric, err := NormalizeRubric(payload, rubricText)
		require.NoError(t, err)
		require.Len(t, rubric.Criteria, 1)
		assert.Equal(t, "Tone", rubric.Criteria[0].Name)
	})

	t.Run("non-positive max score becomes default", func(t *testing.T) {
		payload := map[string]any{"criteria": []any{map[string]any{"name": "Tone", "max_score": -3.0}}}
		rubric, err := NormalizeRubric(payload, rubricText)
		require.NoError(t, err)
		assert.Equal(t, 1.0, rubric.Criteria[0].MaxScore)
	})

	t.Run("non-numeric max score", func(t *testing.T) {
		payload := map[string]any{"criteria": []any{map[string]any{"name": "Tone", "max_score": "lots"}}}
		_, err := NormalizeRubric(payload, rubricText)
		assert.ErrorIs(t, err, ErrInvalidScore)
	})

	t.Run("summary fallback is truncated", func(t *testing.T) {
		long := make([]rune, 500)
		for i := range long {
			long[i] = 'x'
		}
		payload := map[string]any{"criteria": []any{map[string]any{"name": "Tone"}}}
		rubric, err := NormalizeRubric(payload, string(long))
		require.NoError(t, err)
		assert.Len(t, rubric.Summary, 400)
	})

	t.Run("no criteria anywhere", func(t *testing.T) {
		_, err := NormalizeRubric(map[string]any{"title": "Nothing"}, rubricText)
		assert.True(t, errors.Is(err, ErrNoCriteria))
	})
}
