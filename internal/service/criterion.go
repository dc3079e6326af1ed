package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/godilite/rubric-grader/internal/llm"
	"github.com/godilite/rubric-grader/internal/models"
	"github.com/godilite/rubric-grader/internal/prompt"
	"github.com/godilite/rubric-grader/pkg/llmjson"
)

// NoJustification is recorded when the model omits a justification.
const NoJustification = "No justification provided."

// CriterionScoringService scores one criterion per LLM call. It holds no
// state between calls, so one instance serves concurrent callers.
type CriterionScoringService struct {
	clients ClientResolver
	logger  *zap.Logger
}

var _ CriterionScorer = (*CriterionScoringService)(nil)

func NewCriterionScoringService(clients ClientResolver, logger *zap.Logger) *CriterionScoringService {
	if clients == nil {
		panic("client resolver cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CriterionScoringService{clients: clients, logger: logger}
}

// Score asks the model to grade transcript against criterion and returns a
// result whose score is clamped to [0, MaxScore].
func (s *CriterionScoringService) Score(ctx context.Context, provider string, rubricType models.RubricType, criterion models.RubricCriterion, transcript string) (models.CriterionResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return models.CriterionResult{}, ErrEmptyTranscript
	}
	if criterion.MaxScore <= 0 {
		criterion.MaxScore = models.DefaultMaxScore
	}

	client, err := s.clients.Resolve(provider, llm.PurposeScoring)
	if err != nil {
		return models.CriterionResult{}, err
	}

	text := prompt.Criterion(criterion, rubricType, transcript)
	out, err := client.Complete(ctx, text)
	if err != nil {
		return models.CriterionResult{}, err
	}

	result, err := ParseCriterionResult(out.Text, criterion)
	if err != nil {
		s.logger.Warn("criterion reply rejected",
			zap.String("criterion", criterion.Name),
			zap.String("provider", out.Provider),
			zap.Error(err),
		)
		return models.CriterionResult{}, err
	}
	result.Prompt = text
	result.Usage = models.TokenUsage{InputTokens: out.InputTokens, OutputTokens: out.OutputTokens}

	s.logger.Debug("criterion scored",
		zap.String("criterion", criterion.Name),
		zap.Float64("score", result.Score),
		zap.Float64("max_score", result.MaxScore),
	)
	return result, nil
}

// ParseCriterionResult decodes a scoring reply. The fields are read from an
// "evaluation" object when present, otherwise from the top level.
func ParseCriterionResult(text string, criterion models.RubricCriterion) (models.CriterionResult, error) {
	obj, err := llmjson.ParseObject(text)
	if err != nil {
		return models.CriterionResult{}, err
	}
	eval := obj
	if nested, ok := obj["evaluation"].(map[string]any); ok {
		eval = nested
	}

	raw, present := eval["score"]
	if !present || raw == nil {
		return models.CriterionResult{}, fmt.Errorf("%w: criterion %q: score missing", ErrInvalidScore, criterion.Name)
	}
	score, ok := toFloat(raw)
	if !ok {
		return models.CriterionResult{}, fmt.Errorf("%w: criterion %q: score %v is not numeric", ErrInvalidScore, criterion.Name, raw)
	}

	justification := toString(eval["justification"])
	if justification == "" {
		justification = NoJustification
	}
	evidence := evidenceText(eval["evidence"])
	if evidence == "" {
		evidence = justification
	}

	return models.CriterionResult{
		CriterionID:   criterion.ID,
		Name:          criterion.Name,
		Description:   criterion.Description,
		Score:         clamp(score, 0, criterion.MaxScore),
		MaxScore:      criterion.MaxScore,
		Justification: justification,
		Evidence:      evidence,
	}, nil
}

// evidenceText accepts a quote string or a list of quotes.
func evidenceText(raw any) string {
	if list, ok := raw.([]any); ok {
		quotes := make([]string, 0, len(list))
		for _, q := range list {
			if s := toString(q); s != "" {
				quotes = append(quotes, s)
			}
		}
		return strings.Join(quotes, "\n")
	}
	return toString(raw)
}
