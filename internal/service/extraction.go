package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/godilite/rubric-grader/internal/llm"
	"github.com/godilite/rubric-grader/internal/models"
	"github.com/godilite/rubric-grader/internal/prompt"
	"github.com/godilite/rubric-grader/pkg/llmjson"
)

const (
	defaultRubricTitle = "Uploaded Rubric"
	summaryFallbackLen = 400
)

// criteriaKeys are the keys a model has been seen to use for the criteria
// list, in lookup order.
var criteriaKeys = []string{"criteria", "items", "rubric_items"}

// nestedScopes are wrapper objects searched after the top level.
var nestedScopes = []string{"rubric", "data"}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// RubricExtractionService converts raw rubric text into a StructuredRubric
// through one LLM call.
type RubricExtractionService struct {
	clients ClientResolver
	logger  *zap.Logger
}

var _ RubricExtractor = (*RubricExtractionService)(nil)

func NewRubricExtractionService(clients ClientResolver, logger *zap.Logger) *RubricExtractionService {
	if clients == nil {
		panic("client resolver cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RubricExtractionService{clients: clients, logger: logger}
}

// Extract runs the extraction prompt against provider and normalizes the
// reply. The source hash is recorded so saved rubrics can be deduplicated.
func (s *RubricExtractionService) Extract(ctx context.Context, provider, rawText string) (models.StructuredRubric, error) {
	if strings.TrimSpace(rawText) == "" {
		return models.StructuredRubric{}, ErrEmptyRubricText
	}

	client, err := s.clients.Resolve(provider, llm.PurposeExtraction)
	if err != nil {
		return models.StructuredRubric{}, err
	}

	out, err := client.Complete(ctx, prompt.Extraction(rawText))
	if err != nil {
		s.logger.Error("rubric extraction call failed", zap.String("provider", provider), zap.Error(err))
		return models.StructuredRubric{}, fmt.Errorf("extract rubric: %w", err)
	}

	payload, err := llmjson.Parse(out.Text)
	if err != nil {
		s.logger.Warn("rubric extraction returned undecodable output", zap.String("provider", out.Provider), zap.Error(err))
		return models.StructuredRubric{}, fmt.Errorf("extract rubric: %w", err)
	}

	rubric, err := NormalizeRubric(payload, rawText)
	if err != nil {
		return models.StructuredRubric{}, err
	}
	rubric.SourceSHA256 = SourceHash(rawText)

	s.logger.Info("rubric extracted",
		zap.String("provider", out.Provider),
		zap.String("title", rubric.Title),
		zap.Int("criteria", len(rubric.Criteria)),
		zap.Int64("input_tokens", out.InputTokens),
		zap.Int64("output_tokens", out.OutputTokens),
	)
	return rubric, nil
}

// SourceHash is the hex sha256 of the trimmed rubric text.
func SourceHash(rawText string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(rawText)))
	return hex.EncodeToString(sum[:])
}

// NormalizeRubric maps a decoded extraction payload onto a StructuredRubric.
// The criteria list may sit under several keys, inside a "rubric" or "data"
// wrapper, or be the payload itself.
func NormalizeRubric(payload any, rawText string) (models.StructuredRubric, error) {
	items, scopes := locateCriteria(payload)

	criteria := make([]models.RubricCriterion, 0, len(items))
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		c, err := normalizeCriterion(item, len(criteria)+1)
		if err != nil {
			return models.StructuredRubric{}, err
		}
		criteria = append(criteria, c)
	}
	if len(criteria) == 0 {
		return models.StructuredRubric{}, ErrNoCriteria
	}

	rubric := models.StructuredRubric{
		Title:      firstString(scopes, "title", "rubric_title", "name"),
		Summary:    firstString(scopes, "summary", "rubric_summary", "description"),
		RubricType: models.ParseRubricType(firstString(scopes, "rubric_type", "type")),
		Criteria:   criteria,
	}
	if rubric.Title == "" {
		rubric.Title = defaultRubricTitle
	}
	if rubric.Summary == "" {
		rubric.Summary = summarize(rawText)
	}

	for _, scope := range scopes {
		if total, ok := toFloat(scope["max_total_score"]); ok && total > 0 {
			rubric.MaxTotalScore = total
			break
		}
	}
	if rubric.MaxTotalScore == 0 {
		for _, c := range criteria {
			rubric.MaxTotalScore += c.MaxScore
		}
	}

	for _, scope := range scopes {
		for _, key := range []string{"holistic_levels", "performance_levels", "levels"} {
			if levels := normalizeLevels(scope[key], "overall"); len(levels) > 0 {
				rubric.Levels = levels
				break
			}
		}
		if len(rubric.Levels) > 0 {
			break
		}
	}

	return rubric, nil
}

// locateCriteria returns the first non-empty criteria list and the objects
// metadata should be read from, innermost first.
func locateCriteria(payload any) ([]any, []map[string]any) {
	switch v := payload.(type) {
	case []any:
		return v, nil
	case map[string]any:
		candidates := []map[string]any{v}
		for _, key := range nestedScopes {
			if nested, ok := v[key].(map[string]any); ok {
				candidates = append(candidates, nested)
			}
		}
		for i, scope := range candidates {
			for _, key := range criteriaKeys {
				if list, ok := scope[key].([]any); ok && len(list) > 0 {
					if i == 0 {
						return list, []map[string]any{v}
					}
					return list, []map[string]any{scope, v}
				}
			}
		}
		return nil, []map[string]any{v}
	default:
		return nil, nil
	}
}

func normalizeCriterion(item map[string]any, index int) (models.RubricCriterion, error) {
	name := firstString([]map[string]any{item}, "name", "title", "criterion")
	if name == "" {
		name = fmt.Sprintf("Criterion %d", index)
	}

	maxScore := models.DefaultMaxScore
	if raw, present := item["max_score"]; present && raw != nil {
		v, ok := toFloat(raw)
		if !ok {
			return models.RubricCriterion{}, fmt.Errorf("%w: criterion %q has non-numeric max_score %v", ErrInvalidScore, name, raw)
		}
		if v > 0 {
			maxScore = v
		}
	}

	c := models.RubricCriterion{
		ID:          criterionID(item, index),
		Name:        name,
		Description: toString(item["description"]),
		ItemType:    models.ParseItemType(toString(item["item_type"])),
		MaxScore:    maxScore,
	}
	if w, ok := toFloat(item["weight"]); ok {
		c.Weight = &w
	}
	if required, ok := item["checklist_required"].(bool); ok {
		c.Metadata.ChecklistRequired = &required
	}
	c.Metadata.Keywords = normalizeKeywords(item["keywords"])
	c.Metadata.PerformanceLevels = normalizeLevels(item["performance_levels"], slug(name)+"_level")
	return c, nil
}

func criterionID(item map[string]any, index int) string {
	switch v := item["id"].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case float64:
		return formatScore(v)
	}
	return fmt.Sprintf("criterion_%d", index)
}

// normalizeLevels accepts a list of level objects and assigns stable keys to
// levels that carry none.
func normalizeLevels(raw any, prefix string) []models.PerformanceLevel {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	levels := make([]models.PerformanceLevel, 0, len(list))
	for _, entry := range list {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		scope := []map[string]any{item}
		level := models.PerformanceLevel{
			Key:         firstString(scope, "level_key", "key"),
			Label:       firstString(scope, "label", "name", "title"),
			Description: firstString(scope, "description", "descriptor"),
		}
		if score, ok := toFloat(item["score"]); ok {
			level.Score = &score
		}
		if level.Label == "" && level.Description == "" && level.Score == nil {
			continue
		}
		if level.Key == "" {
			level.Key = fmt.Sprintf("%s_%d", prefix, len(levels)+1)
		}
		levels = append(levels, level)
	}
	return levels
}

func normalizeKeywords(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(list))
	var out []string
	for _, entry := range list {
		kw := toString(entry)
		if kw == "" {
			continue
		}
		lower := strings.ToLower(kw)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func slug(name string) string {
	s := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if s == "" {
		return "criterion"
	}
	return s
}

// summarize collapses whitespace in rawText and truncates it.
func summarize(rawText string) string {
	collapsed := strings.Join(strings.Fields(rawText), " ")
	if utf8.RuneCountInString(collapsed) <= summaryFallbackLen {
		return collapsed
	}
	return string([]rune(collapsed)[:summaryFallbackLen])
}
