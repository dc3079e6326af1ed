package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/godilite/rubric-grader/internal/models"
)

// EvaluateRequest selects a rubric in order of precedence: an inline
// structured rubric, a saved rubric id, then raw rubric text to extract.
type EvaluateRequest struct {
	Provider          string
	Rubric            *models.StructuredRubric
	RubricID          string
	RubricText        string
	Transcript        string
	StudentIdentifier string
	BatchSize         int
}

// EvaluationService runs the extraction, scoring and aggregation pipeline and
// persists what it produces.
type EvaluationService struct {
	extractor RubricExtractor
	scorer    BatchScorer
	reporter  LearnerReporter
	repo      EvaluationRepository
	logger    *zap.Logger

	defaultProvider string
	batchSize       int
	now             func() time.Time
	newID           func() string
}

type EvaluationOption func(*EvaluationService)

// WithDefaultProvider is used when a request names no provider.
func WithDefaultProvider(provider string) EvaluationOption {
	return func(s *EvaluationService) { s.defaultProvider = provider }
}

// WithBatchSize sets the batch size used when a request leaves it unset.
func WithBatchSize(n int) EvaluationOption {
	return func(s *EvaluationService) { s.batchSize = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) EvaluationOption {
	return func(s *EvaluationService) { s.now = now }
}

// WithIDGenerator overrides uuid generation.
func WithIDGenerator(newID func() string) EvaluationOption {
	return func(s *EvaluationService) { s.newID = newID }
}

func NewEvaluationService(extractor RubricExtractor, scorer BatchScorer, reporter LearnerReporter, repo EvaluationRepository, logger *zap.Logger, opts ...EvaluationOption) *EvaluationService {
	if extractor == nil || scorer == nil || reporter == nil {
		panic("pipeline services cannot be nil")
	}
	if repo == nil {
		panic("repository cannot be nil")
	}
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			panic("failed to create default logger: " + err.Error())
		}
	}
	s := &EvaluationService{
		extractor: extractor,
		scorer:    scorer,
		reporter:  reporter,
		repo:      repo,
		logger:    logger,
		batchSize: DefaultBatchSize,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EvaluationService) provider(name string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return s.defaultProvider
}

// ExtractRubric extracts rawText and saves the result. A rubric already saved
// from identical text is returned without calling the model.
func (s *EvaluationService) ExtractRubric(ctx context.Context, provider, rawText string) (models.StructuredRubric, error) {
	if strings.TrimSpace(rawText) == "" {
		return models.StructuredRubric{}, ErrEmptyRubricText
	}

	hash := SourceHash(rawText)
	existing, err := s.repo.FindRubricBySource(ctx, hash)
	switch {
	case err == nil:
		s.logger.Info("reusing saved rubric", zap.String("rubric_id", existing.ID))
		return existing, nil
	case !errors.Is(err, models.ErrNotFound):
		return models.StructuredRubric{}, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	rubric, err := s.extractor.Extract(ctx, s.provider(provider), rawText)
	if err != nil {
		return models.StructuredRubric{}, err
	}
	rubric.ID = s.newID()
	if err := s.repo.SaveRubric(ctx, rubric); err != nil {
		s.logger.Error("failed to save rubric", zap.String("rubric_id", rubric.ID), zap.Error(err))
		return models.StructuredRubric{}, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	return rubric, nil
}

func (s *EvaluationService) GetRubric(ctx context.Context, id string) (models.StructuredRubric, error) {
	return s.repo.GetRubric(ctx, id)
}

// Evaluate scores req.Transcript against the selected rubric, aggregates the
// results and saves the evaluation.
func (s *EvaluationService) Evaluate(ctx context.Context, req EvaluateRequest) (models.Evaluation, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return models.Evaluation{}, ErrEmptyTranscript
	}
	provider := s.provider(req.Provider)

	rubric, err := s.resolveRubric(ctx, provider, req)
	if err != nil {
		return models.Evaluation{}, err
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	start := s.now()
	results, err := s.scorer.ScoreAll(ctx, provider, rubric.RubricType, rubric.Criteria, req.Transcript, batchSize)
	if err != nil {
		return models.Evaluation{}, err
	}

	evaluation := models.Evaluation{
		ID:                s.newID(),
		RubricID:          rubric.ID,
		RubricTitle:       rubric.Title,
		RubricSummary:     rubric.Summary,
		Provider:          provider,
		StudentIdentifier: req.StudentIdentifier,
		Transcript:        req.Transcript,
		Results:           results,
		Report:            Aggregate(results),
		CreatedAt:         start.UTC(),
	}
	for _, r := range results {
		evaluation.Usage = evaluation.Usage.Add(r.Usage)
	}

	if err := s.repo.SaveEvaluation(ctx, evaluation); err != nil {
		s.logger.Error("failed to save evaluation", zap.String("evaluation_id", evaluation.ID), zap.Error(err))
		return models.Evaluation{}, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	s.logger.Info("evaluation completed",
		zap.String("evaluation_id", evaluation.ID),
		zap.String("provider", provider),
		zap.Float64("percent", evaluation.Report.Percent),
		zap.String("band", string(evaluation.Report.PerformanceBand)),
		zap.Int64("input_tokens", evaluation.Usage.InputTokens),
		zap.Int64("output_tokens", evaluation.Usage.OutputTokens),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return evaluation, nil
}

func (s *EvaluationService) resolveRubric(ctx context.Context, provider string, req EvaluateRequest) (models.StructuredRubric, error) {
	switch {
	case req.Rubric != nil:
		if len(req.Rubric.Criteria) == 0 {
			return models.StructuredRubric{}, ErrNoCriteria
		}
		return *req.Rubric, nil
	case strings.TrimSpace(req.RubricID) != "":
		return s.repo.GetRubric(ctx, req.RubricID)
	case strings.TrimSpace(req.RubricText) != "":
		return s.ExtractRubric(ctx, provider, req.RubricText)
	default:
		return models.StructuredRubric{}, ErrRubricRequired
	}
}

func (s *EvaluationService) GetEvaluation(ctx context.Context, id string) (models.Evaluation, error) {
	return s.repo.GetEvaluation(ctx, id)
}

func (s *EvaluationService) ListEvaluations(ctx context.Context, limit int) ([]models.EvaluationSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListEvaluations(ctx, limit)
}

// GenerateLearnerReport loads a saved evaluation and writes narrative
// feedback for it.
func (s *EvaluationService) GenerateLearnerReport(ctx context.Context, provider, evaluationID string) (models.LearnerReport, error) {
	evaluation, err := s.repo.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return models.LearnerReport{}, err
	}
	if strings.TrimSpace(provider) == "" {
		provider = evaluation.Provider
	}
	return s.reporter.Generate(ctx, s.provider(provider), evaluation)
}
