package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/godilite/rubric-grader/internal/config"
	"github.com/godilite/rubric-grader/internal/llm"
	"github.com/godilite/rubric-grader/internal/models"
	"github.com/godilite/rubric-grader/internal/service"
	"github.com/godilite/rubric-grader/pkg/cache"
	"github.com/godilite/rubric-grader/pkg/llmjson"
)

const (
	defaultCacheDuration = 10 * time.Minute
	defaultGRPCTimeout   = 10 * time.Second
	defaultLLMTimeout    = 5 * time.Minute
	defaultListLimit     = 20
	maxListLimit         = 200
)

type CacheKeyType string

const (
	cacheKeyRubricExtraction  CacheKeyType = "grpc:rubric_extraction"
	cacheKeyRubric            CacheKeyType = "grpc:rubric"
	cacheKeyEvaluation        CacheKeyType = "grpc:evaluation"
	cacheKeyRecentEvaluations CacheKeyType = "grpc:evaluations:recent"
)

type GRPCHandlers struct {
	grading    GradingService
	cache      *responseCache
	logger     *zap.Logger
	llmTimeout time.Duration
}

var _ GradingServer = (*GRPCHandlers)(nil)

// NewGRPCHandlers initializes the gRPC handlers. llmTimeout bounds requests
// that call a model; reads use a fixed shorter timeout.
func NewGRPCHandlers(grading GradingService, c Cacher, logger *zap.Logger, ttl, llmTimeout time.Duration) *GRPCHandlers {
	if grading == nil {
		panic("nil GradingService provided to NewGRPCHandlers")
	}
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultCacheDuration
	}
	if llmTimeout <= 0 {
		llmTimeout = defaultLLMTimeout
	}
	logger = logger.Named("grpc-handler")
	return &GRPCHandlers{
		grading:    grading,
		cache:      newResponseCache(c, ttl, logger),
		logger:     logger,
		llmTimeout: llmTimeout,
	}
}

func (s *GRPCHandlers) handleError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case context.DeadlineExceeded:
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	var code codes.Code
	switch {
	case errors.Is(err, config.ErrMissingSetting), errors.Is(err, config.ErrUnknownProvider):
		code = codes.FailedPrecondition
	case errors.Is(err, llm.ErrRateLimited):
		code = codes.ResourceExhausted
	case errors.Is(err, llm.ErrTruncated):
		code = codes.OutOfRange
	case errors.Is(err, llm.ErrRefused):
		code = codes.Aborted
	case errors.Is(err, llm.ErrTransport):
		code = codes.Unavailable
	case errors.Is(err, llmjson.ErrDecode),
		errors.Is(err, service.ErrInvalidScore),
		errors.Is(err, service.ErrInvalidLearnerReport):
		code = codes.DataLoss
	case errors.Is(err, service.ErrEmptyRubricText),
		errors.Is(err, service.ErrEmptyTranscript),
		errors.Is(err, service.ErrNoCriteria),
		errors.Is(err, service.ErrRubricRequired),
		errors.Is(err, service.ErrNoHumanScores),
		errors.Is(err, service.ErrInvalidHumanScore):
		s.logger.Info("invalid request", zap.String("op", op), zap.Error(err))
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, models.ErrNotFound):
		s.logger.Info("not found", zap.String("op", op), zap.Error(err))
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrStorageFailure):
		s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Internal, "database error")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}

	s.logger.Warn("request failed", zap.String("op", op), zap.String("code", code.String()), zap.Error(err))
	return status.Error(code, err.Error())
}

func (s *GRPCHandlers) ExtractRubric(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	provider := stringField(req, "provider")
	text := stringField(req, "rubric_text")
	if strings.TrimSpace(text) == "" {
		return nil, status.Error(codes.InvalidArgument, "rubric_text is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	key := cache.Key(string(cacheKeyRubricExtraction), provider, service.SourceHash(text))
	rubric, err := cached(ctx, s.cache, key, func(fetchCtx context.Context) (models.StructuredRubric, error) {
		return s.grading.ExtractRubric(fetchCtx, provider, text)
	})
	if err != nil {
		return nil, s.handleError(ctx, "ExtractRubric", err)
	}
	return toStruct(rubric)
}

func (s *GRPCHandlers) GetRubric(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	rubric, err := cached(ctx, s.cache, cache.Key(string(cacheKeyRubric), id), func(fetchCtx context.Context) (models.StructuredRubric, error) {
		return s.grading.GetRubric(fetchCtx, id)
	})
	if err != nil {
		return nil, s.handleError(ctx, "GetRubric", err)
	}
	return toStruct(rubric)
}

// Evaluate is never cached: every call scores the transcript afresh. A new
// evaluation makes the cached recent list stale.
func (s *GRPCHandlers) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	evalReq := service.EvaluateRequest{
		Provider:          stringField(req, "provider"),
		RubricID:          stringField(req, "rubric_id"),
		RubricText:        stringField(req, "rubric_text"),
		Transcript:        stringField(req, "transcript"),
		StudentIdentifier: stringField(req, "student_identifier"),
		BatchSize:         intField(req, "batch_size"),
	}
	if strings.TrimSpace(evalReq.Transcript) == "" {
		return nil, status.Error(codes.InvalidArgument, "transcript is required")
	}
	if inline := req.GetFields()["rubric"].GetStructValue(); inline != nil {
		rubric, err := decodeRubric(inline)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid rubric: %v", err)
		}
		evalReq.Rubric = &rubric
	}

	ctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	evaluation, err := s.grading.Evaluate(ctx, evalReq)
	if err != nil {
		return nil, s.handleError(ctx, "Evaluate", err)
	}
	s.cache.invalidate(ctx, string(cacheKeyRecentEvaluations))
	return toStruct(evaluation)
}

func (s *GRPCHandlers) GetEvaluation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	evaluation, err := cached(ctx, s.cache, cache.Key(string(cacheKeyEvaluation), id), func(fetchCtx context.Context) (models.Evaluation, error) {
		return s.grading.GetEvaluation(fetchCtx, id)
	})
	if err != nil {
		return nil, s.handleError(ctx, "GetEvaluation", err)
	}
	return toStruct(evaluation)
}

// ListEvaluations serves every limit from one cached page of the most recent
// maxListLimit summaries.
func (s *GRPCHandlers) ListEvaluations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := intField(req, "limit")
	if limit < 0 || limit > maxListLimit {
		return nil, status.Errorf(codes.InvalidArgument, "limit must be between 0 and %d", maxListLimit)
	}
	if limit == 0 {
		limit = defaultListLimit
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	summaries, err := cached(ctx, s.cache, string(cacheKeyRecentEvaluations), func(fetchCtx context.Context) ([]models.EvaluationSummary, error) {
		return s.grading.ListEvaluations(fetchCtx, maxListLimit)
	}, WithRefreshAhead())
	if err != nil {
		return nil, s.handleError(ctx, "ListEvaluations", err)
	}
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return toStruct(map[string]any{"evaluations": summaries})
}

func (s *GRPCHandlers) GenerateLearnerReport(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "evaluation_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "evaluation_id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	report, err := s.grading.GenerateLearnerReport(ctx, stringField(req, "provider"), id)
	if err != nil {
		return nil, s.handleError(ctx, "GenerateLearnerReport", err)
	}
	return toStruct(map[string]any{"evaluation_id": id, "report": report})
}

// SubmitHumanGrading stores a human reference grading for an evaluation,
// replacing any earlier one.
func (s *GRPCHandlers) SubmitHumanGrading(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "evaluation_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "evaluation_id is required")
	}
	grading, err := decodeHumanGrading(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid human grading: %v", err)
	}
	grading.EvaluationID = id

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	saved, err := s.grading.SaveHumanGrading(ctx, grading)
	if err != nil {
		return nil, s.handleError(ctx, "SubmitHumanGrading", err)
	}
	return toStruct(saved)
}

// CompareWithHuman is not cached: a resubmitted grading must show at once.
func (s *GRPCHandlers) CompareWithHuman(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "evaluation_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "evaluation_id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	comparison, err := s.grading.CompareWithHuman(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, "CompareWithHuman", err)
	}
	return toStruct(comparison)
}

func (s *GRPCHandlers) DeleteHumanGrading(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "evaluation_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "evaluation_id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	if err := s.grading.DeleteHumanGrading(ctx, id); err != nil {
		return nil, s.handleError(ctx, "DeleteHumanGrading", err)
	}
	return toStruct(map[string]any{"evaluation_id": id, "deleted": true})
}

func stringField(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

func intField(req *structpb.Struct, name string) int {
	return int(req.GetFields()[name].GetNumberValue())
}

func decodeRubric(in *structpb.Struct) (models.StructuredRubric, error) {
	data, err := protojson.Marshal(in)
	if err != nil {
		return models.StructuredRubric{}, err
	}
	var rubric models.StructuredRubric
	if err := json.Unmarshal(data, &rubric); err != nil {
		return models.StructuredRubric{}, err
	}
	for i := range rubric.Criteria {
		if rubric.Criteria[i].MaxScore <= 0 {
			rubric.Criteria[i].MaxScore = models.DefaultMaxScore
		}
	}
	if rubric.RubricType == "" {
		rubric.RubricType = models.RubricTypeAnalytic
	}
	return rubric, nil
}

func decodeHumanGrading(in *structpb.Struct) (models.HumanGrading, error) {
	data, err := protojson.Marshal(in)
	if err != nil {
		return models.HumanGrading{}, err
	}
	var grading models.HumanGrading
	if err := json.Unmarshal(data, &grading); err != nil {
		return models.HumanGrading{}, err
	}
	return grading, nil
}

// toStruct converts a JSON-tagged value into a response message.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
