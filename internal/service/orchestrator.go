package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/godilite/rubric-grader/internal/models"
)

// DefaultBatchSize bounds the number of in-flight scoring calls.
const DefaultBatchSize = 10

// BatchObserver is notified before each batch starts.
type BatchObserver func(batch, size int)

// ParallelScoringOrchestrator scores every criterion of a rubric, running
// each batch concurrently and the batches one after another.
type ParallelScoringOrchestrator struct {
	scorer          CriterionScorer
	logger          *zap.Logger
	observer        BatchObserver
	cancelOnFailure bool
}

var _ BatchScorer = (*ParallelScoringOrchestrator)(nil)

type OrchestratorOption func(*ParallelScoringOrchestrator)

// WithBatchObserver registers fn to be called as each batch starts.
func WithBatchObserver(fn BatchObserver) OrchestratorOption {
	return func(o *ParallelScoringOrchestrator) { o.observer = fn }
}

// WithCancelOnFailure cancels the rest of a batch once one call fails.
// By default siblings run to completion and only the first error is kept.
func WithCancelOnFailure(enabled bool) OrchestratorOption {
	return func(o *ParallelScoringOrchestrator) { o.cancelOnFailure = enabled }
}

func NewParallelScoringOrchestrator(scorer CriterionScorer, logger *zap.Logger, opts ...OrchestratorOption) *ParallelScoringOrchestrator {
	if scorer == nil {
		panic("criterion scorer cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &ParallelScoringOrchestrator{scorer: scorer, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ScoreAll returns one result per criterion, in criteria order. Any failure
// fails the whole run; partial results are never returned.
func (o *ParallelScoringOrchestrator) ScoreAll(ctx context.Context, provider string, rubricType models.RubricType, criteria []models.RubricCriterion, transcript string, batchSize int) ([]models.CriterionResult, error) {
	if len(criteria) == 0 {
		return nil, ErrNoCriteria
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrEmptyTranscript
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	results := make([]models.CriterionResult, len(criteria))
	for batch, start := 0, 0; start < len(criteria); batch, start = batch+1, start+batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+batchSize, len(criteria))
		if o.observer != nil {
			o.observer(batch, end-start)
		}

		g, gctx := new(errgroup.Group), ctx
		if o.cancelOnFailure {
			g, gctx = errgroup.WithContext(ctx)
		}
		for i := start; i < end; i++ {
			criterion := criteria[i]
			g.Go(func() error {
				r, err := o.scorer.Score(gctx, provider, rubricType, criterion, transcript)
				if err != nil {
					return fmt.Errorf("%w: criterion %q: %w", ErrScoringFailed, criterion.Name, err)
				}
				results[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			o.logger.Error("scoring batch failed",
				zap.Int("batch", batch),
				zap.Int("size", end-start),
				zap.Error(err),
			)
			return nil, err
		}
	}

	o.logger.Info("rubric scored",
		zap.String("provider", provider),
		zap.Int("criteria", len(criteria)),
		zap.Int("batch_size", batchSize),
	)
	return results, nil
}
