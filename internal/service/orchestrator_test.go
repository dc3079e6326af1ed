package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/godilite/rubric-grader/internal/llm"
	"github.com/godilite/rubric-grader/internal/models"
)

// scorerFunc adapts a function to CriterionScorer.
type scorerFunc func(ctx context.Context, c models.RubricCriterion) (models.CriterionResult, error)

func (f scorerFunc) Score(ctx context.Context, provider string, rubricType models.RubricType, c models.RubricCriterion, transcript string) (models.CriterionResult, error) {
	return f(ctx, c)
}

func makeCriteria(n int) []models.RubricCriterion {
	criteria := make([]models.RubricCriterion, n)
	for i := range criteria {
		criteria[i] = models.RubricCriterion{ID: fmt.Sprintf("criterion_%d", i+1), Name: fmt.Sprintf("Criterion %d", i+1), MaxScore: 5}
	}
	return criteria
}

func TestNewParallelScoringOrchestrator_NilScorerPanics(t *testing.T) {
	assert.Panics(t, func() { NewParallelScoringOrchestrator(nil, nil) })
}

func TestParallelScoringOrchestrator_ScoreAll(t *testing.T) {
	ctx := context.Background()

	t.Run("twelve criteria in batches of five", func(t *testing.T) {
		var (
			mu       sync.Mutex
			batches  []int
			inFlight atomic.Int32
			peak     atomic.Int32
		)
		scorer := scorerFunc(func(ctx context.Context, c models.RubricCriterion) (models.CriterionResult, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			// Later criteria finish first so ordering cannot come from completion order.
			var idx int
			_, _ = fmt.Sscanf(c.ID, "criterion_%d", &idx)
			time.Sleep(time.Duration(12-idx) * time.Millisecond)
			return models.CriterionResult{CriterionID: c.ID, Name: c.Name, Score: 3, MaxScore: c.MaxScore}, nil
		})
		o := NewParallelScoringOrchestrator(scorer, zaptest.NewLogger(t), WithBatchObserver(func(batch, size int) {
			mu.Lock()
			defer mu.Unlock()
			batches = append(batches, size)
		}))

		criteria := makeCriteria(12)
		results, err := o.ScoreAll(ctx, "openai", models.RubricTypeAnalytic, criteria, transcript, 5)
		require.NoError(t, err)

		assert.Equal(t, []int{5, 5, 2}, batches)
		assert.LessOrEqual(t, peak.Load(), int32(5))
		require.Len(t, results, 12)
		for i, r := range results {
			assert.Equal(t, criteria[i].ID, r.CriterionID)
		}
	})

	t.Run("non-positive batch size uses default", func(t *testing.T) {
		var batches []int
		scorer := scorerFunc(func(ctx context.Context, c models.RubricCriterion) (models.CriterionResult, error) {
			return models.CriterionResult{CriterionID: c.ID}, nil
		})
		o := NewParallelScoringOrchestrator(scorer, nil, WithBatchObserver(func(batch, size int) { batches = append(batches, size) }))

		_, err := o.ScoreAll(ctx, "openai", models.RubricTypeAnalytic, makeCriteria(12), transcript, 0)
		require.NoError(t, err)
		assert.Equal(t, []int{DefaultBatchSize, 2}, batches)
	})

	t.Run("zero criteria", func(t *testing.T) {
		o := NewParallelScoringOrchestrator(scorerFunc(nil), nil)
		_, err := o.ScoreAll(ctx, "openai", models.RubricTypeAnalytic, nil, transcript, 5)
		assert.ErrorIs(t, err, ErrNoCriteria)
	})

	t.Run("empty transcript", func(t *testing.T) {
		o := NewParallelScoringOrchestrator(scorerFunc(nil), nil)
		_, err := o.ScoreAll(ctx, "openai", models.RubricTypeAnalytic, makeCriteria(1), "", 5)
		assert.ErrorIs(t, err, ErrEmptyTranscript)
	})

	t.Run("one failure fails the run and stops later batches", func(t *testing.T) {
		var calls atomic.Int32
		scorer := scorerFunc(func(ctx context.Context, c models.RubricCriterion) (models.CriterionResult, error) {
			calls.Add(1)
			if c.ID == "criterion_2" {
				return models.CriterionResult{}, &llm.ProviderError{Provider: "openai", Kind: llm.ErrTruncated, Limit: 4096}
			}
			return models.CriterionResult{CriterionID: c.ID}, nil
		})
		o := NewParallelScoringOrchestrator(scorer, nil)

		results, err := o.ScoreAll(ctx, "openai", models.RubricTypeAnalytic, makeCriteria(6), transcript, 3)
		require.Error(t, err)
		assert.Nil(t, results)
		assert.ErrorIs(t, err, ErrScoringFailed)
		assert.ErrorIs(t, err, llm.ErrTruncated)
		assert.Contains(t, err.Error(), `"Criterion 2"`)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("cancel on failure cancels siblings", func(t *testing.T) {
		boom := errors.New("boom")
		scorer := scorerFunc(func(ctx context.Context, c models.RubricCriterion) (models.CriterionResult, error) {
			if c.ID == "criterion_1" {
				return models.CriterionResult{}, boom
			}
			select {
			case <-ctx.Done():
				return models.CriterionResult{}, ctx.Err()
			case <-time.After(5 * time.Second):
				return models.CriterionResult{}, errors.New("sibling was not canceled")
			}
		})
		o := NewParallelScoringOrchestrator(scorer, nil, WithCancelOnFailure(true))

		_, err := o.ScoreAll(ctx, "openai", models.RubricTypeAnalytic, makeCriteria(3), transcript, 3)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("canceled context stops before the first batch", func(t *testing.T) {
		var calls atomic.Int32
		scorer := scorerFunc(func(ctx context.Context, c models.RubricCriterion) (models.CriterionResult, error) {
			calls.Add(1)
			return models.CriterionResult{}, nil
		})
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := NewParallelScoringOrchestrator(scorer, nil).ScoreAll(canceled, "openai", models.RubricTypeAnalytic, makeCriteria(2), transcript, 5)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls.Load())
	})
}
