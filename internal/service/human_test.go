package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godilite/rubric-grader/internal/models"
	"github.com/godilite/rubric-grader/internal/service/mocks"
)

func gradedEvaluation() models.Evaluation {
	return models.Evaluation{
		ID:          "eval-1",
		RubricTitle: "Communication",
		Results: []models.CriterionResult{
			{Name: "Empathy", Score: 4, MaxScore: 5},
			{Name: "Clarity", Score: 2, MaxScore: 5},
			{Name: "Closure", Score: 1, MaxScore: 2},
		},
		Report: models.AggregateReport{TotalScore: 7, MaxTotalScore: 12},
	}
}

func TestCompareGradings(t *testing.T) {
	graded := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	g := models.HumanGrading{
		EvaluationID:  "eval-1",
		GraderName:    "Dr. Okafor",
		TotalScore:    9,
		MaxTotalScore: 13,
		Scores: []models.HumanCriterionScore{
			{Name: " empathy ", Score: 5, MaxScore: 5, Feedback: "warm"},
			{Name: "CLARITY", Score: 1, MaxScore: 5},
			{Name: "Professionalism", Score: 3, MaxScore: 3},
		},
		CreatedAt: graded,
	}

	c := CompareGradings(gradedEvaluation(), g)

	assert.Equal(t, "eval-1", c.EvaluationID)
	assert.Equal(t, "Communication", c.RubricTitle)
	assert.Equal(t, "Dr. Okafor", c.GraderName)
	assert.Equal(t, -2.0, c.TotalDifference)
	assert.Equal(t, 2, c.MatchedCriteria)
	// Differences are -1 and +1.
	assert.Equal(t, 0.0, c.MeanDifference)
	assert.Equal(t, 1.0, c.MeanAbsoluteDifference)
	assert.Equal(t, graded, c.GradedAt)

	require.Len(t, c.Criteria, 4)
	assert.Equal(t, "Empathy", c.Criteria[0].Name)
	assert.Equal(t, -1.0, *c.Criteria[0].Difference)
	assert.Equal(t, "warm", c.Criteria[0].HumanFeedback)
	assert.Equal(t, 1.0, *c.Criteria[1].Difference)

	closure := c.Criteria[2]
	assert.Equal(t, "Closure", closure.Name)
	assert.Nil(t, closure.HumanScore)
	assert.Nil(t, closure.Difference)

	extra := c.Criteria[3]
	assert.Equal(t, "Professionalism", extra.Name)
	assert.Nil(t, extra.AIScore)
	assert.Equal(t, 3.0, *extra.HumanScore)
	assert.Nil(t, extra.Difference)
}

func TestCompareGradings_NoMatches(t *testing.T) {
	c := CompareGradings(gradedEvaluation(), models.HumanGrading{
		Scores: []models.HumanCriterionScore{{Name: "Timeliness", Score: 1, MaxScore: 1}},
	})
	assert.Zero(t, c.MatchedCriteria)
	assert.Zero(t, c.MeanDifference)
	assert.Zero(t, c.MeanAbsoluteDifference)
	assert.Len(t, c.Criteria, 4)
}

func TestEvaluationService_SaveHumanGrading(t *testing.T) {
	ctx := context.Background()
	found := func(ctx context.Context, id string) (models.Evaluation, error) { return gradedEvaluation(), nil }

	t.Run("totals are summed and grading saved", func(t *testing.T) {
		var saved models.HumanGrading
		repo := &mocks.MockEvaluationRepository{
			GetEvaluationFunc: found,
			SaveHumanGradingFunc: func(ctx context.Context, g models.HumanGrading) error {
				saved = g
				return nil
			},
		}
		s := newTestEvaluationService(&stubExtractor{}, &stubBatchScorer{}, repo)

		got, err := s.SaveHumanGrading(ctx, models.HumanGrading{
			EvaluationID: "eval-1",
			GraderName:   "  Dr. Okafor ",
			TotalScore:   99,
			Scores: []models.HumanCriterionScore{
				{Name: " Empathy", Score: 4.5, MaxScore: 5},
				{Name: "Clarity", Score: 3, MaxScore: 5, Feedback: " concise "},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, 7.5, got.TotalScore)
		assert.Equal(t, 10.0, got.MaxTotalScore)
		assert.Equal(t, "Dr. Okafor", got.GraderName)
		assert.Equal(t, "Empathy", got.Scores[0].Name)
		assert.Equal(t, "concise", got.Scores[1].Feedback)
		assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), got.CreatedAt)
		assert.Equal(t, got, saved)
	})

	t.Run("invalid scores never reach storage", func(t *testing.T) {
		tests := []struct {
			name   string
			scores []models.HumanCriterionScore
			want   error
		}{
			{name: "empty", want: ErrNoHumanScores},
			{name: "blank name", scores: []models.HumanCriterionScore{{Name: "  ", Score: 1, MaxScore: 1}}, want: ErrInvalidHumanScore},
			{name: "negative", scores: []models.HumanCriterionScore{{Name: "Empathy", Score: -1, MaxScore: 5}}, want: ErrInvalidHumanScore},
			{name: "above maximum", scores: []models.HumanCriterionScore{{Name: "Empathy", Score: 6, MaxScore: 5}}, want: ErrInvalidHumanScore},
			{name: "not finite", scores: []models.HumanCriterionScore{{Name: "Empathy", Score: math.NaN(), MaxScore: 5}}, want: ErrInvalidHumanScore},
			{name: "duplicate name", scores: []models.HumanCriterionScore{{Name: "Empathy", Score: 1}, {Name: "empathy ", Score: 2}}, want: ErrInvalidHumanScore},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := newTestEvaluationService(&stubExtractor{}, &stubBatchScorer{}, &mocks.MockEvaluationRepository{})
				_, err := s.SaveHumanGrading(ctx, models.HumanGrading{EvaluationID: "eval-1", Scores: tt.scores})
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("unknown evaluation", func(t *testing.T) {
		repo := &mocks.MockEvaluationRepository{
			GetEvaluationFunc: func(ctx context.Context, id string) (models.Evaluation, error) {
				return models.Evaluation{}, models.ErrNotFound
			},
		}
		s := newTestEvaluationService(&stubExtractor{}, &stubBatchScorer{}, repo)
		_, err := s.SaveHumanGrading(ctx, models.HumanGrading{EvaluationID: "missing", Scores: []models.HumanCriterionScore{{Name: "Empathy", Score: 1}}})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("storage failure", func(t *testing.T) {
		repo := &mocks.MockEvaluationRepository{
			GetEvaluationFunc: found,
			SaveHumanGradingFunc: func(ctx context.Context, g models.HumanGrading) error {
				return errors.New("disk full")
			},
		}
		s := newTestEvaluationService(&stubExtractor{}, &stubBatchScorer{}, repo)
		_, err := s.SaveHumanGrading(ctx, models.HumanGrading{EvaluationID: "eval-1", Scores: []models.HumanCriterionScore{{Name: "Empathy", Score: 1}}})
		assert.ErrorIs(t, err, ErrStorageFailure)
	})
}

func TestEvaluationService_CompareWithHuman(t *testing.T) {
	ctx := context.Background()

	t.Run("compares saved gradings", func(t *testing.T) {
		repo := &mocks.MockEvaluationRepository{
			GetEvaluationFunc: func(ctx context.Context, id string) (models.Evaluation, error) { return gradedEvaluation(), nil },
			GetHumanGradingFunc: func(ctx context.Context, id string) (models.HumanGrading, error) {
				assert.Equal(t, "eval-1", id)
				return models.HumanGrading{TotalScore: 6, Scores: []models.HumanCriterionScore{{Name: "Empathy", Score: 3, MaxScore: 5}}}, nil
			},
		}
		s := newTestEvaluationService(&stubExtractor{}, &stubBatchScorer{}, repo)

		c, err := s.CompareWithHuman(ctx, "eval-1")
		require.NoError(t, err)
		assert.Equal(t, 1.0, c.TotalDifference)
		assert.Equal(t, 1, c.MatchedCriteria)
		assert.Equal(t, 1.0, c.MeanDifference)
	})

	t.Run("no human grading", func(t *testing.T) {
		repo := &mocks.MockEvaluationRepository{
			GetEvaluationFunc: func(ctx context.Context, id string) (models.Evaluation, error) { return gradedEvaluation(), nil },
			GetHumanGradingFunc: func(ctx context.Context, id string) (models.HumanGrading, error) {
				return models.HumanGrading{}, models.ErrNotFound
			},
		}
		s := newTestEvaluationService(&stubExtractor{}, &stubBatchScorer{}, repo)
		_, err := s.CompareWithHuman(ctx, "eval-1")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
