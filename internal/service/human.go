package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/godilite/rubric-grader/internal/models"
)

// SaveHumanGrading validates g and stores it as the reference grading of its
// evaluation, replacing any earlier one. Totals are summed from the
// criterion scores.
func (s *EvaluationService) SaveHumanGrading(ctx context.Context, g models.HumanGrading) (models.HumanGrading, error) {
	if err := validateHumanScores(g.Scores); err != nil {
		return models.HumanGrading{}, err
	}
	if _, err := s.repo.GetEvaluation(ctx, g.EvaluationID); err != nil {
		return models.HumanGrading{}, err
	}

	g.GraderName = strings.TrimSpace(g.GraderName)
	g.Notes = strings.TrimSpace(g.Notes)
	g.TotalScore, g.MaxTotalScore = 0, 0
	for i := range g.Scores {
		g.Scores[i].Name = strings.TrimSpace(g.Scores[i].Name)
		g.Scores[i].Feedback = strings.TrimSpace(g.Scores[i].Feedback)
		g.TotalScore += g.Scores[i].Score
		g.MaxTotalScore += g.Scores[i].MaxScore
	}
	g.TotalScore = round2(g.TotalScore)
	g.MaxTotalScore = round2(g.MaxTotalScore)
	g.CreatedAt = s.now().UTC()

	if err := s.repo.SaveHumanGrading(ctx, g); err != nil {
		s.logger.Error("failed to save human grading", zap.String("evaluation_id", g.EvaluationID), zap.Error(err))
		return models.HumanGrading{}, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	s.logger.Info("human grading saved",
		zap.String("evaluation_id", g.EvaluationID),
		zap.Int("criteria", len(g.Scores)),
		zap.Float64("total_score", g.TotalScore),
	)
	return g, nil
}

// CompareWithHuman compares a saved evaluation with its human grading.
func (s *EvaluationService) CompareWithHuman(ctx context.Context, evaluationID string) (models.HumanComparison, error) {
	evaluation, err := s.repo.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return models.HumanComparison{}, err
	}
	grading, err := s.repo.GetHumanGrading(ctx, evaluationID)
	if err != nil {
		return models.HumanComparison{}, err
	}
	return CompareGradings(evaluation, grading), nil
}

func (s *EvaluationService) DeleteHumanGrading(ctx context.Context, evaluationID string) error {
	return s.repo.DeleteHumanGrading(ctx, evaluationID)
}

func validateHumanScores(scores []models.HumanCriterionScore) error {
	if len(scores) == 0 {
		return ErrNoHumanScores
	}
	seen := make(map[string]struct{}, len(scores))
	for i, sc := range scores {
		key := criterionKey(sc.Name)
		switch {
		case key == "":
			return fmt.Errorf("%w: score %d has no criterion name", ErrInvalidHumanScore, i)
		case !finite(sc.Score) || !finite(sc.MaxScore):
			return fmt.Errorf("%w: %q is not a finite number", ErrInvalidHumanScore, sc.Name)
		case sc.Score < 0 || sc.MaxScore < 0:
			return fmt.Errorf("%w: %q is negative", ErrInvalidHumanScore, sc.Name)
		case sc.MaxScore > 0 && sc.Score > sc.MaxScore:
			return fmt.Errorf("%w: %q scores %s of %s", ErrInvalidHumanScore, sc.Name, formatScore(sc.Score), formatScore(sc.MaxScore))
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %q is listed twice", ErrInvalidHumanScore, sc.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// criterionKey matches criterion names ignoring case and spacing.
func criterionKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// CompareGradings matches criteria by name. AI criteria come first in
// evaluation order, followed by human-only criteria in grading order.
func CompareGradings(e models.Evaluation, g models.HumanGrading) models.HumanComparison {
	c := models.HumanComparison{
		EvaluationID:       e.ID,
		RubricTitle:        e.RubricTitle,
		GraderName:         g.GraderName,
		Notes:              g.Notes,
		AITotalScore:       e.Report.TotalScore,
		HumanTotalScore:    g.TotalScore,
		AIMaxTotalScore:    e.Report.MaxTotalScore,
		HumanMaxTotalScore: g.MaxTotalScore,
		TotalDifference:    round2(e.Report.TotalScore - g.TotalScore),
		Criteria:           []models.CriterionComparison{},
		GradedAt:           g.CreatedAt,
	}

	human := make(map[string]models.HumanCriterionScore, len(g.Scores))
	for _, sc := range g.Scores {
		human[criterionKey(sc.Name)] = sc
	}
	used := make(map[string]bool, len(g.Scores))

	var sum, absSum float64
	for _, r := range e.Results {
		cc := models.CriterionComparison{
			Name:       r.Name,
			AIScore:    ptr(r.Score),
			AIMaxScore: ptr(r.MaxScore),
		}
		key := criterionKey(r.Name)
		if sc, ok := human[key]; ok && !used[key] {
			used[key] = true
			diff := round2(r.Score - sc.Score)
			cc.HumanScore = ptr(sc.Score)
			cc.HumanMaxScore = ptr(sc.MaxScore)
			cc.HumanFeedback = sc.Feedback
			cc.Difference = ptr(diff)
			sum += diff
			absSum += math.Abs(diff)
			c.MatchedCriteria++
		}
		c.Criteria = append(c.Criteria, cc)
	}
	for _, sc := range g.Scores {
		if used[criterionKey(sc.Name)] {
			continue
		}
		c.Criteria = append(c.Criteria, models.CriterionComparison{
			Name:          sc.Name,
			HumanScore:    ptr(sc.Score),
			HumanMaxScore: ptr(sc.MaxScore),
			HumanFeedback: sc.Feedback,
		})
	}

	if c.MatchedCriteria > 0 {
		n := float64(c.MatchedCriteria)
		c.MeanDifference = round2(sum / n)
		c.MeanAbsoluteDifference = round2(absSum / n)
	}
	return c
}

func ptr[T any](v T) *T { return &v }
