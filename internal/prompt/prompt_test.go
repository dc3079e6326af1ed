package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godilite/rubric-grader/internal/llm"
	"github.com/godilite/rubric-grader/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestExtraction(t *testing.T) {
	p := Extraction("\n  Empathy (5 pts)\nClarity (5 pts)  \n")

	assert.Contains(t, p, "Return ONLY a JSON object")
	assert.Contains(t, p, "Never invent extra criteria")
	assert.Contains(t, p, "Do not write any prose")
	assert.Contains(t, p, `"max_total_score"`)
	assert.Contains(t, p, `"keywords" (array of short phrases`)
	assert.Contains(t, p, "analytic, holistic, single_point, checklist, hybrid")
	assert.True(t, strings.HasSuffix(p, "RUBRIC SOURCE:\nEmpathy (5 pts)\nClarity (5 pts)"))
}

func TestCriterion(t *testing.T) {
	c := models.RubricCriterion{
		ID:       "criterion_1",
		Name:     "Empathy",
		MaxScore: 5,
		Metadata: models.CriterionMetadata{
			ChecklistRequired: ptr(true),
			PerformanceLevels: []models.PerformanceLevel{
				{Label: "Exemplary", Description: "Acknowledges feelings", Score: ptr(5.0)},
				{Description: "Rarely acknowledges feelings", Score: ptr(1.0)},
			},
		},
	}

	p := Criterion(c, models.RubricTypeAnalytic, "  Doctor: I understand this is hard.  ")

	assert.Contains(t, p, "Rubric item: Empathy")
	assert.Contains(t, p, "Maximum score: 5\n")
	assert.Contains(t, p, "Rubric type: analytic")
	assert.Contains(t, p, "Checklist requirement: required")
	assert.Contains(t, p, "- Score 5: Acknowledges feelings (Exemplary)")
	assert.Contains(t, p, "- Score 1: Rarely acknowledges feelings (Score 1)")
	assert.Contains(t, p, "Evidence must be a verbatim quotation from the transcript.")
	assert.Contains(t, p, "Do not invent or assume transcript content.")
	assert.Contains(t, p, `{"evaluation": {"score": number, "justification": string`)
	assert.True(t, strings.HasSuffix(p, "Transcript:\nDoctor: I understand this is hard."))
}

func TestCriterion_BlankDescriptionRendersEmpty(t *testing.T) {
	p := Criterion(models.RubricCriterion{Name: "Clarity", Description: "   \t", MaxScore: 2.5}, models.RubricTypeHybrid, "text")

	assert.Contains(t, p, "Description: \n")
	assert.NotContains(t, p, "None")
	assert.NotContains(t, p, "<nil>")
	assert.Contains(t, p, "Maximum score: 2.5")
	assert.NotContains(t, p, "Checklist requirement")
	assert.NotContains(t, p, "Scoring guidance")
}

func TestCriterion_Deterministic(t *testing.T) {
	c := models.RubricCriterion{Name: "Clarity", MaxScore: 3}
	assert.Equal(t,
		Criterion(c, models.RubricTypeAnalytic, "t"),
		Criterion(c, models.RubricTypeAnalytic, "t"))
}

func TestLearnerReport(t *testing.T) {
	report := models.AggregateReport{
		TotalScore:      7,
		MaxTotalScore:   10,
		PerformanceBand: models.BandCompetent,
		Summary:         "Overall performance is 70.0% (Competent).",
	}
	results := []models.CriterionResult{
		{Name: "Empathy", Score: 4, MaxScore: 5, Justification: "Warm tone."},
		{Name: "Clarity", Score: 3, MaxScore: 5, Justification: "Some jargon."},
	}

	p := LearnerReport("OSCE", report, results, strings.Repeat("a", 2500))

	assert.Contains(t, p, "Rubric: OSCE")
	assert.Contains(t, p, "Performance band: Competent")
	assert.Contains(t, p, "Total score: 7/10")
	assert.Contains(t, p, "- Empathy: 4/5 - Warm tone.")
	assert.Contains(t, p, "- Clarity: 3/5 - Some jargon.")
	assert.Contains(t, p, `"actionable_suggestions"`)
	assert.Contains(t, p, strings.Repeat("a", 2000))
	assert.NotContains(t, p, strings.Repeat("a", 2001))
}

func TestSchemas(t *testing.T) {
	t.Run("extraction schema is strict", func(t *testing.T) {
		s := ExtractionSchema()
		assert.Equal(t, "rubric_extraction", s.Name)
		assert.Equal(t, false, s.Definition["additionalProperties"])
		assert.ElementsMatch(t,
			[]any{"criteria", "max_total_score", "rubric_type", "summary", "title"},
			s.Definition["required"])

		props := s.Definition["properties"].(map[string]any)
		criterion := props["criteria"].(map[string]any)["items"].(map[string]any)
		assert.Contains(t, criterion["required"], "keywords")
		keywords := criterion["properties"].(map[string]any)["keywords"].(map[string]any)
		assert.Equal(t, "array", keywords["type"])
	})

	t.Run("scoring schema wraps evaluation", func(t *testing.T) {
		s := ScoringSchema()
		props := s.Definition["properties"].(map[string]any)
		evaluation := props["evaluation"].(map[string]any)
		assert.Equal(t, []any{"evidence", "justification", "score"}, evaluation["required"])
	})

	t.Run("specs cover every purpose", func(t *testing.T) {
		specs := Specs()
		require.Len(t, specs, 3)
		assert.Equal(t, ExtractionSystem, specs[llm.PurposeExtraction].System)
		assert.Equal(t, ScoringSystem, specs[llm.PurposeScoring].System)
		assert.Equal(t, NarrativeSystem, specs[llm.PurposeNarrative].System)
	})
}
