// Package prompt renders the prompts sent to the LLM. Every function is pure
// and cannot fail.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/godilite/rubric-grader/internal/models"
)

const (
	ExtractionSystem = "You are an assistant that converts free-form grading rubrics into structured JSON. " +
		"Extract every criterion you can find without inventing extra ones. " +
		"Only return valid JSON that matches the provided schema."

	ScoringSystem = "You are an impartial assessor. You score exactly one rubric criterion against a transcript " +
		"and respond with JSON only."

	NarrativeSystem = "You are an educational feedback specialist. You write encouraging, specific and " +
		"constructive feedback for learners and respond with JSON only."
)

// learnerTranscriptLimit bounds how much transcript text is sent with a
// learner report request.
const learnerTranscriptLimit = 2000

// Extraction renders the rubric-extraction prompt for rawText.
func Extraction(rawText string) string {
	types := make([]string, len(models.RubricTypes))
	for i, t := range models.RubricTypes {
		types[i] = string(t)
	}

	lines := []string{
		"Convert the following rubric into JSON.",
		"",
		"Return ONLY a JSON object with exactly these top-level keys:",
		`- "title": string, the rubric title`,
		`- "summary": string, one or two sentences describing what the rubric assesses`,
		`- "max_total_score": number, the total points available`,
		`- "rubric_type": one of ` + strings.Join(types, ", "),
		`- "criteria": array of objects with "name" (string), "description" (string or null), ` +
			`"max_score" (number), "item_type" ("criterion", "checklist" or "holistic"), ` +
			`"weight" (number or null), "checklist_required" (boolean or null), ` +
			`"keywords" (array of short phrases the rubric names as indicators, empty if none) and ` +
			`"performance_levels" (array of {"label", "description", "score"})`,
		"",
		"Rules:",
		"- Extract only criteria that appear in the rubric. Never invent extra criteria.",
		"- Infer missing numeric maxima conservatively; use 1 for checklist items with no points.",
		"- Do not write any prose, explanation or markdown before or after the JSON.",
		"",
		"RUBRIC SOURCE:",
		strings.TrimSpace(rawText),
	}
	return strings.Join(lines, "\n")
}

// Criterion renders the scoring prompt for one criterion. It references no
// other criterion.
func Criterion(c models.RubricCriterion, rubricType models.RubricType, transcript string) string {
	lines := []string{
		"You will receive one rubric criterion (its name, description and scoring scale) and a cleaned transcript.",
		"",
		"Your task: score only this criterion.",
		"",
		"Provide:",
		"- The numeric score.",
		"- A brief justification (1-2 sentences).",
		"- Evidence taken directly from the transcript as an exact quote.",
		"",
		"Rules:",
		"- Do not reference any other criteria.",
		"- Do not invent or assume transcript content.",
		"- Evidence must be a verbatim quotation from the transcript.",
		"",
		"Rubric item: " + strings.TrimSpace(c.Name),
		"Description: " + strings.TrimSpace(c.Description),
		"Maximum score: " + formatNumber(c.MaxScore),
		"Rubric type: " + string(rubricType),
	}

	if c.Metadata.ChecklistRequired != nil {
		requirement := "optional"
		if *c.Metadata.ChecklistRequired {
			requirement = "required"
		}
		lines = append(lines, "Checklist requirement: "+requirement)
	}

	if levels := c.Metadata.PerformanceLevels; len(levels) > 0 {
		lines = append(lines, "", "Scoring guidance:")
		for _, level := range levels {
			lines = append(lines, "- "+levelLine(level))
		}
	}

	lines = append(lines,
		"",
		`Return ONLY JSON of the form {"evaluation": {"score": number, "justification": string, "evidence": string}}.`,
		"",
		"Transcript:",
		strings.TrimSpace(transcript),
	)
	return strings.Join(lines, "\n")
}

// LearnerReport renders the narrative prompt for a scored evaluation.
func LearnerReport(rubricTitle string, report models.AggregateReport, results []models.CriterionResult, transcript string) string {
	var criteria strings.Builder
	for _, r := range results {
		fmt.Fprintf(&criteria, "- %s: %s/%s - %s\n",
			r.Name, formatNumber(r.Score), formatNumber(r.MaxScore), strings.TrimSpace(r.Justification))
	}

	transcript = strings.TrimSpace(transcript)
	if runes := []rune(transcript); len(runes) > learnerTranscriptLimit {
		transcript = string(runes[:learnerTranscriptLimit])
	}

	lines := []string{
		"Generate a learner report for this evaluation.",
		"",
		"Your response must be valid JSON with this exact structure:",
		`{"top_strengths": [string], "growth_opportunities": [string], "actionable_suggestions": [string]}`,
		"",
		"Guidelines:",
		"- Top strengths: identify 3 specific areas where the learner excelled.",
		"- Growth opportunities: identify 3 areas where improvement would help, phrased positively.",
		"- Actionable suggestions: give 3 concrete actions the learner can take.",
		"",
		"Rubric: " + strings.TrimSpace(rubricTitle),
		"Performance band: " + string(report.PerformanceBand),
		"Total score: " + formatNumber(report.TotalScore) + "/" + formatNumber(report.MaxTotalScore),
		"Overall feedback: " + report.Summary,
		"",
		"Criterion scores:",
		strings.TrimRight(criteria.String(), "\n"),
		"",
		"Transcript text:",
		transcript,
	}
	return strings.Join(lines, "\n")
}

func levelLine(level models.PerformanceLevel) string {
	score := "n/a"
	if level.Score != nil {
		score = formatNumber(*level.Score)
	}
	label := strings.TrimSpace(level.Label)
	if label == "" {
		label = "Score " + score
	}
	return fmt.Sprintf("Score %s: %s (%s)", score, strings.TrimSpace(level.Description), label)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
