package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/godilite/rubric-grader/internal/models"
)

const (
	// StrengthThreshold is the minimum score ratio for a key strength.
	StrengthThreshold = 0.8
	// DevelopmentThreshold is the maximum score ratio for a development area.
	DevelopmentThreshold = 0.6
	// MaxHighlights caps each of the strength and development lists.
	MaxHighlights = 3
)

var bandFloors = []struct {
	floor float64
	band  models.PerformanceBand
}{
	{90, models.BandOutstanding},
	{80, models.BandStrong},
	{65, models.BandCompetent},
	{50, models.BandDeveloping},
}

// BandFor maps a percentage onto a performance band.
func BandFor(percent float64) models.PerformanceBand {
	for _, b := range bandFloors {
		if percent >= b.floor {
			return b.band
		}
	}
	return models.BandNeedsSupport
}

// Aggregate totals a set of criterion results into a report. It makes no
// external calls and returns the same report for the same input.
func Aggregate(results []models.CriterionResult) models.AggregateReport {
	var total, maxTotal float64
	for _, r := range results {
		total += r.Score
		maxTotal += r.MaxScore
	}

	var percent float64
	if maxTotal > 0 {
		percent = round2(total / maxTotal * 100)
	}

	report := models.AggregateReport{
		TotalScore:          round2(total),
		MaxTotalScore:       round2(maxTotal),
		Percent:             percent,
		PerformanceBand:     BandFor(percent),
		KeyStrengths:        []string{},
		AreasForDevelopment: []string{},
	}

	strengths := rank(results, func(r models.CriterionResult) bool { return r.Ratio() >= StrengthThreshold }, true)
	areas := rank(results, func(r models.CriterionResult) bool { return r.Ratio() <= DevelopmentThreshold }, false)
	for _, r := range strengths {
		report.KeyStrengths = append(report.KeyStrengths, label(r))
	}
	for _, r := range areas {
		report.AreasForDevelopment = append(report.AreasForDevelopment, label(r))
	}

	report.Summary = summary(report, strengths, areas)
	report.NarrativeFeedback = narrative(report, strengths, areas)
	return report
}

// rank filters results and orders them by ratio, keeping input order on ties.
func rank(results []models.CriterionResult, keep func(models.CriterionResult) bool, descending bool) []models.CriterionResult {
	var out []models.CriterionResult
	for _, r := range results {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Ratio() > out[j].Ratio()
		}
		return out[i].Ratio() < out[j].Ratio()
	})
	if len(out) > MaxHighlights {
		out = out[:MaxHighlights]
	}
	return out
}

func label(r models.CriterionResult) string {
	return fmt.Sprintf("%s (%s/%s)", r.Name, formatScore(round2(r.Score)), formatScore(r.MaxScore))
}

func summary(report models.AggregateReport, strengths, areas []models.CriterionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall performance is %.1f%% (%s).", report.Percent, report.PerformanceBand)
	if len(strengths) > 0 {
		fmt.Fprintf(&b, " Strongest area: %s.", label(strengths[0]))
	}
	if len(areas) > 0 {
		fmt.Fprintf(&b, " Main focus for growth: %s.", label(areas[0]))
	}
	return b.String()
}

func narrative(report models.AggregateReport, strengths, areas []models.CriterionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total score: %s/%s (%.1f%%, %s).",
		formatScore(report.TotalScore), formatScore(report.MaxTotalScore), report.Percent, report.PerformanceBand)

	b.WriteString("\nKey strengths:")
	if len(strengths) == 0 {
		b.WriteString(" none reached the strength threshold.")
	}
	for _, r := range strengths {
		fmt.Fprintf(&b, "\n- %s: %s", label(r), r.Justification)
	}

	b.WriteString("\nAreas for development:")
	if len(areas) == 0 {
		b.WriteString(" no criterion fell below the development threshold.")
	}
	for _, r := range areas {
		fmt.Fprintf(&b, "\n- %s: %s", label(r), r.Justification)
	}
	return b.String()
}
