package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/godilite/rubric-grader/internal/config"
	"github.com/godilite/rubric-grader/internal/models"
	"github.com/godilite/rubric-grader/internal/service"
)

var evaluateFlags struct {
	rubricPath     string
	rubricJSONPath string
	transcripts    []string
	student        string
	provider       string
	batchSize      int
	dbPath         string
	format         string
	outPath        string
	learnerReport  bool
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score one or more transcripts against a rubric",
	Long: "Evaluate extracts the rubric once, then scores every transcript criterion\n" +
		"by criterion and prints the aggregated report for each.",
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evaluateFlags.rubricPath, "rubric", "", "Path to the rubric text file")
	f.StringVar(&evaluateFlags.rubricJSONPath, "rubric-json", "", "Path to a structured rubric written by extract")
	f.StringArrayVarP(&evaluateFlags.transcripts, "transcript", "t", nil, "Transcript file to score (repeatable, required)")
	f.StringVar(&evaluateFlags.student, "student", "", "Student identifier recorded with each evaluation")
	f.StringVar(&evaluateFlags.provider, "provider", "", "LLM provider (openai or anthropic); defaults to LLM_PROVIDER")
	f.IntVar(&evaluateFlags.batchSize, "batch-size", 0, "Criteria scored concurrently per batch; defaults to SCORING_BATCH_SIZE")
	f.StringVar(&evaluateFlags.dbPath, "db", ":memory:", "SQLite database evaluations are saved to")
	f.StringVar(&evaluateFlags.format, "format", formatJSON, "Output format: json or yaml")
	f.StringVarP(&evaluateFlags.outPath, "output", "o", "", "Write results to this file instead of stdout")
	f.BoolVar(&evaluateFlags.learnerReport, "learner-report", false, "Also generate learner-facing feedback for each transcript")

	evaluateCmd.MarkFlagsMutuallyExclusive("rubric", "rubric-json")
	evaluateCmd.MarkFlagsOneRequired("rubric", "rubric-json")
	_ = evaluateCmd.MarkFlagRequired("transcript")
}

// transcriptResult is one transcript's entry in the evaluate output.
type transcriptResult struct {
	Transcript    string                `json:"transcript" yaml:"transcript"`
	Evaluation    models.Evaluation     `json:"evaluation" yaml:"evaluation"`
	LearnerReport *models.LearnerReport `json:"learner_report,omitempty" yaml:"learner_report,omitempty"`
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	if err := checkFormat(evaluateFlags.format); err != nil {
		return err
	}
	if evaluateFlags.batchSize < 0 {
		return errors.New("--batch-size must not be negative")
	}

	cfg := config.LoadFromEnv()
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx := cmd.Context()
	svc, closeDB, err := newEvaluationService(ctx, cfg, logger, evaluateFlags.dbPath, evaluateFlags.batchSize)
	if err != nil {
		return err
	}
	defer closeDB()

	rubric, err := loadRubric(cmd, svc)
	if err != nil {
		return err
	}
	logger.Info("rubric ready",
		zap.String("title", rubric.Title),
		zap.Int("criteria", len(rubric.Criteria)),
		zap.Float64("max_total_score", rubric.MaxTotalScore))

	results := make([]transcriptResult, 0, len(evaluateFlags.transcripts))
	for _, path := range evaluateFlags.transcripts {
		transcript, err := readText(path)
		if err != nil {
			return err
		}

		evaluation, err := svc.Evaluate(ctx, service.EvaluateRequest{
			Provider:          evaluateFlags.provider,
			Rubric:            &rubric,
			Transcript:        transcript,
			StudentIdentifier: evaluateFlags.student,
		})
		if err != nil {
			return fmt.Errorf("evaluate %s: %w", path, err)
		}

		res := transcriptResult{Transcript: transcriptName(path), Evaluation: evaluation}
		if evaluateFlags.learnerReport {
			report, err := svc.GenerateLearnerReport(ctx, evaluateFlags.provider, evaluation.ID)
			if err != nil {
				return fmt.Errorf("learner report for %s: %w", path, err)
			}
			res.LearnerReport = &report
		}
		results = append(results, res)
	}

	return writeOutput(cmd.OutOrStdout(), evaluateFlags.outPath, evaluateFlags.format, results)
}

func loadRubric(cmd *cobra.Command, svc *service.EvaluationService) (models.StructuredRubric, error) {
	if evaluateFlags.rubricJSONPath != "" {
		data, err := os.ReadFile(evaluateFlags.rubricJSONPath)
		if err != nil {
			return models.StructuredRubric{}, fmt.Errorf("read %s: %w", evaluateFlags.rubricJSONPath, err)
		}
		var rubric models.StructuredRubric
		if err := json.Unmarshal(data, &rubric); err != nil {
			return models.StructuredRubric{}, fmt.Errorf("decode %s: %w", evaluateFlags.rubricJSONPath, err)
		}
		if len(rubric.Criteria) == 0 {
			return models.StructuredRubric{}, service.ErrNoCriteria
		}
		if rubric.RubricType == "" {
			rubric.RubricType = models.RubricTypeAnalytic
		}
		return rubric, nil
	}

	text, err := readText(evaluateFlags.rubricPath)
	if err != nil {
		return models.StructuredRubric{}, err
	}
	rubric, err := svc.ExtractRubric(cmd.Context(), evaluateFlags.provider, text)
	if err != nil {
		return models.StructuredRubric{}, fmt.Errorf("extract rubric: %w", err)
	}
	return rubric, nil
}
