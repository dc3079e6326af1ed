package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/godilite/rubric-grader/internal/config"
)

var extractFlags struct {
	rubricPath string
	provider   string
	dbPath     string
	format     string
	outPath    string
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a structured rubric from rubric text",
	Long:  "Extract sends rubric text to the model once and prints the structured\nrubric. The output can be passed back to evaluate with --rubric-json.",
	RunE:  runExtract,
}

func init() {
	f := extractCmd.Flags()
	f.StringVar(&extractFlags.rubricPath, "rubric", "", "Path to the rubric text file (required)")
	f.StringVar(&extractFlags.provider, "provider", "", "LLM provider (openai or anthropic); defaults to LLM_PROVIDER")
	f.StringVar(&extractFlags.dbPath, "db", ":memory:", "SQLite database used to reuse rubrics extracted from identical text")
	f.StringVar(&extractFlags.format, "format", formatJSON, "Output format: json or yaml")
	f.StringVarP(&extractFlags.outPath, "output", "o", "", "Write the rubric to this file instead of stdout")

	_ = extractCmd.MarkFlagRequired("rubric")
}

func runExtract(cmd *cobra.Command, _ []string) error {
	if err := checkFormat(extractFlags.format); err != nil {
		return err
	}
	text, err := readText(extractFlags.rubricPath)
	if err != nil {
		return err
	}

	cfg := config.LoadFromEnv()
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx := cmd.Context()
	svc, closeDB, err := newEvaluationService(ctx, cfg, logger, extractFlags.dbPath, 0)
	if err != nil {
		return err
	}
	defer closeDB()

	rubric, err := svc.ExtractRubric(ctx, extractFlags.provider, text)
	if err != nil {
		return fmt.Errorf("extract rubric: %w", err)
	}
	return writeOutput(cmd.OutOrStdout(), extractFlags.outPath, extractFlags.format, rubric)
}
