package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/godilite/rubric-grader/internal/app"
	"github.com/godilite/rubric-grader/internal/config"
	"github.com/godilite/rubric-grader/internal/repository"
	"github.com/godilite/rubric-grader/internal/service"
	dbbuilder "github.com/godilite/rubric-grader/pkg/database"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// newLogger logs to stderr only with --verbose so stdout stays parseable.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if !rootFlags.verbose {
		return zap.NewNop(), nil
	}
	return config.NewLogger(cfg)
}

// newEvaluationService wires the pipeline over a SQLite database at dsn.
// The returned func closes the database.
func newEvaluationService(ctx context.Context, cfg *config.Config, logger *zap.Logger, dsn string, batchSize int) (*service.EvaluationService, func(), error) {
	pipeline, err := app.NewPipeline(cfg, logger, service.WithBatchObserver(func(batch, size int) {
		logger.Info("scoring batch", zap.Int("batch", batch), zap.Int("size", size))
	}))
	if err != nil {
		return nil, nil, err
	}

	db, err := dbbuilder.New(ctx,
		dbbuilder.WithDriver("sqlite3"),
		dbbuilder.WithDataSource(dsn),
		dbbuilder.WithMigrations(repository.Schema...),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	if batchSize <= 0 {
		batchSize = cfg.ScoringBatchSize
	}
	svc := service.NewEvaluationService(
		pipeline.Extractor,
		pipeline.Orchestrator,
		pipeline.Reporter,
		repository.NewEvaluationRepository(db),
		logger,
		service.WithDefaultProvider(cfg.DefaultProvider),
		service.WithBatchSize(batchSize),
	)
	return svc, func() { _ = db.Close() }, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func checkFormat(format string) error {
	switch format {
	case formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unsupported format %q (want %s or %s)", format, formatJSON, formatYAML)
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// writeOutput renders v to path, or to w when path is empty.
func writeOutput(w io.Writer, path, format string, v any) error {
	if path == "" {
		return render(w, format, v)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f, format, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// transcriptName is the file name without directory or extension.
func transcriptName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
