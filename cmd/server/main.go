package main

import (
	"context"
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/godilite/rubric-grader/internal/app"
	"github.com/godilite/rubric-grader/internal/config"
)

func main() {
	envErr := godotenv.Load(".env")

	cfg := config.LoadFromEnv()

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn("ignoring unreadable .env file", zap.Error(envErr))
	}
	logger.Info("configuration loaded",
		zap.String("env", cfg.AppEnv),
		zap.String("llm_provider", cfg.DefaultProvider),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.String("db_path", cfg.DBPath),
		zap.Int("scoring_batch_size", cfg.ScoringBatchSize),
	)

	application, err := app.NewApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := application.Run(); err != nil {
		logger.Fatal("Application exited with error", zap.Error(err))
	}
}
