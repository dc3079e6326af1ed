package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/godilite/rubric-grader/internal/config"
	handler "github.com/godilite/rubric-grader/internal/grpc"
	"github.com/godilite/rubric-grader/internal/llm"
	"github.com/godilite/rubric-grader/internal/prompt"
	"github.com/godilite/rubric-grader/internal/repository"
	"github.com/godilite/rubric-grader/internal/service"
	"github.com/godilite/rubric-grader/pkg/cache"
	dbbuilder "github.com/godilite/rubric-grader/pkg/database"
	grpcsrv "github.com/godilite/rubric-grader/pkg/grpc/server"
)

const (
	maxRequestBytes   = 16 << 20
	maxConnectionIdle = 15 * time.Minute
)

type App struct {
	logger     *zap.Logger
	dbPool     *sql.DB
	cache      handler.Cacher
	grpcServer *grpcsrv.Server
}

// Pipeline holds the grading services built from one configuration.
type Pipeline struct {
	Registry     *llm.Registry
	Extractor    *service.RubricExtractionService
	Scorer       *service.CriterionScoringService
	Orchestrator *service.ParallelScoringOrchestrator
	Reporter     *service.LearnerReportService
}

// NewPipeline builds the client registry and the services on top of it. It
// fails when the default provider is not fully configured.
func NewPipeline(cfg *config.Config, logger *zap.Logger, opts ...service.OrchestratorOption) (*Pipeline, error) {
	registry := llm.NewRegistry(cfg, prompt.Specs(), logger)
	if _, err := registry.Client(cfg.DefaultProvider, llm.PurposeScoring); err != nil {
		return nil, fmt.Errorf("default LLM provider: %w", err)
	}
	logger.Info("LLM clients initialized",
		zap.String("default_provider", registry.DefaultProvider()),
		zap.Strings("available", registry.Available()))

	scorer := service.NewCriterionScoringService(registry, logger)
	return &Pipeline{
		Registry:     registry,
		Extractor:    service.NewRubricExtractionService(registry, logger),
		Scorer:       scorer,
		Orchestrator: service.NewParallelScoringOrchestrator(scorer, logger, opts...),
		Reporter:     service.NewLearnerReportService(registry, logger),
	}, nil
}

// NewApp wires storage, cache, services and the gRPC server. serverOpts are
// applied after the configured defaults.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, serverOpts ...grpcsrv.Option) (*App, error) {
	pipeline, err := NewPipeline(cfg, logger, service.WithBatchObserver(func(batch, size int) {
		logger.Debug("scoring batch started", zap.Int("batch", batch), zap.Int("size", size))
	}))
	if err != nil {
		return nil, err
	}

	if cfg.DBDriver == "sqlite3" && cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dbPool, err := dbbuilder.New(ctx,
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
		dbbuilder.WithMigrations(repository.Schema...),
	)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized", zap.String("path", cfg.DBPath))

	var cacheClient handler.Cacher = cache.Noop{}
	if cfg.RedisAddr != "" {
		redisCache, err := cache.New(ctx, cache.WithAddress(cfg.RedisAddr))
		if err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("cache init failed: %w", err)
		}
		cacheClient = redisCache
		logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Info("REDIS_ADDR not set, response cache disabled")
	}

	evaluations := service.NewEvaluationService(
		pipeline.Extractor,
		pipeline.Orchestrator,
		pipeline.Reporter,
		repository.NewEvaluationRepository(dbPool),
		logger,
		service.WithDefaultProvider(cfg.DefaultProvider),
		service.WithBatchSize(cfg.ScoringBatchSize),
	)

	grpcHandlers := handler.NewGRPCHandlers(evaluations, cacheClient, logger, cfg.CacheTTL, requestBudget(cfg))

	grpcServer, err := grpcsrv.New(append([]grpcsrv.Option{
		grpcsrv.WithPort(cfg.GRPCPort),
		grpcsrv.WithLogger(logger),
		grpcsrv.WithReflection(cfg.GRPCReflectionEnabled),
		grpcsrv.WithLogging(true),
		grpcsrv.WithRecovery(true),
		grpcsrv.WithMaxRecvMsgSize(maxRequestBytes),
		grpcsrv.WithMaxConnectionIdle(maxConnectionIdle),
	}, serverOpts...)...)
	if err != nil {
		cacheClient.Close()
		dbPool.Close()
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}

	grpcServer.Register(handler.ServiceName, func(s *grpc.Server) {
		handler.RegisterGradingServer(s, grpcHandlers)
	})

	return &App{
		logger:     logger,
		dbPool:     dbPool,
		cache:      cacheClient,
		grpcServer: grpcServer,
	}, nil
}

// requestBudget bounds one gRPC request that calls a model. An evaluation
// may make an extraction call plus one call per criterion batch.
func requestBudget(cfg *config.Config) time.Duration {
	return 10 * cfg.RequestTimeout
}

// Start begins serving in the background.
func (a *App) Start() {
	a.logger.Info("application starting")
	a.grpcServer.Start()
}

// Addr is the address the gRPC server listens on.
func (a *App) Addr() string {
	return a.grpcServer.Addr().String()
}

// Shutdown stops the gRPC server and releases the cache and database.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("application shutting down")

	var errs []error
	if err := a.grpcServer.Shutdown(ctx); err != nil {
		a.logger.Warn("gRPC shutdown did not complete gracefully", zap.Error(err))
		errs = append(errs, err)
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("cache shutdown error", zap.Error(err))
		errs = append(errs, err)
	}
	if err := a.dbPool.Close(); err != nil {
		a.logger.Error("database shutdown error", zap.Error(err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run starts the application and blocks until a shutdown signal is received.
func (a *App) Run() error {
	a.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.Shutdown(ctx)
	if err == nil {
		a.logger.Info("graceful shutdown completed")
	}
	_ = a.logger.Sync()
	return nil
}
