package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/statementhq/royalty-pipeline/internal/async"
	"github.com/statementhq/royalty-pipeline/internal/common"
	"github.com/statementhq/royalty-pipeline/internal/embedding"
	"github.com/statementhq/royalty-pipeline/internal/pipeline"
	"github.com/statementhq/royalty-pipeline/internal/repository"
	"github.com/statementhq/royalty-pipeline/internal/server"
	"github.com/statementhq/royalty-pipeline/internal/storage"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, 3*time.Second, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}

	blobs, err := storage.NewS3Store(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("creating blob store", "error", err)
		os.Exit(1)
	}

	embedder := embedding.NewClient(embedding.Config{
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	}, logger)

	queueRepo := repository.NewQueueRepository(pool, logger)
	fileRepo := repository.NewFileRepository(pool, logger)
	rowRepo := repository.NewRowRepository(pool, logger)

	proc := pipeline.NewProcessor(queueRepo, fileRepo, rowRepo, blobs, embedder, logger)

	jobs := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Worker.Workers),
		async.WithQueueSize(cfg.Worker.QueueSize),
		async.WithProcessTimeout(cfg.Worker.ProcessTimeout),
	)

	sweeper := async.NewSweeper(queueRepo, cfg.Worker.SweepInterval, cfg.Worker.StaleThreshold, logger)
	go sweeper.Run(ctx)

	srv := server.New(cfg.Server.HTTPAddr, queueRepo, fileRepo, blobs, jobs, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	jobs.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
