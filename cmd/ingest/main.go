// Command ingest claims and processes a single queued job by id. Useful for
// reprocessing a failed upload without going through the webhook.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/statementhq/royalty-pipeline/internal/common"
	"github.com/statementhq/royalty-pipeline/internal/embedding"
	"github.com/statementhq/royalty-pipeline/internal/pipeline"
	"github.com/statementhq/royalty-pipeline/internal/repository"
	"github.com/statementhq/royalty-pipeline/internal/storage"
)

func main() {
	jobFlag := flag.String("job", "", "processing_queue job id (UUID)")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	jobID, err := uuid.Parse(*jobFlag)
	if err != nil {
		logger.Error("-job must be a valid UUID", "value", *jobFlag)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

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

	proc := pipeline.NewProcessor(
		repository.NewQueueRepository(pool, logger),
		repository.NewFileRepository(pool, logger),
		repository.NewRowRepository(pool, logger),
		blobs, embedder, logger,
	)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Worker.ProcessTimeout)
	defer cancel()
	if err := proc.ProcessJob(runCtx, jobID); err != nil {
		logger.Error("job processing failed", "job_id", jobID, "error", err)
		os.Exit(1)
	}
	logger.Info("job processed", "job_id", jobID)
}
