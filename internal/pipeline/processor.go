// Package pipeline coordinates the ingestion of one statement file: claim
// the queue record, download the blob, parse, embed, upsert, and finalize
// job status.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/statementhq/royalty-pipeline/internal/common"
	"github.com/statementhq/royalty-pipeline/internal/embedding"
	"github.com/statementhq/royalty-pipeline/internal/parser"
	"github.com/statementhq/royalty-pipeline/internal/repository"
	"github.com/statementhq/royalty-pipeline/internal/storage"
)

// MaxErrorMessageLen bounds the error message persisted on a failed job.
const MaxErrorMessageLen = 500

// Processor is the job orchestrator. It is the only component that mutates
// queue records, and the single point where fatal errors become a persisted
// failed status.
type Processor struct {
	queue    repository.QueueRepository
	files    repository.FileRepository
	rows     repository.RowRepository
	blobs    storage.BlobStore
	embedder embedding.Embedder
	logger   *slog.Logger
}

func NewProcessor(
	queue repository.QueueRepository,
	files repository.FileRepository,
	rows repository.RowRepository,
	blobs storage.BlobStore,
	embedder embedding.Embedder,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		queue:    queue,
		files:    files,
		rows:     rows,
		blobs:    blobs,
		embedder: embedder,
		logger:   logger,
	}
}

// ProcessJob claims and processes one job.
//
// State machine: pending -> processing -> completed | failed. A claim of a
// job that is no longer pending is a successful no-op, so duplicate triggers
// never do duplicate work. This subsystem does not self-retry; the caller
// owns any retry policy.
func (p *Processor) ProcessJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := p.queue.GetByID(ctx, jobID)
	if err != nil {
		p.logger.Error("pipeline.job.fetch_failed", "job_id", jobID, "err", err)
		return err
	}

	claimed, err := p.queue.Claim(ctx, jobID)
	if err != nil {
		return common.WrapError(err, "claim job")
	}
	if !claimed {
		p.logger.Info("pipeline.job.already_claimed", "job_id", jobID, "status", job.Status)
		return nil
	}

	// Best-effort: a failed increment is logged but does not stop the run.
	if err := p.queue.IncrementAttempts(ctx, jobID); err != nil {
		p.logger.Warn("pipeline.job.attempts_increment_failed", "job_id", jobID, "err", err)
	}

	p.logger.Info("pipeline.job.claimed",
		"job_id", jobID, "file_id", job.FileID, "storage_path", job.StoragePath,
		"catalog", job.Catalog, "doc_type", job.DocType,
	)

	processed, total, err := p.process(ctx, job.FileID, job.StoragePath, job.Catalog, jobID)
	if err != nil {
		msg := common.TruncateMessage(err.Error(), MaxErrorMessageLen)
		if ferr := p.queue.MarkFailed(ctx, jobID, msg); ferr != nil {
			p.logger.Error("pipeline.job.fail_persist_failed", "job_id", jobID, "err", ferr)
		}
		// Terminal write-back on the file record is best-effort too.
		if ferr := p.files.MarkFailed(ctx, job.FileID, msg); ferr != nil {
			p.logger.Warn("pipeline.file.fail_persist_failed", "file_id", job.FileID, "err", ferr)
		}
		p.logger.Error("pipeline.job.failed", "job_id", jobID, "processed", processed, "err", err)
		return err
	}

	if err := p.queue.MarkCompleted(ctx, jobID, processed, total); err != nil {
		p.logger.Error("pipeline.job.complete_persist_failed", "job_id", jobID, "err", err)
		return err
	}
	p.logger.Info("pipeline.job.completed", "job_id", jobID, "processed", processed, "total", total)
	return nil
}

// process runs download -> parse -> embed -> upsert and returns the final
// counts. Every error returned here is fatal to the job.
func (p *Processor) process(ctx context.Context, fileID uuid.UUID, storagePath, catalog string, jobID uuid.UUID) (int, int, error) {
	file, err := p.files.GetByID(ctx, fileID)
	if err != nil {
		return 0, 0, err
	}

	format, err := parser.DetectFormat(storagePath, file.MimeType)
	if err != nil {
		return 0, 0, err
	}

	data, err := p.blobs.Download(ctx, storagePath)
	if err != nil {
		return 0, 0, common.WrapError(err, "download blob")
	}

	checkpoint := &progressCheckpoint{queue: p.queue, jobID: jobID, logger: p.logger}
	writer := NewBatchWriter(p.embedder, p.rows, fileID, catalog, p.logger)

	processed, err := parser.Parse(ctx, format, data, writer, checkpoint, p.logger)
	if err != nil {
		return processed, checkpoint.total, err
	}
	return processed, checkpoint.total, nil
}

// progressCheckpoint persists progress after every flushed batch so external
// observers get a liveness signal while a long file grinds through. A failed
// checkpoint write is logged and swallowed; only the core
// parse/embed/upsert path can fail a job.
type progressCheckpoint struct {
	queue  repository.QueueRepository
	jobID  uuid.UUID
	logger *slog.Logger
	total  int
}

var _ parser.ProgressReporter = (*progressCheckpoint)(nil)

func (c *progressCheckpoint) Report(ctx context.Context, processed, total int) {
	// total never decreases once parsing begins.
	if total > c.total {
		c.total = total
	}
	if err := c.queue.UpdateProgress(ctx, c.jobID, processed, c.total); err != nil {
		c.logger.Warn("pipeline.progress.checkpoint_failed",
			"job_id", c.jobID, "processed", processed, "total", c.total, "err", err)
	}
}
