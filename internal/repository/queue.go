package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/statementhq/royalty-pipeline/constants"
	"github.com/statementhq/royalty-pipeline/internal/common"
	"github.com/statementhq/royalty-pipeline/internal/entity"
)

// QueueRepository owns the processing_queue table. Only the orchestrator
// mutates job state through it; the queue record is the single source of
// truth observed by progress-polling clients.
type QueueRepository interface {
	Create(ctx context.Context, fileID uuid.UUID, storagePath, catalog, docType string) (*entity.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	// Claim atomically moves a pending job to processing with zeroed
	// counters. Returns false without error when the job is not pending
	// (duplicate-trigger guard).
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) error
	UpdateProgress(ctx context.Context, id uuid.UUID, processed, total int) error
	MarkCompleted(ctx context.Context, id uuid.UUID, processed, total int) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	// FailStale marks jobs stuck in processing longer than threshold as
	// failed. Returns the number of jobs swept.
	FailStale(ctx context.Context, threshold time.Duration) (int64, error)
}

type queueRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewQueueRepository(pool *pgxpool.Pool, log *slog.Logger) QueueRepository {
	return &queueRepo{pool: pool, log: log}
}

const jobColumns = `id, file_id, storage_path, catalog, doc_type, status, attempts,
	processed_row_count, total_row_count, error_message, created_at, updated_at`

func scanJob(row pgx.Row) (*entity.Job, error) {
	var j entity.Job
	err := row.Scan(
		&j.ID, &j.FileID, &j.StoragePath, &j.Catalog, &j.DocType, &j.Status,
		&j.Attempts, &j.ProcessedRowCount, &j.TotalRowCount, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *queueRepo) Create(ctx context.Context, fileID uuid.UUID, storagePath, catalog, docType string) (*entity.Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `
		INSERT INTO processing_queue (file_id, storage_path, catalog, doc_type, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+jobColumns,
		fileID, storagePath, catalog, docType, constants.JobStatusPending,
	))
	if err != nil {
		r.log.Error("queue.create.failed", "file_id", fileID, "storage_path", storagePath, "error", err)
		return nil, err
	}
	r.log.Info("queue.created", "job_id", job.ID, "file_id", fileID, "storage_path", storagePath)
	return job, nil
}

func (r *queueRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM processing_queue WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrJobNotFound
	}
	if err != nil {
		r.log.Error("queue.get.failed", "job_id", id, "error", err)
		return nil, err
	}
	return job, nil
}

func (r *queueRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE processing_queue
		SET status = $2, processed_row_count = 0, total_row_count = 0,
		    error_message = NULL, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, constants.JobStatusProcessing, constants.JobStatusPending,
	)
	if err != nil {
		r.log.Error("queue.claim.failed", "job_id", id, "error", err)
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementAttempts calls the atomic counter RPC so concurrent claimers can
// never lose an increment.
func (r *queueRepo) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `SELECT increment_job_attempts($1)`, id); err != nil {
		r.log.Error("queue.increment_attempts.failed", "job_id", id, "error", err)
		return err
	}
	return nil
}

func (r *queueRepo) UpdateProgress(ctx context.Context, id uuid.UUID, processed, total int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE processing_queue
		SET processed_row_count = $2, total_row_count = GREATEST(total_row_count, $3),
		    updated_at = now()
		WHERE id = $1`,
		id, processed, total,
	)
	if err != nil {
		r.log.Error("queue.progress.failed", "job_id", id, "processed", processed, "total", total, "error", err)
		return err
	}
	return nil
}

func (r *queueRepo) MarkCompleted(ctx context.Context, id uuid.UUID, processed, total int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE processing_queue
		SET status = $2, processed_row_count = $3,
		    total_row_count = GREATEST(total_row_count, $4), updated_at = now()
		WHERE id = $1`,
		id, constants.JobStatusCompleted, processed, total,
	)
	if err != nil {
		r.log.Error("queue.complete.failed", "job_id", id, "error", err)
		return err
	}
	r.log.Info("queue.completed", "job_id", id, "processed", processed, "total", total)
	return nil
}

func (r *queueRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE processing_queue
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1`,
		id, constants.JobStatusFailed, message,
	)
	if err != nil {
		r.log.Error("queue.fail.failed", "job_id", id, "error", err)
		return err
	}
	r.log.Warn("queue.failed", "job_id", id, "error_message", message)
	return nil
}

func (r *queueRepo) FailStale(ctx context.Context, threshold time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE processing_queue
		SET status = $1, error_message = $2, updated_at = now()
		WHERE status = $3 AND updated_at < now() - $4::interval`,
		constants.JobStatusFailed, "processing timed out", constants.JobStatusProcessing, threshold.String(),
	)
	if err != nil {
		r.log.Error("queue.sweep.failed", "error", err)
		return 0, err
	}
	if n := tag.RowsAffected(); n > 0 {
		r.log.Warn("queue.sweep.stale_jobs_failed", "count", n, "threshold", threshold)
		return n, nil
	}
	return 0, nil
}
