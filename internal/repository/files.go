package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/statementhq/royalty-pipeline/internal/common"
	"github.com/statementhq/royalty-pipeline/internal/entity"
)

// FileRepository reads the files table. The pipeline treats file metadata as
// read-only input, with one exception: a terminal error write-back when a
// job fails outright.
type FileRepository interface {
	Create(ctx context.Context, id uuid.UUID, name, mimeType, catalog, docType string) (*entity.StatementFile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.StatementFile, error)
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

type fileRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewFileRepository(pool *pgxpool.Pool, log *slog.Logger) FileRepository {
	return &fileRepo{pool: pool, log: log}
}

const fileColumns = `id, name, mime_type, catalog, doc_type, status, error_message`

func (r *fileRepo) Create(ctx context.Context, id uuid.UUID, name, mimeType, catalog, docType string) (*entity.StatementFile, error) {
	var f entity.StatementFile
	err := r.pool.QueryRow(ctx, `
		INSERT INTO files (id, name, mime_type, catalog, doc_type, status)
		VALUES ($1, $2, $3, $4, $5, 'uploaded')
		RETURNING `+fileColumns,
		id, name, mimeType, catalog, docType,
	).Scan(&f.ID, &f.Name, &f.MimeType, &f.Catalog, &f.DocType, &f.Status, &f.ErrorMessage)
	if err != nil {
		r.log.Error("files.create.failed", "file_id", id, "name", name, "error", err)
		return nil, err
	}
	return &f, nil
}

func (r *fileRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.StatementFile, error) {
	var f entity.StatementFile
	err := r.pool.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1`, id,
	).Scan(&f.ID, &f.Name, &f.MimeType, &f.Catalog, &f.DocType, &f.Status, &f.ErrorMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrFileNotFound
	}
	if err != nil {
		r.log.Error("files.get.failed", "file_id", id, "error", err)
		return nil, err
	}
	return &f, nil
}

func (r *fileRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE files SET status = 'failed', error_message = $2 WHERE id = $1`,
		id, message,
	)
	if err != nil {
		r.log.Error("files.fail.failed", "file_id", id, "error", err)
		return err
	}
	return nil
}
