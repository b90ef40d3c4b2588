package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/statementhq/royalty-pipeline/internal/common"
	"github.com/statementhq/royalty-pipeline/internal/embedding"
	"github.com/statementhq/royalty-pipeline/internal/entity"
	"github.com/statementhq/royalty-pipeline/internal/normalize"
	"github.com/statementhq/royalty-pipeline/internal/parser"
	"github.com/statementhq/royalty-pipeline/internal/repository"
)

// BatchWriter is the BatchSink for one job run: it normalizes each raw
// record, embeds all row content concurrently, and persists the batch as one
// atomic unit. It also tracks the running row index so upserts are
// idempotent across job re-runs.
type BatchWriter struct {
	embedder embedding.Embedder
	rows     repository.RowRepository
	norm     *normalize.Normalizer
	logger   *slog.Logger

	fileID  uuid.UUID
	catalog string

	nextIndex int
}

var _ parser.BatchSink = (*BatchWriter)(nil)

func NewBatchWriter(embedder embedding.Embedder, rows repository.RowRepository, fileID uuid.UUID, catalog string, logger *slog.Logger) *BatchWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchWriter{
		embedder: embedder,
		rows:     rows,
		norm:     normalize.NewNormalizer(logger),
		logger:   logger,
		fileID:   fileID,
		catalog:  catalog,
	}
}

// Flush is all-or-nothing: either every row of the batch is durably stored
// with its embedding, or none are and the error aborts the job at this
// batch. Prior batches stay committed; the job is per-batch atomic, not
// end-to-end transactional.
func (w *BatchWriter) Flush(ctx context.Context, batch []parser.RawRecord) error {
	if len(batch) == 0 {
		return nil
	}

	rows := make([]entity.RoyaltyRow, len(batch))
	for i, rec := range batch {
		rows[i] = w.norm.Normalize(rec, w.fileID, w.catalog, w.nextIndex+i)
	}

	vectors, err := w.embedRows(ctx, rows)
	if err != nil {
		return err
	}
	for i := range rows {
		rows[i].Embedding = vectors[i]
	}

	if err := w.rows.UpsertBatch(ctx, rows); err != nil {
		return common.WrapError(err, "persist batch")
	}
	w.nextIndex += len(batch)
	w.logger.Debug("pipeline.batch.flushed", "file_id", w.fileID, "rows", len(batch), "next_index", w.nextIndex)
	return nil
}

// embedRows issues one embedding call per row concurrently and joins the
// results back by index. Batch latency is bounded by the slowest call, not
// the sum.
func (w *BatchWriter) embedRows(ctx context.Context, rows []entity.RoyaltyRow) ([][]float32, error) {
	vectors := make([][]float32, len(rows))
	errs := make([]error, len(rows))

	var wg sync.WaitGroup
	for i := range rows {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vectors[i], errs[i] = w.embedder.Embed(ctx, rows[i].Content)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, common.WrapError(err, fmt.Sprintf("embed row %d", rows[i].RowIndex))
		}
	}
	// Defensive invariant against partial or reordered results from the
	// embedding collaborator: exactly one vector per row.
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: no vector for row %d", common.ErrEmbeddingMismatch, rows[i].RowIndex)
		}
	}
	return vectors, nil
}
