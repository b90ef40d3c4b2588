package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/statementhq/royalty-pipeline/internal/entity"
)

// RowRepository persists canonical rows. Append/upsert-only: nothing in this
// subsystem deletes rows.
type RowRepository interface {
	// UpsertBatch writes the whole batch in one transaction. Either every
	// row lands durably with its embedding, or none do.
	UpsertBatch(ctx context.Context, rows []entity.RoyaltyRow) error
}

type rowRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewRowRepository(pool *pgxpool.Pool, log *slog.Logger) RowRepository {
	return &rowRepo{pool: pool, log: log}
}

const upsertRowSQL = `
	INSERT INTO royalty_rows (
		file_id, row_index, catalog, client_name, period, metric, value,
		content, song_title, artist, composers, source_name, income_type,
		units, amount_collected, royalty_payable, isrc, embedding
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (file_id, row_index) DO UPDATE SET
		catalog = EXCLUDED.catalog,
		client_name = EXCLUDED.client_name,
		period = EXCLUDED.period,
		metric = EXCLUDED.metric,
		value = EXCLUDED.value,
		content = EXCLUDED.content,
		song_title = EXCLUDED.song_title,
		artist = EXCLUDED.artist,
		composers = EXCLUDED.composers,
		source_name = EXCLUDED.source_name,
		income_type = EXCLUDED.income_type,
		units = EXCLUDED.units,
		amount_collected = EXCLUDED.amount_collected,
		royalty_payable = EXCLUDED.royalty_payable,
		isrc = EXCLUDED.isrc,
		embedding = EXCLUDED.embedding`

func (r *rowRepo) UpsertBatch(ctx context.Context, rows []entity.RoyaltyRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(upsertRowSQL,
			row.FileID, row.RowIndex, row.Catalog, row.ClientName, row.Period,
			row.Metric, row.Value, row.Content, row.SongTitle, row.Artist,
			row.Composers, row.SourceName, row.IncomeType, row.Units,
			row.AmountCollected, row.RoyaltyPayable, row.ISRC,
			pgvector.NewVector(row.Embedding),
		)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.log.Error("rows.upsert.begin_failed", "rows", len(rows), "error", err)
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	br := tx.SendBatch(ctx, batch)
	for i := range rows {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			r.log.Error("rows.upsert.failed",
				"file_id", rows[i].FileID, "row_index", rows[i].RowIndex, "error", err)
			return fmt.Errorf("upsert row %d of batch: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		r.log.Error("rows.upsert.commit_failed", "rows", len(rows), "error", err)
		return err
	}
	return nil
}
