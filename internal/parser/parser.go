// Package parser turns statement file bytes into a stream of raw records,
// pushed downstream in bounded-size batches with progress reporting.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/statementhq/royalty-pipeline/constants"
	"github.com/statementhq/royalty-pipeline/internal/common"
)

// BatchSize is the number of raw records accumulated before a flush.
const BatchSize = 100

// RawRecord is one parsed source row. Fields preserves header order so the
// embedded content string is deterministic; Values maps field name to the
// realized cell text.
type RawRecord struct {
	Fields []string
	Values map[string]string
}

// BatchSink receives flushed batches. A sink error aborts the parse.
type BatchSink interface {
	Flush(ctx context.Context, batch []RawRecord) error
}

// ProgressReporter receives a checkpoint after the total becomes known and
// after every flushed batch. Implementations persist the counts; failures
// are theirs to log and must not abort parsing.
type ProgressReporter interface {
	Report(ctx context.Context, processed, total int)
}

// Format is a supported statement file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// Capabilities documents per-format limitations explicitly instead of
// relying on silent fallthrough.
type Capabilities struct {
	Supported      bool
	ExactTotals    bool // XLSX knows the row count upfront; CSV only estimates
	FirstSheetOnly bool
}

func (f Format) Capabilities() Capabilities {
	switch f {
	case FormatCSV:
		return Capabilities{Supported: true}
	case FormatXLSX:
		return Capabilities{Supported: true, ExactTotals: true, FirstSheetOnly: true}
	default:
		return Capabilities{}
	}
}

// DetectFormat resolves the format from the storage path extension, falling
// back to the declared MIME type.
func DetectFormat(path, mimeType string) (Format, error) {
	switch constants.NormalizeExt(filepath.Ext(path)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	case "pdf":
		return FormatPDF, nil
	}
	switch {
	case strings.Contains(mimeType, "csv"):
		return FormatCSV, nil
	case strings.Contains(mimeType, "spreadsheetml"), strings.Contains(mimeType, "ms-excel"):
		return FormatXLSX, nil
	case strings.Contains(mimeType, "pdf"):
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: path=%q mime=%q", common.ErrUnsupportedFormat, path, mimeType)
}

// Parse dispatches the file bytes to the format's parser and returns the
// number of rows that were included in a flushed batch.
func Parse(ctx context.Context, format Format, data []byte, sink BatchSink, progress ProgressReporter, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(data) == 0 {
		return 0, common.ErrEmptyFile
	}
	switch format {
	case FormatCSV:
		return parseCSV(ctx, data, sink, progress, logger)
	case FormatXLSX:
		return parseXLSX(ctx, data, sink, progress, logger)
	case FormatPDF:
		// Recognized but deliberately unimplemented.
		return 0, fmt.Errorf("%w: pdf parsing is not implemented", common.ErrUnsupportedFormat)
	default:
		return 0, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, format)
	}
}

// batcher accumulates records and flushes through the sink every BatchSize
// rows, checkpointing progress after each flush. Batches are flushed strictly
// in source order so the processed count is always a prefix of the file.
type batcher struct {
	sink      BatchSink
	progress  ProgressReporter
	buf       []RawRecord
	processed int
	total     int
}

func newBatcher(sink BatchSink, progress ProgressReporter) *batcher {
	return &batcher{sink: sink, progress: progress, buf: make([]RawRecord, 0, BatchSize)}
}

func (b *batcher) setTotal(ctx context.Context, total int) {
	b.total = total
	if b.progress != nil {
		b.progress.Report(ctx, b.processed, b.total)
	}
}

func (b *batcher) add(ctx context.Context, rec RawRecord) error {
	b.buf = append(b.buf, rec)
	if len(b.buf) >= BatchSize {
		return b.flush(ctx)
	}
	return nil
}

// finish flushes the trailing partial batch, if any.
func (b *batcher) finish(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	return b.flush(ctx)
}

func (b *batcher) flush(ctx context.Context) error {
	batch := b.buf
	if err := b.sink.Flush(ctx, batch); err != nil {
		return err
	}
	b.processed += len(batch)
	b.buf = b.buf[:0]
	if b.progress != nil {
		b.progress.Report(ctx, b.processed, b.total)
	}
	return nil
}
