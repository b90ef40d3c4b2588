package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/statementhq/royalty-pipeline/internal/common"
)

// parseXLSX walks the first worksheet of the workbook. Multi-sheet files use
// only the first sheet; that limitation is declared on the format's
// Capabilities rather than discovered by surprise.
//
// The total row count is exact (the sheet is fully loaded) and is
// checkpointed before row iteration begins. excelize realizes cell values for
// us: cached formula results are preferred over formula source and rich-text
// runs are flattened to plain text.
func parseXLSX(ctx context.Context, data []byte, sink BatchSink, progress ProgressReporter, logger *slog.Logger) (int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("parser.xlsx.close_error", "error", cerr)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, common.ErrEmptyWorksheet
	}
	sheet := sheets[0]
	if len(sheets) > 1 {
		logger.Warn("parser.xlsx.extra_sheets_ignored", "sheet", sheet, "ignored", len(sheets)-1)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return 0, common.ErrEmptyWorksheet
	}

	fields := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			// A missing header cell synthesizes a positional name.
			h = fmt.Sprintf("column_%d", i+1)
		}
		fields[i] = h
	}

	b := newBatcher(sink, progress)
	b.setTotal(ctx, len(rows)-1)

	for _, row := range rows[1:] {
		// Cooperative yield: honor cancellation between rows so a very
		// large sheet cannot monopolize a worker past its deadline.
		if err := ctx.Err(); err != nil {
			return b.processed, err
		}
		values := make(map[string]string, len(fields))
		for i, field := range fields {
			if i < len(row) {
				values[field] = row[i]
			} else {
				values[field] = ""
			}
		}
		if err := b.add(ctx, RawRecord{Fields: fields, Values: values}); err != nil {
			return b.processed, err
		}
	}
	if err := b.finish(ctx); err != nil {
		return b.processed, err
	}
	logger.Debug("parser.xlsx.done", "sheet", sheet, "rows", b.processed, "total", b.total)
	return b.processed, nil
}
