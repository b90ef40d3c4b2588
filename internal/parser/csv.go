package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/statementhq/royalty-pipeline/internal/common"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// parseCSV streams the decoded text through the batcher. The whole file is
// held in memory; the stated ceiling of ~100k rows keeps this comfortably
// within bounds and greatly simplifies the reader.
//
// The total row count is estimated upfront from the newline count. It is an
// estimate only: it is computed before the header row and blank lines are
// excluded, and XLSX is the format with authoritative totals.
func parseCSV(ctx context.Context, data []byte, sink BatchSink, progress ProgressReporter, logger *slog.Logger) (int, error) {
	text := decodeText(data)

	b := newBatcher(sink, progress)
	b.setTotal(ctx, bytes.Count([]byte(text), []byte{'\n'}))

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1 // heterogeneous statements pad or drop columns
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, common.ErrEmptyFile
		}
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	fields := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		fields[i] = h
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A per-row error aborts the entire parse. Row-level
			// data-quality problems are handled later by coercion;
			// a malformed record here is structural.
			return b.processed, fmt.Errorf("read csv row: %w", err)
		}
		if isBlank(rec) {
			continue
		}
		values := make(map[string]string, len(fields))
		for i, f := range fields {
			if i < len(rec) {
				values[f] = rec[i]
			} else {
				values[f] = ""
			}
		}
		if err := b.add(ctx, RawRecord{Fields: fields, Values: values}); err != nil {
			return b.processed, err
		}
	}
	if err := b.finish(ctx); err != nil {
		return b.processed, err
	}
	logger.Debug("parser.csv.done", "rows", b.processed, "estimated_total", b.total)
	return b.processed, nil
}

// decodeText strips a UTF-8 BOM and falls back to Latin-1 when the bytes are
// not valid UTF-8. Legacy royalty statements are frequently exported from
// Windows tooling in ISO-8859-1.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
