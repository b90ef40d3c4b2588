package parser

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
			first = false
		} else {
			if _, err := f.NewSheet(name); err != nil {
				t.Fatalf("add sheet: %v", err)
			}
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	rows := [][]any{{"Title", "Artist", "Units"}}
	for i := 0; i < 120; i++ {
		rows = append(rows, []any{fmt.Sprintf("Song %d", i), fmt.Sprintf("Artist %d", i), i * 10})
	}
	data := buildWorkbook(t, map[string][][]any{"Statement": rows})

	sink := &recordingSink{}
	progress := &recordingProgress{}
	n, err := Parse(context.Background(), FormatXLSX, data, sink, progress, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 120 {
		t.Errorf("processed = %d, want 120", n)
	}
	if len(sink.batches) != 2 || len(sink.batches[0]) != 100 || len(sink.batches[1]) != 20 {
		t.Fatalf("batch sizes wrong: %d batches", len(sink.batches))
	}

	// The exact total is checkpointed before any rows are flushed.
	if progress.reports[0] != [2]int{0, 120} {
		t.Errorf("initial report = %v, want [0 120]", progress.reports[0])
	}
	if last := progress.reports[len(progress.reports)-1]; last != [2]int{120, 120} {
		t.Errorf("final report = %v, want [120 120]", last)
	}

	if got := sink.batches[0][0].Values["Title"]; got != "Song 0" {
		t.Errorf("first row Title = %q, want Song 0", got)
	}
}

func TestParseXLSXHeaderSynthesis(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{"Statement": {
		{"Title", "", "Units"},
		{"A", "x", 1},
	}})

	sink := &recordingSink{}
	if _, err := Parse(context.Background(), FormatXLSX, data, sink, nil, nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rec := sink.batches[0][0]
	if got := rec.Fields[1]; got != "column_2" {
		t.Errorf("synthesized header = %q, want column_2", got)
	}
	if got := rec.Values["column_2"]; got != "x" {
		t.Errorf("value under synthesized header = %q, want x", got)
	}
}

func TestParseXLSXFirstSheetOnly(t *testing.T) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "First"); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	for i, row := range [][]any{{"Title"}, {"kept"}} {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("First", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	if _, err := f.NewSheet("Second"); err != nil {
		t.Fatalf("add sheet: %v", err)
	}
	if err := f.SetSheetRow("Second", "A1", &[]any{"ignored"}); err != nil {
		t.Fatalf("set row: %v", err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	sink := &recordingSink{}
	n, err := Parse(context.Background(), FormatXLSX, buf.Bytes(), sink, nil, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 1 {
		t.Errorf("processed = %d, want 1 (second sheet ignored)", n)
	}
	if got := sink.batches[0][0].Values["Title"]; got != "kept" {
		t.Errorf("row value = %q, want kept", got)
	}
}

func TestParseXLSXHeaderOnly(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{"Statement": {{"Title", "Units"}}})

	sink := &recordingSink{}
	progress := &recordingProgress{}
	n, err := Parse(context.Background(), FormatXLSX, data, sink, progress, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 0 {
		t.Errorf("processed = %d, want 0", n)
	}
	if progress.reports[0] != [2]int{0, 0} {
		t.Errorf("report = %v, want [0 0]", progress.reports[0])
	}
}

func TestParseXLSXNotAWorkbook(t *testing.T) {
	if _, err := Parse(context.Background(), FormatXLSX, []byte("not a zip"), &recordingSink{}, nil, nil); err == nil {
		t.Error("garbage bytes must error")
	}
}

func TestParseXLSXCancellation(t *testing.T) {
	rows := [][]any{{"Title"}}
	for i := 0; i < 10; i++ {
		rows = append(rows, []any{fmt.Sprintf("Song %d", i)})
	}
	data := buildWorkbook(t, map[string][][]any{"Statement": rows})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, FormatXLSX, data, &recordingSink{}, nil, nil)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
