package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/statementhq/royalty-pipeline/internal/entity"
	"github.com/statementhq/royalty-pipeline/internal/parser"
)

// stubEmbedder returns a fixed-dimension vector per text, or fails for texts
// registered in failFor. Embed is called from concurrent goroutines, so the
// call counter is locked.
type stubEmbedder struct {
	dim     int
	failFor map[string]error

	mu    sync.Mutex
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if err, ok := s.failFor[text]; ok {
		return nil, err
	}
	v := make([]float32, s.dim)
	v[0] = float32(len(text))
	return v, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Model() string  { return "stub" }
func (s *stubEmbedder) Dimension() int { return s.dim }

// fakeRowStore records upserted batches and can fail on the nth call.
type fakeRowStore struct {
	batches [][]entity.RoyaltyRow
	failOn  int
	err     error
}

func (f *fakeRowStore) UpsertBatch(_ context.Context, rows []entity.RoyaltyRow) error {
	if f.failOn > 0 && len(f.batches)+1 == f.failOn {
		return f.err
	}
	copied := make([]entity.RoyaltyRow, len(rows))
	copy(copied, rows)
	f.batches = append(f.batches, copied)
	return nil
}

func rawRecords(n, offset int) []parser.RawRecord {
	out := make([]parser.RawRecord, n)
	for i := range out {
		title := fmt.Sprintf("Song %d", offset+i)
		out[i] = parser.RawRecord{
			Fields: []string{"Title", "Units"},
			Values: map[string]string{"Title": title, "Units": "10"},
		}
	}
	return out
}

func TestBatchWriterFlush(t *testing.T) {
	fileID := uuid.New()
	emb := &stubEmbedder{dim: 4}
	store := &fakeRowStore{}
	w := NewBatchWriter(emb, store, fileID, "100047", nil)

	if err := w.Flush(context.Background(), rawRecords(3, 0)); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := w.Flush(context.Background(), rawRecords(2, 3)); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if len(store.batches) != 2 {
		t.Fatalf("persisted %d batches, want 2", len(store.batches))
	}

	// Row indexes run continuously across batches.
	wantIdx := 0
	for _, batch := range store.batches {
		for _, row := range batch {
			if row.RowIndex != wantIdx {
				t.Errorf("RowIndex = %d, want %d", row.RowIndex, wantIdx)
			}
			if row.FileID != fileID {
				t.Errorf("FileID = %s, want %s", row.FileID, fileID)
			}
			if row.Catalog != "100047" {
				t.Errorf("Catalog = %q, want 100047", row.Catalog)
			}
			if len(row.Embedding) != 4 {
				t.Errorf("row %d embedding dim = %d, want 4", row.RowIndex, len(row.Embedding))
			}
			wantIdx++
		}
	}
	if emb.calls != 5 {
		t.Errorf("embedder called %d times, want exactly one per row (5)", emb.calls)
	}
}

func TestBatchWriterEmbedErrorBlocksPersist(t *testing.T) {
	embErr := errors.New("rate limited")
	emb := &stubEmbedder{dim: 4, failFor: map[string]error{"Title: Song 1 | Units: 10": embErr}}
	store := &fakeRowStore{}
	w := NewBatchWriter(emb, store, uuid.New(), "c", nil)

	err := w.Flush(context.Background(), rawRecords(3, 0))
	if !errors.Is(err, embErr) {
		t.Fatalf("err = %v, want embed error", err)
	}
	if len(store.batches) != 0 {
		t.Errorf("batch persisted despite embed failure")
	}
}

func TestBatchWriterUpsertErrorKeepsIndex(t *testing.T) {
	storeErr := errors.New("deadlock detected")
	store := &fakeRowStore{failOn: 2, err: storeErr}
	w := NewBatchWriter(&stubEmbedder{dim: 2}, store, uuid.New(), "c", nil)

	if err := w.Flush(context.Background(), rawRecords(2, 0)); err != nil {
		t.Fatalf("first flush: %v", err)
	}
	if err := w.Flush(context.Background(), rawRecords(2, 2)); !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want store error", err)
	}

	// A retried flush of the same batch must reuse the same indexes.
	store.failOn = 0
	if err := w.Flush(context.Background(), rawRecords(2, 2)); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	retried := store.batches[len(store.batches)-1]
	if retried[0].RowIndex != 2 || retried[1].RowIndex != 3 {
		t.Errorf("retry indexes = %d,%d, want 2,3", retried[0].RowIndex, retried[1].RowIndex)
	}
}

func TestBatchWriterEmptyBatch(t *testing.T) {
	store := &fakeRowStore{}
	w := NewBatchWriter(&stubEmbedder{dim: 2}, store, uuid.New(), "c", nil)

	if err := w.Flush(context.Background(), nil); err != nil {
		t.Fatalf("Flush(nil): %v", err)
	}
	if len(store.batches) != 0 {
		t.Errorf("empty batch reached the store")
	}
}
