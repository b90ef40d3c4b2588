package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/statementhq/royalty-pipeline/constants"
	"github.com/statementhq/royalty-pipeline/internal/common"
	"github.com/statementhq/royalty-pipeline/internal/entity"
	"github.com/statementhq/royalty-pipeline/internal/storage"
)

type fakeQueue struct {
	job *entity.Job

	attempts      int
	progress      [][2]int
	completed     *[2]int
	failedMessage *string
}

func (q *fakeQueue) Create(_ context.Context, fileID uuid.UUID, storagePath, catalog, docType string) (*entity.Job, error) {
	q.job = &entity.Job{
		ID: uuid.New(), FileID: fileID, StoragePath: storagePath,
		Catalog: catalog, DocType: docType, Status: constants.JobStatusPending,
	}
	return q.job, nil
}

func (q *fakeQueue) GetByID(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	if q.job == nil || q.job.ID != id {
		return nil, common.ErrJobNotFound
	}
	copied := *q.job
	return &copied, nil
}

func (q *fakeQueue) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	if q.job == nil || q.job.ID != id {
		return false, common.ErrJobNotFound
	}
	if q.job.Status != constants.JobStatusPending {
		return false, nil
	}
	q.job.Status = constants.JobStatusProcessing
	q.job.ProcessedRowCount = 0
	q.job.TotalRowCount = 0
	q.job.ErrorMessage = nil
	return true, nil
}

func (q *fakeQueue) IncrementAttempts(_ context.Context, _ uuid.UUID) error {
	q.attempts++
	q.job.Attempts = q.attempts
	return nil
}

func (q *fakeQueue) UpdateProgress(_ context.Context, _ uuid.UUID, processed, total int) error {
	q.progress = append(q.progress, [2]int{processed, total})
	q.job.ProcessedRowCount = processed
	if total > q.job.TotalRowCount {
		q.job.TotalRowCount = total
	}
	return nil
}

func (q *fakeQueue) MarkCompleted(_ context.Context, _ uuid.UUID, processed, total int) error {
	q.job.Status = constants.JobStatusCompleted
	q.completed = &[2]int{processed, total}
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, _ uuid.UUID, message string) error {
	q.job.Status = constants.JobStatusFailed
	q.failedMessage = &message
	return nil
}

func (q *fakeQueue) FailStale(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

type fakeFiles struct {
	file          *entity.StatementFile
	failedMessage *string
}

func (f *fakeFiles) Create(_ context.Context, id uuid.UUID, name, mimeType, catalog, docType string) (*entity.StatementFile, error) {
	f.file = &entity.StatementFile{ID: id, Name: name, MimeType: mimeType, Catalog: catalog, DocType: docType}
	return f.file, nil
}

func (f *fakeFiles) GetByID(_ context.Context, id uuid.UUID) (*entity.StatementFile, error) {
	if f.file == nil || f.file.ID != id {
		return nil, common.ErrFileNotFound
	}
	return f.file, nil
}

func (f *fakeFiles) MarkFailed(_ context.Context, _ uuid.UUID, message string) error {
	f.failedMessage = &message
	return nil
}

type fakeBlobs struct {
	objects   map[string][]byte
	downloads int
}

func (b *fakeBlobs) Download(_ context.Context, path string) ([]byte, error) {
	b.downloads++
	data, ok := b.objects[path]
	if !ok {
		return nil, errors.New("object not found: " + path)
	}
	return data, nil
}

func (b *fakeBlobs) CreateSignedUploadURL(_ context.Context, path string, _ map[string]string) (storage.SignedUpload, error) {
	return storage.SignedUpload{SignedURL: "https://signed.example/" + path, Path: path}, nil
}

func csvOf(rows int) []byte {
	var sb strings.Builder
	sb.WriteString("Title,Units\n")
	for i := 0; i < rows; i++ {
		sb.WriteString("Song,10\n")
	}
	return []byte(sb.String())
}

type harness struct {
	proc  *Processor
	queue *fakeQueue
	files *fakeFiles
	rows  *fakeRowStore
	blobs *fakeBlobs
	jobID uuid.UUID
}

func newHarness(t *testing.T, data []byte, rows *fakeRowStore) *harness {
	t.Helper()
	fileID := uuid.New()
	path := "statements/100047/" + fileID.String() + "/statement.csv"

	files := &fakeFiles{}
	if _, err := files.Create(context.Background(), fileID, "statement.csv", "text/csv", "100047", "royalty_statement"); err != nil {
		t.Fatalf("create file: %v", err)
	}
	queue := &fakeQueue{}
	job, err := queue.Create(context.Background(), fileID, path, "100047", "royalty_statement")
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	blobs := &fakeBlobs{objects: map[string][]byte{path: data}}

	proc := NewProcessor(queue, files, rows, blobs, &stubEmbedder{dim: 3}, nil)
	return &harness{proc: proc, queue: queue, files: files, rows: rows, blobs: blobs, jobID: job.ID}
}

func TestProcessJobSuccess(t *testing.T) {
	rows := &fakeRowStore{}
	h := newHarness(t, csvOf(250), rows)

	if err := h.proc.ProcessJob(context.Background(), h.jobID); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	if h.queue.job.Status != constants.JobStatusCompleted {
		t.Errorf("status = %s, want completed", h.queue.job.Status)
	}
	if h.queue.completed == nil || h.queue.completed[0] != 250 {
		t.Errorf("completed counts = %v, want processed 250", h.queue.completed)
	}
	if h.queue.attempts != 1 {
		t.Errorf("attempts = %d, want 1", h.queue.attempts)
	}
	if len(rows.batches) != 3 {
		t.Errorf("persisted %d batches, want 3", len(rows.batches))
	}
	// Progress was checkpointed as batches landed, not only at the end.
	if len(h.queue.progress) < 3 {
		t.Errorf("progress checkpoints = %d, want at least 3", len(h.queue.progress))
	}
}

func TestProcessJobNotFound(t *testing.T) {
	h := newHarness(t, csvOf(1), &fakeRowStore{})

	err := h.proc.ProcessJob(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestProcessJobDuplicateTriggerIsNoop(t *testing.T) {
	h := newHarness(t, csvOf(5), &fakeRowStore{})
	h.queue.job.Status = constants.JobStatusProcessing

	if err := h.proc.ProcessJob(context.Background(), h.jobID); err != nil {
		t.Fatalf("ProcessJob on claimed job: %v", err)
	}
	if h.queue.attempts != 0 {
		t.Errorf("attempts = %d, want 0 for an unclaimed run", h.queue.attempts)
	}
	if h.blobs.downloads != 0 {
		t.Errorf("downloads = %d, want 0; a no-op claim must not touch storage", h.blobs.downloads)
	}
	if h.queue.job.Status != constants.JobStatusProcessing {
		t.Errorf("status = %s, want unchanged processing", h.queue.job.Status)
	}
}

func TestProcessJobCompletedJobStaysCompleted(t *testing.T) {
	h := newHarness(t, csvOf(5), &fakeRowStore{})
	h.queue.job.Status = constants.JobStatusCompleted

	if err := h.proc.ProcessJob(context.Background(), h.jobID); err != nil {
		t.Fatalf("ProcessJob on completed job: %v", err)
	}
	if h.queue.job.Status != constants.JobStatusCompleted {
		t.Errorf("status = %s, want completed", h.queue.job.Status)
	}
}

func TestProcessJobPartialFailure(t *testing.T) {
	storeErr := errors.New("deadlock detected")
	rows := &fakeRowStore{failOn: 3, err: storeErr}
	h := newHarness(t, csvOf(450), rows)

	err := h.proc.ProcessJob(context.Background(), h.jobID)
	if !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want store error", err)
	}

	if h.queue.job.Status != constants.JobStatusFailed {
		t.Errorf("status = %s, want failed", h.queue.job.Status)
	}
	if h.queue.failedMessage == nil || !strings.Contains(*h.queue.failedMessage, "deadlock detected") {
		t.Errorf("failed message = %v, want the store error recorded", h.queue.failedMessage)
	}
	// Batches before the failing one stay committed; later ones were never
	// attempted.
	if len(rows.batches) != 2 {
		t.Errorf("persisted %d batches, want 2", len(rows.batches))
	}
	if h.files.failedMessage == nil {
		t.Error("file record was not marked failed")
	}
}

func TestProcessJobDownloadFailure(t *testing.T) {
	h := newHarness(t, csvOf(5), &fakeRowStore{})
	h.blobs.objects = map[string][]byte{}

	if err := h.proc.ProcessJob(context.Background(), h.jobID); err == nil {
		t.Fatal("want error for missing blob")
	}
	if h.queue.job.Status != constants.JobStatusFailed {
		t.Errorf("status = %s, want failed", h.queue.job.Status)
	}
}

func TestProcessJobUnsupportedFormat(t *testing.T) {
	h := newHarness(t, csvOf(5), &fakeRowStore{})
	h.queue.job.StoragePath = "statements/100047/x/statement.pdf"
	h.files.file.MimeType = "application/pdf"
	h.blobs.objects[h.queue.job.StoragePath] = []byte("%PDF-1.7")

	err := h.proc.ProcessJob(context.Background(), h.jobID)
	if !errors.Is(err, common.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if h.queue.failedMessage == nil || !strings.Contains(*h.queue.failedMessage, "not implemented") {
		t.Errorf("failed message = %v, want not-implemented detail", h.queue.failedMessage)
	}
}

func TestProcessJobErrorMessageTruncated(t *testing.T) {
	rows := &fakeRowStore{failOn: 1, err: errors.New(strings.Repeat("x", 2000))}
	h := newHarness(t, csvOf(5), rows)

	if err := h.proc.ProcessJob(context.Background(), h.jobID); err == nil {
		t.Fatal("want error")
	}
	if h.queue.failedMessage == nil {
		t.Fatal("no failed message recorded")
	}
	if got := len(*h.queue.failedMessage); got > MaxErrorMessageLen {
		t.Errorf("failed message length = %d, want <= %d", got, MaxErrorMessageLen)
	}
}
