package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is the smallest useful unit of dispatch: a pointer at a queue record.
// The durable state lives in processing_queue; this is only the in-process
// hand-off to a worker.
type Job struct {
	JobID       uuid.UUID
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
