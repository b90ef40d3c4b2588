package constants

// JobStatus is the canonical status for rows in processing_queue.
type JobStatus string

// Stable values (store these exact strings in DB).
// The lifecycle is linear: pending -> processing -> completed | failed.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobStatuses holds the allowed values for the queue status column.
var JobStatuses = []string{
	string(JobStatusPending),
	string(JobStatusProcessing),
	string(JobStatusCompleted),
	string(JobStatusFailed),
}

// Terminal reports whether a status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
