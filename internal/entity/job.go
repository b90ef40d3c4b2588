package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/statementhq/royalty-pipeline/constants"
)

// Job represents a processing_queue record for data transfer between layers.
// One job corresponds to ingesting one uploaded statement file.
type Job struct {
	ID                uuid.UUID           `json:"id"`
	FileID            uuid.UUID           `json:"file_id"`
	StoragePath       string              `json:"storage_path"`
	Catalog           string              `json:"catalog"`
	DocType           string              `json:"doc_type"`
	Status            constants.JobStatus `json:"status"`
	Attempts          int                 `json:"attempts"`
	ProcessedRowCount int                 `json:"processed_row_count"`
	TotalRowCount     int                 `json:"total_row_count"`
	ErrorMessage      *string             `json:"error_message,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}
