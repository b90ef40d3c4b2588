package entity

import "github.com/google/uuid"

// StatementFile represents a row in the files table. The pipeline treats it
// as read-only input, except for a terminal error write-back when processing
// fails outright.
type StatementFile struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mime_type"`
	Catalog      string    `json:"catalog"`
	DocType      string    `json:"doc_type"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}
