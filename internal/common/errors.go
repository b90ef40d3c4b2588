package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	// ErrJobNotFound is fatal with no retry: no partial state is created.
	ErrJobNotFound  = errors.New("job not found")
	ErrFileNotFound = errors.New("file record not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")

	// ErrUnsupportedFormat covers extensions the parser recognizes but
	// cannot process (PDF) as well as ones it does not recognize at all.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("empty file")
	ErrEmptyWorksheet    = errors.New("empty worksheet")

	// ErrEmbeddingMismatch means the embedding collaborator returned a
	// vector count that does not match the submitted batch.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// TruncateMessage bounds an error message before it is persisted to the
// queue record so oversized parser errors cannot blow up the column.
func TruncateMessage(msg string, max int) string {
	if max <= 0 || len(msg) <= max {
		return msg
	}
	return msg[:max]
}
