package domain

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Stage errors wrap one of these sentinels so
// orchestrators can distinguish skip-this-source failures from
// abort-the-operation failures with errors.Is.
var (
	// ErrLoad marks an unreadable or unparseable source. Callers skip the
	// source and continue; it never aborts a whole operation on its own.
	ErrLoad = errors.New("load failed")
	// ErrEmbedding marks an embedding-provider failure. Aborts the
	// current ingestion or query.
	ErrEmbedding = errors.New("embedding failed")
	// ErrIndexUpsert marks a failed incremental index write. Recovered
	// locally via a rebuild fallback and normally not surfaced.
	ErrIndexUpsert = errors.New("index upsert failed")
	// ErrIndexRebuild marks a failed full rebuild. Fatal for the current
	// operation.
	ErrIndexRebuild = errors.New("index rebuild failed")
	// ErrSynthesis marks a language-model invocation failure. Fatal; no
	// QueryRecord is written on this path.
	ErrSynthesis = errors.New("answer synthesis failed")
)

// Validation sentinels.
var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrQuestionTooLong = errors.New("question too long")
	ErrInvalidURL      = errors.New("invalid url")
	ErrInvalidFilename = errors.New("invalid filename")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
