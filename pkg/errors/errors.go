// Package errors defines the error taxonomy shared by the index engine and
// its service surface: input errors handled locally, per-document ingestion
// errors reported to the caller, and consistency errors that indicate a
// builder bug.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDocumentNotFound = errors.New("document not found")
	ErrIngestion        = errors.New("ingestion failed")
	ErrConsistency      = errors.New("index consistency violation")
	ErrClosed           = errors.New("index closed")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

// IngestionError reports that a single document could not be indexed. It
// matches ErrIngestion with errors.Is and unwraps to the underlying cause.
type IngestionError struct {
	DocumentID string
	Err        error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingesting document %q: %v", e.DocumentID, e.Err)
}

func (e *IngestionError) Unwrap() []error {
	return []error{ErrIngestion, e.Err}
}

// NewIngestionError wraps err as a per-document ingestion failure.
func NewIngestionError(docID string, err error) *IngestionError {
	return &IngestionError{DocumentID: docID, Err: err}
}

// ConsistencyError describes an internal invariant violation, for example a
// posting that references a document id absent from the metadata table.
type ConsistencyError struct {
	Term       string
	DocumentID string
	Detail     string
}

func (e *ConsistencyError) Error() string {
	if e.Term == "" {
		return fmt.Sprintf("%s: document %q: %s", ErrConsistency, e.DocumentID, e.Detail)
	}
	return fmt.Sprintf("%s: term %q, document %q: %s", ErrConsistency, e.Term, e.DocumentID, e.Detail)
}

func (e *ConsistencyError) Unwrap() error {
	return ErrConsistency
}

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrIngestion):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
