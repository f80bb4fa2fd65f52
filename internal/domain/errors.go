package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidSchema signals an invalid schema or mapping definition.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrIndexNotFound signals a missing index.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexConflict signals an index whose keys or options clash with an existing one.
	ErrIndexConflict = errors.New("index conflict")
	// ErrInvalidQuery signals a query that cannot be derived or executed.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrSearchNotSupported signals that the deployment has no Atlas search.
	ErrSearchNotSupported = errors.New("search indexes not supported by deployment")
	// ErrEmbeddingQuotaExceeded signals a spent embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbedderNotConfigured signals a text query without an embedding provider.
	ErrEmbedderNotConfigured = errors.New("embedder not configured")
	// ErrInvalidSearch signals search parameters that cannot be executed.
	ErrInvalidSearch = errors.New("invalid search request")
)

// IndexConflictError wraps ErrIndexConflict with the collection and index involved.
type IndexConflictError struct {
	Collection string
	Index      string
	Err        error
}

func (e *IndexConflictError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s.%s", ErrIndexConflict.Error(), e.Collection, e.Index)
	}
	return fmt.Sprintf("%s: %s.%s: %v", ErrIndexConflict.Error(), e.Collection, e.Index, e.Err)
}

// Unwrap exposes both the sentinel and the driver cause.
func (e *IndexConflictError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIndexConflict}
	}
	return []error{ErrIndexConflict, e.Err}
}

// NewIndexConflict creates an index conflict error.
func NewIndexConflict(collection, index string, cause error) error {
	return &IndexConflictError{Collection: collection, Index: index, Err: cause}
}
