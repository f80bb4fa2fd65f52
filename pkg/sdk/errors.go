package sdk

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/mongomap/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrAlreadyExists          = domain.ErrAlreadyExists
	ErrInvalidSchema          = domain.ErrInvalidSchema
	ErrDocumentNotFound       = domain.ErrDocumentNotFound
	ErrIndexNotFound          = domain.ErrIndexNotFound
	ErrIndexConflict          = domain.ErrIndexConflict
	ErrInvalidQuery           = domain.ErrInvalidQuery
	ErrInvalidSearch          = domain.ErrInvalidSearch
	ErrSearchNotSupported     = domain.ErrSearchNotSupported
	ErrEmbedderNotConfigured  = domain.ErrEmbedderNotConfigured
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)

// ErrUnauthorized signals a missing or rejected API key.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response from the admin API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Collection string
	Index      string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("mongomap sdk: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("mongomap sdk: %s (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap maps the error code to the matching sentinel.
func (e *APIError) Unwrap() error {
	return codeSentinels[e.Code]
}

var codeSentinels = map[string]error{
	"unauthorized":             ErrUnauthorized,
	"validation_failed":        ErrInvalidSchema,
	"invalid_query":            ErrInvalidQuery,
	"invalid_search":           ErrInvalidSearch,
	"collection_not_found":     ErrNotFound,
	"index_not_found":          ErrIndexNotFound,
	"document_not_found":       ErrDocumentNotFound,
	"index_conflict":           ErrIndexConflict,
	"already_exists":           ErrAlreadyExists,
	"search_not_supported":     ErrSearchNotSupported,
	"embedder_not_configured":  ErrEmbedderNotConfigured,
	"embedding_quota_exceeded": ErrEmbeddingQuotaExceeded,
	"embedding_provider_error": ErrEmbeddingProviderError,
}
