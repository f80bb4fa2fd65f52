package mongomap

import (
	"errors"

	"github.com/kailas-cloud/mongomap/internal/convert"
	"github.com/kailas-cloud/mongomap/internal/domain"
	"github.com/kailas-cloud/mongomap/internal/index"
	"github.com/kailas-cloud/mongomap/internal/query"
)

// Sentinel errors re-exported from the internal layers.
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
	ErrNotDocument            = index.ErrNotDocument
	ErrNoID                   = convert.ErrNoID
	ErrInvalidMethod          = query.ErrInvalidMethod
	ErrInvalidCriteria        = query.ErrInvalidCriteria
)

// ErrEmptyID signals a save of an entity whose id is neither set nor generated.
var ErrEmptyID = errors.New("mongomap: entity id is empty")

// ErrNoVectorIndex signals a vector search on an entity without vector directives.
var ErrNoVectorIndex = errors.New("mongomap: entity declares no vector index")
