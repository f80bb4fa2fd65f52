package chi

import (
	"encoding/json"
	"time"
)

// errorCode is the machine-readable part of an error response.
type errorCode string

const (
	codeBadRequest             errorCode = "bad_request"
	codeUnauthorized           errorCode = "unauthorized"
	codeCollectionNotFound     errorCode = "collection_not_found"
	codeIndexNotFound          errorCode = "index_not_found"
	codeDocumentNotFound       errorCode = "document_not_found"
	codeIndexConflict          errorCode = "index_conflict"
	codeAlreadyExists          errorCode = "already_exists"
	codeValidationFailed       errorCode = "validation_failed"
	codeInvalidQuery           errorCode = "invalid_query"
	codeInvalidSearch          errorCode = "invalid_search"
	codeSearchNotSupported     errorCode = "search_not_supported"
	codeEmbedderNotConfigured  errorCode = "embedder_not_configured"
	codeEmbeddingQuotaExceeded errorCode = "embedding_quota_exceeded"
	codeEmbeddingProviderError errorCode = "embedding_provider_error"
	codeInternalError          errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
	// Collection and Index are set for index conflicts.
	Collection string `json:"collection,omitempty"`
	Index      string `json:"index,omitempty"`
}

type collectionListResponse struct {
	Items []string `json:"items"`
	Count int      `json:"count"`
}

type indexField struct {
	Key       string  `json:"key"`
	Type      string  `json:"type"`
	Direction int     `json:"direction,omitempty"`
	GeoType   string  `json:"geo_type,omitempty"`
	Weight    float64 `json:"weight,omitempty"`
}

type indexResponse struct {
	Name               string          `json:"name"`
	Fields             []indexField    `json:"fields"`
	Unique             bool            `json:"unique,omitempty"`
	Sparse             bool            `json:"sparse,omitempty"`
	Hidden             bool            `json:"hidden,omitempty"`
	Language           string          `json:"language,omitempty"`
	PartialFilter      json.RawMessage `json:"partial_filter,omitempty"`
	Collation          json.RawMessage `json:"collation,omitempty"`
	ExpireAfterSeconds *int64          `json:"expire_after_seconds,omitempty"`
}

type indexListResponse struct {
	Items []indexResponse `json:"items"`
}

type patchIndexRequest struct {
	Hidden *bool `json:"hidden"`
}

type searchIndexResponse struct {
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	Queryable  bool            `json:"queryable"`
	Definition json.RawMessage `json:"definition,omitempty"`
}

type searchIndexListResponse struct {
	Items []searchIndexResponse `json:"items"`
}

type searchRequest struct {
	Query         string          `json:"query,omitempty"`
	Vector        []float32       `json:"vector,omitempty"`
	Mode          string          `json:"mode,omitempty"`
	Index         string          `json:"index,omitempty"`
	Path          string          `json:"path,omitempty"`
	Filter        json.RawMessage `json:"filter,omitempty"`
	Limit         int             `json:"limit,omitempty"`
	NumCandidates int             `json:"num_candidates,omitempty"`
	MinScore      float64         `json:"min_score,omitempty"`
	Exact         bool            `json:"exact,omitempty"`
}

type searchHit struct {
	Document json.RawMessage `json:"document"`
	Score    float64         `json:"score"`
}

type searchResponse struct {
	Items []searchHit `json:"items"`
	Count int         `json:"count"`
}

type budgetStatus struct {
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

type usageResponse struct {
	Period        string       `json:"period"`
	PeriodStartAt *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time   `json:"period_end_at,omitempty"`
	Tokens        int64        `json:"tokens"`
	Budget        budgetStatus `json:"budget"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
