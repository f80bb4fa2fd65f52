package sdk

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// IndexField is one key of an index.
type IndexField struct {
	Key       string  `json:"key"`
	Type      string  `json:"type"` // "asc", "desc", "geo", "text", "hashed"
	Direction int     `json:"direction,omitempty"`
	GeoType   string  `json:"geo_type,omitempty"`
	Weight    float64 `json:"weight,omitempty"`
}

// Index describes a regular MongoDB index.
type Index struct {
	Name               string          `json:"name"`
	Fields             []IndexField    `json:"fields"`
	Unique             bool            `json:"unique,omitempty"`
	Sparse             bool            `json:"sparse,omitempty"`
	Hidden             bool            `json:"hidden,omitempty"`
	Language           string          `json:"language,omitempty"`
	PartialFilter      json.RawMessage `json:"partial_filter,omitempty"`
	Collation          json.RawMessage `json:"collation,omitempty"`
	ExpireAfterSeconds *int64          `json:"expire_after_seconds,omitempty"`
}

// SearchIndex describes an Atlas search or vectorSearch index.
type SearchIndex struct {
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	Queryable  bool            `json:"queryable"`
	Definition json.RawMessage `json:"definition,omitempty"`
}

// SearchMode selects how a search query is executed.
type SearchMode string

// SearchMode constants.
const (
	ModeVector SearchMode = "vector"
	ModeText   SearchMode = "text"
	ModeHybrid SearchMode = "hybrid"
)

// SearchRequest holds the search parameters. Query is embedded server-side when Vector is empty.
type SearchRequest struct {
	Query         string
	Vector        []float32
	Mode          SearchMode // default: vector
	Index         string     // default: first vectorSearch index of the collection
	Path          string
	Filter        bson.D
	Limit         int
	NumCandidates int
	MinScore      float64
	Exact         bool
}

type searchRequestBody struct {
	Query         string          `json:"query,omitempty"`
	Vector        []float32       `json:"vector,omitempty"`
	Mode          SearchMode      `json:"mode,omitempty"`
	Index         string          `json:"index,omitempty"`
	Path          string          `json:"path,omitempty"`
	Filter        json.RawMessage `json:"filter,omitempty"`
	Limit         int             `json:"limit,omitempty"`
	NumCandidates int             `json:"num_candidates,omitempty"`
	MinScore      float64         `json:"min_score,omitempty"`
	Exact         bool            `json:"exact,omitempty"`
}

func (r SearchRequest) body() (searchRequestBody, error) {
	b := searchRequestBody{
		Query:         r.Query,
		Vector:        r.Vector,
		Mode:          r.Mode,
		Index:         r.Index,
		Path:          r.Path,
		Limit:         r.Limit,
		NumCandidates: r.NumCandidates,
		MinScore:      r.MinScore,
		Exact:         r.Exact,
	}
	if len(r.Filter) > 0 {
		data, err := bson.MarshalExtJSON(r.Filter, false, false)
		if err != nil {
			return searchRequestBody{}, fmt.Errorf("encode filter: %w", err)
		}
		b.Filter = data
	}
	return b, nil
}

// SearchHit is one scored document, encoded as relaxed Extended JSON.
type SearchHit struct {
	Document json.RawMessage `json:"document"`
	Score    float64         `json:"score"`
}

// Decode unmarshals the document into v using its bson tags.
func (h SearchHit) Decode(v any) error {
	if err := bson.UnmarshalExtJSON(h.Document, false, v); err != nil {
		return fmt.Errorf("decode hit: %w", err)
	}
	return nil
}

// SearchResult holds the hits and the embedding tokens the query consumed.
// EmbeddingCached is set when the query vector came from the server's embedding cache.
type SearchResult struct {
	Hits            []SearchHit
	EmbeddingTokens int
	EmbeddingCached bool
}

// UsagePeriod is the aggregation granularity for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
	PeriodTotal UsagePeriod = "total"
)

// BudgetStatus tracks token quota state.
type BudgetStatus struct {
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

// UsageReport contains embedding usage for a period.
type UsageReport struct {
	Period      UsagePeriod  `json:"period"`
	PeriodStart *time.Time   `json:"period_start_at,omitempty"`
	PeriodEnd   *time.Time   `json:"period_end_at,omitempty"`
	Tokens      int64        `json:"tokens"`
	Budget      BudgetStatus `json:"budget"`
}

// HealthStatus represents the aggregated server health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"` // component → "ok"/"error"
}

// Healthy reports whether every component is up.
func (h HealthStatus) Healthy() bool { return h.Status == "ok" }
