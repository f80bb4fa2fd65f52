package request

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultLimit   = 10
	MaxLimit       = 1000
	// candidateFactor is the number of ANN candidates considered per returned hit.
	candidateFactor  = 10
	MaxNumCandidates = 10000
)

// Params are the raw search parameters, validated by New.
type Params struct {
	// Query is the text to search; it is embedded for vector modes when Vector is empty.
	Query  string
	Vector []float32
	Mode   mode.Mode
	// Index is the search index name, Path the embedding field.
	Index string
	Path  string
	// Filter pre-filters candidates. For vector modes it may only use vectorFilter fields.
	Filter        bson.D
	Limit         int
	NumCandidates int
	MinScore      float64
	// Exact requests an exhaustive (ENN) scan instead of approximate search.
	Exact bool
}

// Request is a validated search query.
type Request struct {
	query         string
	vector        []float32
	searchMode    mode.Mode
	index         string
	path          string
	filter        bson.D
	limit         int
	numCandidates int
	minScore      float64
	exact         bool
}

// New validates and normalizes search parameters.
// Defaults: mode=vector, limit=10, numCandidates=10*limit.
func New(p Params) (Request, error) {
	m := p.Mode
	if m == "" {
		m = mode.Vector
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("invalid search mode: %q", m)
	}
	if len(p.Query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if m.NeedsText() && p.Query == "" {
		return Request{}, fmt.Errorf("query is required for %s search", m)
	}
	if m.NeedsVector() {
		if p.Query == "" && len(p.Vector) == 0 {
			return Request{}, fmt.Errorf("query or vector is required")
		}
		if p.Index == "" || p.Path == "" {
			return Request{}, fmt.Errorf("vector search needs an index and a path")
		}
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	candidates := 0
	if !p.Exact {
		candidates = p.NumCandidates
		if candidates <= 0 {
			candidates = limit * candidateFactor
		}
		if candidates < limit {
			return Request{}, fmt.Errorf("num_candidates %d is below limit %d", candidates, limit)
		}
		if candidates > MaxNumCandidates {
			candidates = MaxNumCandidates
		}
	}

	if p.MinScore < 0 || p.MinScore > 1 {
		return Request{}, fmt.Errorf("min_score must be between 0 and 1")
	}

	return Request{
		query:         p.Query,
		vector:        p.Vector,
		searchMode:    m,
		index:         p.Index,
		path:          p.Path,
		filter:        p.Filter,
		limit:         limit,
		numCandidates: candidates,
		minScore:      p.MinScore,
		exact:         p.Exact,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Vector returns the query vector, nil when the query text must be embedded.
func (r *Request) Vector() []float32 { return r.vector }

// Mode returns the search strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Index returns the vector search index name.
func (r *Request) Index() string { return r.index }

// Path returns the embedding field path.
func (r *Request) Path() string { return r.path }

// Filter returns the pre-filter document.
func (r *Request) Filter() bson.D { return r.filter }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }

// NumCandidates returns the ANN candidate count, zero for exact search.
func (r *Request) NumCandidates() int { return r.numCandidates }

// MinScore returns the minimum score threshold.
func (r *Request) MinScore() float64 { return r.minScore }

// Exact reports whether exhaustive search was requested.
func (r *Request) Exact() bool { return r.exact }

// WithVector returns a copy carrying an embedded query vector.
func (r Request) WithVector(v []float32) Request {
	r.vector = v
	return r
}
