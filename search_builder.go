package mongomap

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/domain"
	"github.com/kailas-cloud/mongomap/internal/domain/search/mode"
	"github.com/kailas-cloud/mongomap/internal/domain/search/request"
)

// SearchMode selects the search strategy.
type SearchMode = mode.Mode

// Search modes.
const (
	// ModeVector runs $vectorSearch over the entity's embedding path.
	ModeVector = mode.Vector
	// ModeText runs a $text query over the collection's text index.
	ModeText = mode.Text
	// ModeHybrid runs both and fuses the rankings with reciprocal rank fusion.
	ModeHybrid = mode.Hybrid
)

// Hit is a search result mapped back to T.
type Hit[T any] struct {
	Item  *T
	Score float64
}

// SearchBuilder is a fluent search over one repository.
type SearchBuilder[T any] struct {
	repo *Repository[T]

	query         string
	vector        []float32
	mode          SearchMode
	index         string
	path          string
	filter        bson.D
	criteria      *Criteria
	limit         int
	numCandidates int
	minScore      float64
	exact         bool
	usage         *int
}

// Query sets the query text. Vector modes embed it unless Vector is set.
func (b *SearchBuilder[T]) Query(text string) *SearchBuilder[T] {
	b.query = text
	return b
}

// Vector sets the query vector.
func (b *SearchBuilder[T]) Vector(v []float32) *SearchBuilder[T] {
	b.vector = v
	return b
}

// Mode sets the search strategy. Default: ModeVector.
func (b *SearchBuilder[T]) Mode(m SearchMode) *SearchBuilder[T] {
	b.mode = m
	return b
}

// Index overrides the vector search index name.
func (b *SearchBuilder[T]) Index(name string) *SearchBuilder[T] {
	b.index = name
	return b
}

// Path overrides the embedding field path.
func (b *SearchBuilder[T]) Path(path string) *SearchBuilder[T] {
	b.path = path
	return b
}

// Filter pre-filters candidates. Vector modes may only reference vectorFilter fields.
func (b *SearchBuilder[T]) Filter(filter bson.D) *SearchBuilder[T] {
	b.filter = filter
	return b
}

// Where pre-filters candidates with criteria. It replaces Filter.
func (b *SearchBuilder[T]) Where(c *Criteria) *SearchBuilder[T] {
	b.criteria = c
	return b
}

// Limit sets the maximum number of hits. Default: 10.
func (b *SearchBuilder[T]) Limit(n int) *SearchBuilder[T] {
	b.limit = n
	return b
}

// NumCandidates sets the ANN candidate count. Default: 10 per hit.
func (b *SearchBuilder[T]) NumCandidates(n int) *SearchBuilder[T] {
	b.numCandidates = n
	return b
}

// MinScore drops vector hits scoring below s, in [0, 1].
func (b *SearchBuilder[T]) MinScore(s float64) *SearchBuilder[T] {
	b.minScore = s
	return b
}

// Exact requests an exhaustive scan instead of approximate search.
func (b *SearchBuilder[T]) Exact() *SearchBuilder[T] {
	b.exact = true
	return b
}

// TrackTokens stores the embedding tokens spent by Do in n.
func (b *SearchBuilder[T]) TrackTokens(n *int) *SearchBuilder[T] {
	b.usage = n
	return b
}

// Do executes the search.
func (b *SearchBuilder[T]) Do(ctx context.Context) (_ []Hit[T], err error) {
	r := b.repo
	defer r.observe("search", time.Now(), &err)

	req, err := b.request()
	if err != nil {
		return nil, err
	}

	ctx, usage := domain.WithSearchUsage(ctx, r.entity.Collection, req.Mode())
	results, err := r.c.searchSvc.Search(ctx, r.entity.Collection, &req)
	if b.usage != nil {
		*b.usage = usage.Tokens()
	}
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.entity.Collection, err)
	}

	hits := make([]Hit[T], 0, len(results))
	for i := range results {
		item, err := r.read(ctx, results[i].Document())
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit[T]{Item: item, Score: results[i].Score()})
	}
	return hits, nil
}

func (b *SearchBuilder[T]) request() (request.Request, error) {
	m := b.mode
	if m == "" {
		m = ModeVector
	}
	index, path := b.index, b.path
	if m.NeedsVector() && (index == "" || path == "") {
		vi, vp, err := b.repo.vectorTarget()
		if err != nil {
			return request.Request{}, err
		}
		if index == "" {
			index = vi
		}
		if path == "" {
			path = vp
		}
	}

	filter := b.filter
	if b.criteria != nil {
		d, err := b.criteria.Document()
		if err != nil {
			return request.Request{}, fmt.Errorf("%w: %w", ErrInvalidSearch, err)
		}
		filter = d
	}

	req, err := request.New(request.Params{
		Query:         b.query,
		Vector:        b.vector,
		Mode:          m,
		Index:         index,
		Path:          path,
		Filter:        filter,
		Limit:         b.limit,
		NumCandidates: b.numCandidates,
		MinScore:      b.minScore,
		Exact:         b.exact,
	})
	if err != nil {
		return request.Request{}, fmt.Errorf("%w: %w", ErrInvalidSearch, err)
	}
	return req, nil
}
