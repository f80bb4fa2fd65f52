package domain

import (
	"context"
	"sync"

	"github.com/kailas-cloud/mongomap/internal/domain/search/mode"
)

type searchUsageKey struct{}

// SearchUsage accounts for the query embeddings of one search call against a collection.
// The caller attaches it to the context, the search service records into it and the caller
// reads it back once the call returns. Methods are safe on a nil collector.
type SearchUsage struct {
	collection string
	mode       mode.Mode

	mu         sync.Mutex
	tokens     int
	embeddings int
	cacheHits  int
}

// WithSearchUsage returns a context carrying a fresh collector for a search on collection.
func WithSearchUsage(ctx context.Context, collection string, m mode.Mode) (context.Context, *SearchUsage) {
	u := &SearchUsage{collection: collection, mode: m}
	return context.WithValue(ctx, searchUsageKey{}, u), u
}

// SearchUsageFrom returns the collector in ctx, or nil.
func SearchUsageFrom(ctx context.Context) *SearchUsage {
	u, _ := ctx.Value(searchUsageKey{}).(*SearchUsage)
	return u
}

// Record accounts for one query embedding. Zero tokens means the vector came from the cache.
func (u *SearchUsage) Record(tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.embeddings++
	u.tokens += tokens
	if tokens == 0 {
		u.cacheHits++
	}
}

// Collection is the searched collection.
func (u *SearchUsage) Collection() string {
	if u == nil {
		return ""
	}
	return u.collection
}

// Mode is the requested search mode.
func (u *SearchUsage) Mode() mode.Mode {
	if u == nil {
		return ""
	}
	return u.mode
}

// Tokens is the number of provider tokens spent.
func (u *SearchUsage) Tokens() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tokens
}

// Embedded reports whether any query text was embedded, cache hits included.
func (u *SearchUsage) Embedded() bool {
	if u == nil {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.embeddings > 0
}

// Cached reports whether every embedding was served from the cache.
func (u *SearchUsage) Cached() bool {
	if u == nil {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.embeddings > 0 && u.cacheHits == u.embeddings
}
