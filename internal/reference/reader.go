package reference

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/mapping"
	"github.com/kailas-cloud/mongomap/internal/metrics"
)

// Finder runs the lookups.
type Finder interface {
	Find(ctx context.Context, collection string, filter bson.D, opts db.FindOptions) ([]bson.Raw, error)
}

// Cache is a read-through store for lookup results. Get returns db.ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, prefix string) error
}

const (
	kindDocument = "document"
	kindDBRef    = "dbref"

	cachePrefix = "ref:"
)

// Reader resolves stored reference values into target documents.
type Reader struct {
	finder Finder
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithCache enables the lookup cache. Entries expire after ttl; zero keeps them until invalidated.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(r *Reader) {
		r.cache = c
		r.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReader creates a Reader over f.
func NewReader(f Finder, opts ...Option) *Reader {
	r := &Reader{finder: f, logger: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns one document per source in source order, nil where nothing matched.
// A declared sort does not apply.
func (r *Reader) Resolve(ctx context.Context, ref Ref, sources []any) ([]bson.Raw, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	if ref.Kind == mapping.DBRef {
		return r.resolveDBRefs(ctx, sources)
	}

	q, err := ref.Query(sources...)
	if err != nil {
		return nil, err
	}
	docs, err := r.find(ctx, kindDocument, q.Collection, q.Filter, nil)
	if err != nil {
		return nil, err
	}
	return q.Restore(docs), nil
}

// ResolveAll resolves a collection reference. With a declared sort the documents come back in
// that order; otherwise they follow the sources, skipping unmatched ones and repeating
// documents referenced more than once.
func (r *Reader) ResolveAll(ctx context.Context, ref Ref, sources []any) ([]bson.Raw, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	if ref.Kind == mapping.DocumentReference && len(ref.Sort) > 0 {
		q, err := ref.Query(sources...)
		if err != nil {
			return nil, err
		}
		return r.find(ctx, kindDocument, q.Collection, q.Filter, q.Sort)
	}

	aligned, err := r.Resolve(ctx, ref, sources)
	if err != nil {
		return nil, err
	}
	out := make([]bson.Raw, 0, len(aligned))
	for _, d := range aligned {
		if d != nil {
			out = append(out, d)
		}
	}
	return out, nil
}

// Invalidate drops cached lookups against collection.
func (r *Reader) Invalidate(ctx context.Context, collection string) error {
	if r.cache == nil {
		return nil
	}
	if err := r.cache.Invalidate(ctx, cachePrefix+collection+":"); err != nil {
		return fmt.Errorf("invalidate references to %s: %w", collection, err)
	}
	return nil
}

func (r *Reader) resolveDBRefs(ctx context.Context, sources []any) ([]bson.Raw, error) {
	refs := make([]DBRefValue, len(sources))
	for i, s := range sources {
		ref, ok := ParseDBRef(s)
		if !ok {
			return nil, fmt.Errorf("%w: not a DBRef: %v", ErrInvalidSource, s)
		}
		refs[i] = ref
	}

	order, ids := groupDBRefs(refs)
	fetched := make(map[string][]bson.Raw, len(order))
	for _, coll := range order {
		filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids[coll]}}}}
		docs, err := r.find(ctx, kindDBRef, coll, filter, nil)
		if err != nil {
			return nil, err
		}
		fetched[coll] = docs
	}

	out := make([]bson.Raw, len(refs))
	for i, ref := range refs {
		out[i] = byID(fetched[ref.Collection], ref.ID)
	}
	return out, nil
}

type cachedDocs struct {
	Docs []bson.Raw `bson:"docs"`
}

func (r *Reader) find(ctx context.Context, kind, collection string, filter, sort bson.D) ([]bson.Raw, error) {
	var key string
	if r.cache != nil {
		var err error
		key, err = cacheKey(collection, filter, sort)
		if err != nil {
			return nil, err
		}
		if docs, ok := r.cached(ctx, key); ok {
			metrics.ReferenceResolveTotal.WithLabelValues(kind, "cache").Inc()
			return docs, nil
		}
	}

	docs, err := r.finder.Find(ctx, collection, filter, db.FindOptions{Sort: sort})
	if err != nil {
		return nil, fmt.Errorf("resolve %s reference in %s: %w", kind, collection, err)
	}
	metrics.ReferenceResolveTotal.WithLabelValues(kind, "db").Inc()
	metrics.ReferenceDocumentsFetched.WithLabelValues(collection).Add(float64(len(docs)))

	if r.cache != nil {
		r.store(ctx, key, docs)
	}
	return docs, nil
}

func (r *Reader) cached(ctx context.Context, key string) ([]bson.Raw, bool) {
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			r.logger.Warn("reference cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var c cachedDocs
	if err := bson.Unmarshal(data, &c); err != nil {
		r.logger.Warn("reference cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return c.Docs, true
}

func (r *Reader) store(ctx context.Context, key string, docs []bson.Raw) {
	data, err := bson.Marshal(cachedDocs{Docs: docs})
	if err != nil {
		r.logger.Warn("reference cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.cache.SetWithTTL(ctx, key, data, r.ttl); err != nil {
		r.logger.Warn("reference cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// cacheKey is `ref:<collection>:<hash of filter and sort>`.
func cacheKey(collection string, filter, sort bson.D) (string, error) {
	doc := bson.D{{Key: "filter", Value: filter}}
	if len(sort) > 0 {
		doc = append(doc, bson.E{Key: "sort", Value: sort})
	}
	data, err := bson.MarshalExtJSON(doc, true, false)
	if err != nil {
		return "", fmt.Errorf("reference cache key: %w", err)
	}
	return cachePrefix + collection + ":" + strconv.FormatUint(xxhash.Sum64(data), 16), nil
}
