package mongomap

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/convert"
	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/index"
	"github.com/kailas-cloud/mongomap/internal/mapping"
	"github.com/kailas-cloud/mongomap/internal/query"
	"github.com/kailas-cloud/mongomap/internal/schema"
)

// Repository stores and loads documents of type T, a struct that names its collection
// through CollectionName. Safe for concurrent use.
type Repository[T any] struct {
	c      *Client
	entity *mapping.Entity
	trees  sync.Map // method name -> *query.PartTree
}

// NewRepository maps T and, with auto index creation enabled, ensures its indexes.
func NewRepository[T any](ctx context.Context, c *Client) (*Repository[T], error) {
	t := reflect.TypeFor[T]()
	e, err := c.mc.Entity(t)
	if err != nil {
		return nil, fmt.Errorf("mongomap: map %s: %w", t, err)
	}
	if !e.Document {
		return nil, fmt.Errorf("%w: %s", ErrNotDocument, e.Name)
	}
	r := &Repository[T]{c: c, entity: e}
	if c.autoIndex {
		if _, err := r.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Collection returns the collection name documents are stored in.
func (r *Repository[T]) Collection() string { return r.entity.Collection }

// Save writes v, replacing the stored document with the same id. A zero ObjectID or UUID id
// is generated and set on v first.
func (r *Repository[T]) Save(ctx context.Context, v *T) (err error) {
	defer r.observe("save", time.Now(), &err)

	doc, id, err := r.write(v)
	if err != nil {
		return err
	}
	return r.c.docSvc.Save(ctx, r.entity.Collection, id, doc)
}

// SaveAll writes vs in bulk. On failure the documents written before the failing chunk stay
// stored.
func (r *Repository[T]) SaveAll(ctx context.Context, vs []*T) (err error) {
	defer r.observe("save_all", time.Now(), &err)

	items := make([]db.UpsertItem, 0, len(vs))
	for i, v := range vs {
		doc, id, err := r.write(v)
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, db.UpsertItem{ID: id, Doc: doc})
	}
	return r.c.docSvc.SaveMany(ctx, r.entity.Collection, items)
}

// FindByID loads the document with the given id. A missing document is ErrDocumentNotFound.
func (r *Repository[T]) FindByID(ctx context.Context, id any) (_ *T, err error) {
	defer r.observe("find_by_id", time.Now(), &err)

	raw, err := r.c.docSvc.Get(ctx, r.entity.Collection, convert.StoredValue(id))
	if err != nil {
		return nil, err
	}
	return r.read(ctx, raw)
}

// FindAll loads every document of the collection.
func (r *Repository[T]) FindAll(ctx context.Context) ([]*T, error) {
	return r.Find(ctx, nil)
}

// Find loads the documents matching q. A nil query matches everything.
func (r *Repository[T]) Find(ctx context.Context, q *Query) (_ []*T, err error) {
	defer r.observe("find", time.Now(), &err)

	filter, opts, err := render(q)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, filter, opts)
}

// FindOne loads the first document matching q. No match is ErrDocumentNotFound.
func (r *Repository[T]) FindOne(ctx context.Context, q *Query) (_ *T, err error) {
	defer r.observe("find_one", time.Now(), &err)

	filter, opts, err := render(q)
	if err != nil {
		return nil, err
	}
	opts.Limit = 1
	out, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrDocumentNotFound
	}
	return out[0], nil
}

// FindByExample loads the documents matching the populated fields of ex's probe.
func (r *Repository[T]) FindByExample(ctx context.Context, ex Example) (_ []*T, err error) {
	defer r.observe("find_by_example", time.Now(), &err)

	filter, err := ex.Filter(r.c.mc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return r.find(ctx, filter, db.FindOptions{})
}

// FindBy runs a query derived from a method name such as "findByLastnameAndAgeGreaterThan"
// or "findTop3ByAgeOrderByLastnameDesc". Args bind to the predicates in order.
func (r *Repository[T]) FindBy(ctx context.Context, method string, args ...any) (_ []*T, err error) {
	defer r.observe("find_by", time.Now(), &err)

	tree, q, err := r.derive(method, query.SubjectFind, args)
	if err != nil {
		return nil, err
	}
	filter, opts, err := render(q)
	if err != nil {
		return nil, err
	}
	if tree.Limit > 0 {
		opts.Limit = tree.Limit
	}
	return r.find(ctx, filter, opts)
}

// CountBy counts with a derived query such as "countByLastname".
func (r *Repository[T]) CountBy(ctx context.Context, method string, args ...any) (_ int64, err error) {
	defer r.observe("count_by", time.Now(), &err)

	_, q, err := r.derive(method, query.SubjectCount, args)
	if err != nil {
		return 0, err
	}
	filter, _, err := render(q)
	if err != nil {
		return 0, err
	}
	return r.c.docSvc.Count(ctx, r.entity.Collection, filter)
}

// ExistsBy checks a derived query such as "existsByEmail".
func (r *Repository[T]) ExistsBy(ctx context.Context, method string, args ...any) (_ bool, err error) {
	defer r.observe("exists_by", time.Now(), &err)

	_, q, err := r.derive(method, query.SubjectExists, args)
	if err != nil {
		return false, err
	}
	filter, _, err := render(q)
	if err != nil {
		return false, err
	}
	return r.c.docSvc.Exists(ctx, r.entity.Collection, filter)
}

// DeleteBy deletes with a derived query such as "deleteByLastname" and returns how many
// documents were removed.
func (r *Repository[T]) DeleteBy(ctx context.Context, method string, args ...any) (_ int64, err error) {
	defer r.observe("delete_by", time.Now(), &err)

	_, q, err := r.derive(method, query.SubjectDelete, args)
	if err != nil {
		return 0, err
	}
	filter, _, err := render(q)
	if err != nil {
		return 0, err
	}
	return r.c.docSvc.Delete(ctx, r.entity.Collection, filter)
}

// Count counts the documents matching q. A nil query counts everything.
func (r *Repository[T]) Count(ctx context.Context, q *Query) (_ int64, err error) {
	defer r.observe("count", time.Now(), &err)

	filter, _, err := render(q)
	if err != nil {
		return 0, err
	}
	return r.c.docSvc.Count(ctx, r.entity.Collection, filter)
}

// Exists reports whether a document with the given id is stored.
func (r *Repository[T]) Exists(ctx context.Context, id any) (_ bool, err error) {
	defer r.observe("exists", time.Now(), &err)

	return r.c.docSvc.Exists(ctx, r.entity.Collection, bson.D{{Key: "_id", Value: convert.StoredValue(id)}})
}

// DeleteByID removes the document with the given id. A missing document is ErrDocumentNotFound.
func (r *Repository[T]) DeleteByID(ctx context.Context, id any) (err error) {
	defer r.observe("delete_by_id", time.Now(), &err)

	return r.c.docSvc.DeleteByID(ctx, r.entity.Collection, convert.StoredValue(id))
}

// Delete removes the stored document of v.
func (r *Repository[T]) Delete(ctx context.Context, v *T) error {
	if v == nil {
		return convert.ErrInvalidTarget
	}
	id, err := r.c.conv.IDOf(v)
	if err != nil {
		return err
	}
	return r.DeleteByID(ctx, id)
}

// EnsureIndexes creates the indexes, search indexes and vector indexes derived from T's
// mapping. Existing identical indexes are kept.
func (r *Repository[T]) EnsureIndexes(ctx context.Context) (_ IndexResult, err error) {
	defer r.observe("ensure_indexes", time.Now(), &err)

	res, err := r.c.indexSvc.EnsureEntity(ctx, r.entity)
	if err != nil {
		return res, fmt.Errorf("ensure indexes: %w", err)
	}
	return res, nil
}

// Schema returns the JSON schema derived from T's mapping.
func (r *Repository[T]) Schema() JSONSchema {
	return schema.NewCreator().Create(r.entity)
}

// EnsureCollection creates the collection with T's JSON schema as validator, or replaces the
// validator of an existing collection. It reports whether the collection was created.
func (r *Repository[T]) EnsureCollection(ctx context.Context) (_ bool, err error) {
	defer r.observe("ensure_collection", time.Now(), &err)

	return r.c.collSvc.Ensure(ctx, r.entity.Collection, r.Schema().Document())
}

// Search starts a search over the collection. Vector searches default to T's first vector
// index and path.
func (r *Repository[T]) Search() *SearchBuilder[T] {
	return &SearchBuilder[T]{repo: r}
}

// VectorSearch embeds text and returns the nearest limit documents.
func (r *Repository[T]) VectorSearch(ctx context.Context, text string, limit int) ([]Hit[T], error) {
	return r.Search().Query(text).Limit(limit).Do(ctx)
}

// VectorSearchByVector returns the nearest limit documents to vector.
func (r *Repository[T]) VectorSearchByVector(ctx context.Context, vector []float32, limit int) ([]Hit[T], error) {
	return r.Search().Vector(vector).Limit(limit).Do(ctx)
}

func (r *Repository[T]) write(v *T) (bson.D, any, error) {
	if v == nil {
		return nil, nil, convert.ErrInvalidTarget
	}
	doc, err := r.c.conv.Write(v)
	if err != nil {
		return nil, nil, fmt.Errorf("convert %s: %w", r.entity.Name, err)
	}
	id, err := r.c.conv.IDOf(v)
	if err != nil {
		return nil, nil, err
	}
	if isEmptyID(id) {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmptyID, r.entity.Name)
	}
	return doc, id, nil
}

func (r *Repository[T]) read(ctx context.Context, raw bson.Raw) (*T, error) {
	out := new(T)
	if err := r.c.conv.Read(ctx, raw, out); err != nil {
		return nil, fmt.Errorf("read %s: %w", r.entity.Name, err)
	}
	return out, nil
}

func (r *Repository[T]) find(ctx context.Context, filter bson.D, opts db.FindOptions) ([]*T, error) {
	raws, err := r.c.docSvc.Find(ctx, r.entity.Collection, filter, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(raws))
	for _, raw := range raws {
		v, err := r.read(ctx, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// derive parses method once per repository and binds args. The method's subject must be want.
func (r *Repository[T]) derive(method string, want query.Subject, args []any) (*query.PartTree, *Query, error) {
	var tree *query.PartTree
	if cached, ok := r.trees.Load(method); ok {
		tree = cached.(*query.PartTree)
	} else {
		parsed, err := query.ParsePartTree(method, r.entity)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		r.trees.Store(method, parsed)
		tree = parsed
	}
	if tree.Subject != want {
		return nil, nil, fmt.Errorf("%w: %s is a %s query, not %s", ErrInvalidQuery, method, tree.Subject, want)
	}

	stored := make([]any, len(args))
	for i, a := range args {
		stored[i] = convert.StoredValue(a)
	}
	q, err := tree.Query(stored...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return tree, q, nil
}

func (r *Repository[T]) observe(op string, start time.Time, errp *error) {
	r.c.obs.observe(op, r.entity.Collection, start, *errp)
}

func render(q *Query) (bson.D, db.FindOptions, error) {
	if q == nil {
		return bson.D{}, db.FindOptions{}, nil
	}
	filter, err := q.Filter()
	if err != nil {
		return nil, db.FindOptions{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return filter, q.FindOptions(), nil
}

func isEmptyID(id any) bool {
	switch v := id.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	return false
}

// vectorTarget picks the vector index and embedding path of T.
func (r *Repository[T]) vectorTarget() (string, string, error) {
	defs, err := index.ResolveSearchIndexes(r.entity)
	if err != nil {
		return "", "", err
	}
	for _, d := range defs {
		vi, ok := d.(*index.VectorIndex)
		if !ok {
			continue
		}
		for _, f := range vi.Fields() {
			if !f.Filter {
				return vi.Name(), f.Path, nil
			}
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrNoVectorIndex, r.entity.Name)
}
