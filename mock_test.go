package mongomap

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/db"
)

// --- db.Store mock ---

type mockStore struct {
	findFn          func(ctx context.Context, collection string, filter bson.D, opts db.FindOptions) ([]bson.Raw, error)
	findOneFn       func(ctx context.Context, collection string, filter bson.D) (bson.Raw, error)
	countFn         func(ctx context.Context, collection string, filter bson.D) (int64, error)
	aggregateFn     func(ctx context.Context, collection string, pipeline bson.A) ([]bson.Raw, error)
	upsertFn        func(ctx context.Context, collection string, id any, doc bson.D) error
	upsertMultiFn   func(ctx context.Context, collection string, items []db.UpsertItem) error
	deleteFn        func(ctx context.Context, collection string, filter bson.D) (int64, error)
	createIndexesFn func(ctx context.Context, collection string, models []bson.D) error
	createSearchFn  func(ctx context.Context, collection string, models []db.SearchIndexModel) error
	listSearchFn    func(ctx context.Context, collection, name string) ([]bson.Raw, error)
	createCollFn    func(ctx context.Context, name string, validator bson.D) error
	setValidatorFn  func(ctx context.Context, name string, validator bson.D) error
	pingFn          func(ctx context.Context) error
	closed          bool
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockStore) Find(ctx context.Context, collection string, filter bson.D, opts db.FindOptions) ([]bson.Raw, error) {
	if m.findFn != nil {
		return m.findFn(ctx, collection, filter, opts)
	}
	return nil, nil
}

func (m *mockStore) FindOne(ctx context.Context, collection string, filter bson.D) (bson.Raw, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, collection, filter)
	}
	return nil, db.ErrNotFound
}

func (m *mockStore) Count(ctx context.Context, collection string, filter bson.D) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, collection, filter)
	}
	return 0, nil
}

func (m *mockStore) Aggregate(ctx context.Context, collection string, pipeline bson.A) ([]bson.Raw, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, collection, pipeline)
	}
	return nil, nil
}

func (m *mockStore) Insert(context.Context, string, bson.D) error { return nil }

func (m *mockStore) Upsert(ctx context.Context, collection string, id any, doc bson.D) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, collection, id, doc)
	}
	return nil
}

func (m *mockStore) UpsertMulti(ctx context.Context, collection string, items []db.UpsertItem) error {
	if m.upsertMultiFn != nil {
		return m.upsertMultiFn(ctx, collection, items)
	}
	return nil
}

func (m *mockStore) Delete(ctx context.Context, collection string, filter bson.D) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, collection, filter)
	}
	return 0, nil
}

func (m *mockStore) CreateIndexes(ctx context.Context, collection string, models []bson.D) error {
	if m.createIndexesFn != nil {
		return m.createIndexesFn(ctx, collection, models)
	}
	return nil
}

func (m *mockStore) DropIndex(context.Context, string, string) error { return nil }

func (m *mockStore) DropIndexes(context.Context, string) error { return nil }

func (m *mockStore) ListIndexes(context.Context, string) ([]bson.Raw, error) { return nil, nil }

func (m *mockStore) ModifyIndex(context.Context, string, string, bson.D) error { return nil }

func (m *mockStore) CreateSearchIndexes(ctx context.Context, collection string, models []db.SearchIndexModel) error {
	if m.createSearchFn != nil {
		return m.createSearchFn(ctx, collection, models)
	}
	return nil
}

func (m *mockStore) UpdateSearchIndex(context.Context, string, string, bson.D) error { return nil }

func (m *mockStore) DropSearchIndex(context.Context, string, string) error { return nil }

func (m *mockStore) ListSearchIndexes(ctx context.Context, collection, name string) ([]bson.Raw, error) {
	if m.listSearchFn != nil {
		return m.listSearchFn(ctx, collection, name)
	}
	return nil, nil
}

func (m *mockStore) CreateCollection(ctx context.Context, name string, validator bson.D) error {
	if m.createCollFn != nil {
		return m.createCollFn(ctx, name, validator)
	}
	return nil
}

func (m *mockStore) CollectionExists(context.Context, string) (bool, error) { return false, nil }

func (m *mockStore) SetValidator(ctx context.Context, name string, validator bson.D) error {
	if m.setValidatorFn != nil {
		return m.setValidatorFn(ctx, name, validator)
	}
	return nil
}

func (m *mockStore) DropCollection(context.Context, string) error { return nil }

func (m *mockStore) ListCollections(context.Context) ([]string, error) { return nil, nil }

func (m *mockStore) Close(context.Context) error {
	m.closed = true
	return nil
}

func (m *mockStore) WaitForReady(context.Context, time.Duration) error { return nil }

// --- cache mock ---

type mockCache struct {
	data        map[string][]byte
	invalidated []string
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (c *mockCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.data[key]
	if !ok {
		return nil, db.ErrNotFound
	}
	return v, nil
}

func (c *mockCache) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *mockCache) Invalidate(_ context.Context, prefix string) error {
	c.invalidated = append(c.invalidated, prefix)
	return nil
}

func (c *mockCache) Ping(context.Context) error { return nil }

// --- embedder mock ---

type mockEmbedder struct {
	calls  int
	vector []float32
	err    error
}

func (e *mockEmbedder) Embed(context.Context, string) (EmbeddingResult, error) {
	e.calls++
	if e.err != nil {
		return EmbeddingResult{}, e.err
	}
	return EmbeddingResult{Embedding: e.vector, PromptTokens: 4, TotalTokens: 4}, nil
}

func (e *mockEmbedder) Model() string { return "test-model" }

// --- test entities ---

type person struct {
	ID        string `bson:"_id"`
	Firstname string `bson:"firstname" mongo:"index"`
	Lastname  string `bson:"lastname"`
	Age       int    `bson:"age"`
}

func (person) CollectionName() string { return "people" }

type article struct {
	ID        bson.ObjectID `bson:"_id"`
	Title     string        `bson:"title"`
	Genre     string        `bson:"genre" mongo:"vectorFilter"`
	Embedding []float64     `bson:"embedding" mongo:"vector:3,cosine"`
}

func (article) CollectionName() string { return "articles" }

type note struct {
	Text string `bson:"text"`
}

func rawDoc(d bson.D) bson.Raw {
	b, err := bson.Marshal(d)
	if err != nil {
		panic(err)
	}
	return b
}
