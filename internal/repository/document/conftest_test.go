package document

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	findFn        func(ctx context.Context, collection string, filter bson.D, opts db.FindOptions) ([]bson.Raw, error)
	findOneFn     func(ctx context.Context, collection string, filter bson.D) (bson.Raw, error)
	countFn       func(ctx context.Context, collection string, filter bson.D) (int64, error)
	upsertFn      func(ctx context.Context, collection string, id any, doc bson.D) error
	upsertMultiFn func(ctx context.Context, collection string, items []db.UpsertItem) error
	deleteFn      func(ctx context.Context, collection string, filter bson.D) (int64, error)
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

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}
