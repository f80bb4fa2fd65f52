package index

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/db"
)

// mockStore implements both consumer interfaces for tests.
type mockStore struct {
	createIndexesFn func(ctx context.Context, collection string, models []bson.D) error
	dropIndexFn     func(ctx context.Context, collection, name string) error
	dropIndexesFn   func(ctx context.Context, collection string) error
	listIndexesFn   func(ctx context.Context, collection string) ([]bson.Raw, error)
	modifyIndexFn   func(ctx context.Context, collection, name string, changes bson.D) error

	createSearchFn func(ctx context.Context, collection string, models []db.SearchIndexModel) error
	updateSearchFn func(ctx context.Context, collection, name string, definition bson.D) error
	dropSearchFn   func(ctx context.Context, collection, name string) error
	listSearchFn   func(ctx context.Context, collection, name string) ([]bson.Raw, error)
}

func (m *mockStore) CreateIndexes(ctx context.Context, collection string, models []bson.D) error {
	if m.createIndexesFn != nil {
		return m.createIndexesFn(ctx, collection, models)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, collection, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, collection, name)
	}
	return nil
}

func (m *mockStore) DropIndexes(ctx context.Context, collection string) error {
	if m.dropIndexesFn != nil {
		return m.dropIndexesFn(ctx, collection)
	}
	return nil
}

func (m *mockStore) ListIndexes(ctx context.Context, collection string) ([]bson.Raw, error) {
	if m.listIndexesFn != nil {
		return m.listIndexesFn(ctx, collection)
	}
	return nil, nil
}

func (m *mockStore) ModifyIndex(ctx context.Context, collection, name string, changes bson.D) error {
	if m.modifyIndexFn != nil {
		return m.modifyIndexFn(ctx, collection, name, changes)
	}
	return nil
}

func (m *mockStore) CreateSearchIndexes(ctx context.Context, collection string, models []db.SearchIndexModel) error {
	if m.createSearchFn != nil {
		return m.createSearchFn(ctx, collection, models)
	}
	return nil
}

func (m *mockStore) UpdateSearchIndex(ctx context.Context, collection, name string, definition bson.D) error {
	if m.updateSearchFn != nil {
		return m.updateSearchFn(ctx, collection, name, definition)
	}
	return nil
}

func (m *mockStore) DropSearchIndex(ctx context.Context, collection, name string) error {
	if m.dropSearchFn != nil {
		return m.dropSearchFn(ctx, collection, name)
	}
	return nil
}

func (m *mockStore) ListSearchIndexes(ctx context.Context, collection, name string) ([]bson.Raw, error) {
	if m.listSearchFn != nil {
		return m.listSearchFn(ctx, collection, name)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *SearchRepo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), NewSearch(ms), ms
}

func mustRaw(t *testing.T, d bson.D) bson.Raw {
	t.Helper()
	raw, err := bson.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}
