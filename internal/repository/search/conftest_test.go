package search

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	aggregateFn func(ctx context.Context, collection string, pipeline bson.A) ([]bson.Raw, error)
}

func (m *mockStore) Aggregate(ctx context.Context, collection string, pipeline bson.A) ([]bson.Raw, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, collection, pipeline)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func mustRaw(t *testing.T, d bson.D) bson.Raw {
	t.Helper()
	raw, err := bson.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}
