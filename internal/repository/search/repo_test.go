package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/domain"
	"github.com/kailas-cloud/mongomap/internal/domain/search/mode"
	"github.com/kailas-cloud/mongomap/internal/domain/search/request"
)

func mustRequest(t *testing.T, p request.Params) *request.Request {
	t.Helper()
	r, err := request.New(p)
	require.NoError(t, err)
	return &r
}

func TestVectorPipeline(t *testing.T) {
	req := mustRequest(t, request.Params{
		Query: "q", Index: "books_vector", Path: "embedding", Limit: 5,
		Filter: bson.D{{Key: "genre", Value: "sf"}},
	})

	got := VectorPipeline(req, []float32{0.5, 0.25})
	assert.Equal(t, bson.A{
		bson.D{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: "books_vector"},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: []float32{0.5, 0.25}},
			{Key: "numCandidates", Value: 50},
			{Key: "limit", Value: 5},
			{Key: "filter", Value: bson.D{{Key: "genre", Value: "sf"}}},
		}}},
		bson.D{{Key: "$set", Value: bson.D{{Key: ScoreField, Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}}}}},
	}, got)
}

func TestVectorPipeline_Exact(t *testing.T) {
	req := mustRequest(t, request.Params{Vector: []float32{1}, Index: "i", Path: "v", Exact: true})

	stage := VectorPipeline(req, []float32{1})[0].(bson.D)[0].Value.(bson.D)
	keys := make([]string, len(stage))
	for i, e := range stage {
		keys[i] = e.Key
	}
	assert.Equal(t, []string{"index", "path", "queryVector", "exact", "limit"}, keys)
}

func TestTextPipeline(t *testing.T) {
	req := mustRequest(t, request.Params{Query: "dune", Mode: mode.Text, Limit: 3, Filter: bson.D{{Key: "year", Value: 1965}}})

	got := TextPipeline(req)
	require.Len(t, got, 4)
	assert.Equal(t, bson.D{{Key: "$match", Value: bson.D{
		{Key: "$text", Value: bson.D{{Key: "$search", Value: "dune"}}},
		{Key: "year", Value: 1965},
	}}}, got[0])
	assert.Equal(t, bson.D{{Key: "$limit", Value: 3}}, got[3])
}

func TestVector_StripsScore(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.aggregateFn = func(_ context.Context, coll string, pipeline bson.A) ([]bson.Raw, error) {
		assert.Equal(t, "books", coll)
		assert.Len(t, pipeline, 2)
		return []bson.Raw{
			mustRaw(t, bson.D{{Key: "_id", Value: "b1"}, {Key: "title", Value: "Dune"}, {Key: ScoreField, Value: 0.92}}),
			mustRaw(t, bson.D{{Key: "_id", Value: "b2"}, {Key: ScoreField, Value: 0.81}}),
		}, nil
	}

	req := mustRequest(t, request.Params{Query: "q", Index: "i", Path: "embedding"})
	res, err := repo.Vector(context.Background(), "books", req, []float32{1, 0})
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.InDelta(t, 0.92, res[0].Score(), 1e-9)
	assert.Equal(t, "b1", res[0].ID().StringValue())
	_, err = res[0].Document().LookupErr(ScoreField)
	assert.Error(t, err, "score field must be removed")
	assert.Equal(t, "Dune", res[0].Document().Lookup("title").StringValue())
}

func TestVector_EmptyVector(t *testing.T) {
	repo, _ := newTestRepo(t)
	req := mustRequest(t, request.Params{Query: "q", Index: "i", Path: "v"})

	_, err := repo.Vector(context.Background(), "books", req, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidSearch)
}

func TestVector_NotSupported(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.aggregateFn = func(context.Context, string, bson.A) ([]bson.Raw, error) {
		return nil, &db.Error{Op: db.OpAggregate, Err: db.ErrSearchNotEnabled}
	}
	req := mustRequest(t, request.Params{Query: "q", Index: "i", Path: "v"})

	_, err := repo.Vector(context.Background(), "books", req, []float32{1})
	assert.ErrorIs(t, err, domain.ErrSearchNotSupported)
}

func TestText_Error(t *testing.T) {
	repo, ms := newTestRepo(t)
	cause := errors.New("text index required")
	ms.aggregateFn = func(context.Context, string, bson.A) ([]bson.Raw, error) { return nil, cause }
	req := mustRequest(t, request.Params{Query: "q", Mode: mode.Text})

	_, err := repo.Text(context.Background(), "books", req)
	assert.ErrorIs(t, err, cause)
}
