package search

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/bsonutil"
	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/domain"
	"github.com/kailas-cloud/mongomap/internal/domain/search/request"
	"github.com/kailas-cloud/mongomap/internal/domain/search/result"
)

// ScoreField carries the search score on returned documents. It is removed before mapping.
const ScoreField = "_mongomap_score"

// store is the consumer interface for search (ISP).
type store interface {
	Aggregate(ctx context.Context, collection string, pipeline bson.A) ([]bson.Raw, error)
}

// Repo runs $vectorSearch and $text queries as aggregation pipelines.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Vector runs an approximate (or exact) nearest neighbour search for vector.
func (r *Repo) Vector(ctx context.Context, collection string, req *request.Request, vector []float32) ([]result.Result, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrInvalidSearch)
	}
	raws, err := r.store.Aggregate(ctx, collection, VectorPipeline(req, vector))
	if err != nil {
		if errors.Is(err, db.ErrSearchNotEnabled) {
			return nil, fmt.Errorf("vector search %s: %w", collection, domain.ErrSearchNotSupported)
		}
		return nil, fmt.Errorf("vector search %s: %w", collection, err)
	}
	return toResults(raws)
}

// Text runs a $text query ranked by text score. The collection needs a text index.
func (r *Repo) Text(ctx context.Context, collection string, req *request.Request) ([]result.Result, error) {
	raws, err := r.store.Aggregate(ctx, collection, TextPipeline(req))
	if err != nil {
		return nil, fmt.Errorf("text search %s: %w", collection, err)
	}
	return toResults(raws)
}

// VectorPipeline builds the $vectorSearch aggregation for req.
func VectorPipeline(req *request.Request, vector []float32) bson.A {
	stage := bson.D{
		{Key: "index", Value: req.Index()},
		{Key: "path", Value: req.Path()},
		{Key: "queryVector", Value: vector},
	}
	if req.Exact() {
		stage = append(stage, bson.E{Key: "exact", Value: true})
	} else {
		stage = append(stage, bson.E{Key: "numCandidates", Value: req.NumCandidates()})
	}
	stage = append(stage, bson.E{Key: "limit", Value: req.Limit()})
	if len(req.Filter()) > 0 {
		stage = append(stage, bson.E{Key: "filter", Value: req.Filter()})
	}
	return bson.A{
		bson.D{{Key: "$vectorSearch", Value: stage}},
		bson.D{{Key: "$set", Value: bson.D{{Key: ScoreField, Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}}}}},
	}
}

// TextPipeline builds the $text aggregation for req. $text must sit in the first $match.
func TextPipeline(req *request.Request) bson.A {
	match := bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: req.Query()}}}}
	match = append(match, req.Filter()...)
	return bson.A{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$set", Value: bson.D{{Key: ScoreField, Value: bson.D{{Key: "$meta", Value: "textScore"}}}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: ScoreField, Value: -1}}}},
		bson.D{{Key: "$limit", Value: req.Limit()}},
	}
}

func toResults(raws []bson.Raw) ([]result.Result, error) {
	out := make([]result.Result, 0, len(raws))
	for _, raw := range raws {
		doc, score, err := splitScore(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, result.New(doc, score))
	}
	return out, nil
}

// splitScore removes ScoreField from raw and returns it as the score.
func splitScore(raw bson.Raw) (bson.Raw, float64, error) {
	val, err := raw.LookupErr(ScoreField)
	if err != nil {
		return raw, 0, nil
	}
	var score any
	if err := val.Unmarshal(&score); err != nil {
		return nil, 0, fmt.Errorf("decode score: %w", err)
	}
	f, _ := bsonutil.ToFloat64(score)

	elems, err := raw.Elements()
	if err != nil {
		return nil, 0, fmt.Errorf("decode hit: %w", err)
	}
	doc := make(bson.D, 0, len(elems)-1)
	for _, el := range elems {
		if el.Key() == ScoreField {
			continue
		}
		doc = append(doc, bson.E{Key: el.Key(), Value: el.Value()})
	}
	stripped, err := bson.Marshal(doc)
	if err != nil {
		return nil, 0, fmt.Errorf("encode hit: %w", err)
	}
	return stripped, f, nil
}
