package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/db"
)

// CreateIndexes issues one createIndexes command for all models.
func (s *Store) CreateIndexes(ctx context.Context, collection string, models []bson.D) error {
	if len(models) == 0 {
		return nil
	}
	indexes := make(bson.A, len(models))
	for i, m := range models {
		indexes[i] = m
	}
	return s.run(ctx, db.OpCreateIndexes, bson.D{
		{Key: "createIndexes", Value: collection},
		{Key: "indexes", Value: indexes},
	})
}

// DropIndex drops the named index.
func (s *Store) DropIndex(ctx context.Context, collection, name string) error {
	return s.run(ctx, db.OpDropIndexes, bson.D{
		{Key: "dropIndexes", Value: collection},
		{Key: "index", Value: name},
	})
}

// DropIndexes drops all indexes but _id. A missing collection has nothing to drop.
func (s *Store) DropIndexes(ctx context.Context, collection string) error {
	err := s.database.RunCommand(ctx, bson.D{
		{Key: "dropIndexes", Value: collection},
		{Key: "index", Value: "*"},
	}).Err()
	if err != nil && !isNamespaceNotFound(err) {
		return wrap(db.OpDropIndexes, err)
	}
	return nil
}

// ListIndexes returns the raw index documents. A missing collection has no indexes.
func (s *Store) ListIndexes(ctx context.Context, collection string) ([]bson.Raw, error) {
	cur, err := s.coll(collection).Indexes().List(ctx)
	if err != nil {
		if isNamespaceNotFound(err) {
			return nil, nil
		}
		return nil, wrap(db.OpListIndexes, err)
	}
	docs, err := drain(ctx, cur)
	if err != nil {
		return nil, wrap(db.OpListIndexes, err)
	}
	return docs, nil
}

// ModifyIndex runs collMod for the named index, e.g. changes {hidden: true}.
func (s *Store) ModifyIndex(ctx context.Context, collection, name string, changes bson.D) error {
	if len(changes) == 0 {
		return fmt.Errorf("%s: no index changes given", db.OpCollMod)
	}
	spec := append(bson.D{{Key: "name", Value: name}}, changes...)
	return s.run(ctx, db.OpCollMod, bson.D{
		{Key: "collMod", Value: collection},
		{Key: "index", Value: spec},
	})
}

// CreateSearchIndexes issues createSearchIndexes for all models.
func (s *Store) CreateSearchIndexes(ctx context.Context, collection string, models []db.SearchIndexModel) error {
	if len(models) == 0 {
		return nil
	}
	indexes := make(bson.A, len(models))
	for i, m := range models {
		d := bson.D{{Key: "name", Value: m.Name}}
		if m.Type != "" {
			d = append(d, bson.E{Key: "type", Value: m.Type})
		}
		indexes[i] = append(d, bson.E{Key: "definition", Value: m.Definition})
	}
	return s.run(ctx, db.OpCreateSearchIndexes, bson.D{
		{Key: "createSearchIndexes", Value: collection},
		{Key: "indexes", Value: indexes},
	})
}

// UpdateSearchIndex replaces the definition of the named search index.
func (s *Store) UpdateSearchIndex(ctx context.Context, collection, name string, definition bson.D) error {
	return s.run(ctx, db.OpUpdateSearchIndex, bson.D{
		{Key: "updateSearchIndex", Value: collection},
		{Key: "name", Value: name},
		{Key: "definition", Value: definition},
	})
}

// DropSearchIndex drops the named search index.
func (s *Store) DropSearchIndex(ctx context.Context, collection, name string) error {
	return s.run(ctx, db.OpDropSearchIndex, bson.D{
		{Key: "dropSearchIndex", Value: collection},
		{Key: "name", Value: name},
	})
}

// ListSearchIndexes runs the $listSearchIndexes stage.
func (s *Store) ListSearchIndexes(ctx context.Context, collection, name string) ([]bson.Raw, error) {
	stage := bson.D{}
	if name != "" {
		stage = bson.D{{Key: "name", Value: name}}
	}
	cur, err := s.coll(collection).Aggregate(ctx, bson.A{bson.D{{Key: "$listSearchIndexes", Value: stage}}})
	if err != nil {
		if isNamespaceNotFound(err) {
			return nil, nil
		}
		return nil, wrap(db.OpListSearchIndexes, err)
	}
	docs, err := drain(ctx, cur)
	if err != nil {
		return nil, wrap(db.OpListSearchIndexes, err)
	}
	return docs, nil
}
