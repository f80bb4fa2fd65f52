package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kailas-cloud/mongomap/internal/db"
)

// CreateCollection creates a collection, attaching validator when given.
func (s *Store) CreateCollection(ctx context.Context, name string, validator bson.D) error {
	opts := options.CreateCollection()
	if len(validator) > 0 {
		opts.SetValidator(validator)
	}
	if err := s.database.CreateCollection(ctx, name, opts); err != nil {
		return wrap(db.OpCreateCollection, err)
	}
	return nil
}

// CollectionExists reports whether a collection with name exists.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	names, err := s.database.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return false, wrap(db.OpListCollections, err)
	}
	return len(names) > 0, nil
}

// SetValidator replaces the validator of name through collMod.
func (s *Store) SetValidator(ctx context.Context, name string, validator bson.D) error {
	return s.run(ctx, db.OpCollMod, bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	})
}

// DropCollection drops a collection; dropping a missing one is not an error.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	if err := s.coll(name).Drop(ctx); err != nil && !isNamespaceNotFound(err) {
		return wrap(db.OpDropCollection, err)
	}
	return nil
}

// ListCollections lists collection names of the database.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.database.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, wrap(db.OpListCollections, err)
	}
	return names, nil
}
