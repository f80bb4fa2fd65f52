package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces
type Store interface {
	Pinger
	Finder
	DocumentStore
	IndexManager
	SearchIndexManager
	CollectionManager
	Close(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FindOptions shapes a find command.
type FindOptions struct {
	Sort       bson.D
	Skip       int64
	Limit      int64
	Projection bson.D
	Collation  bson.D
}

// Finder runs read operations. Results are raw documents in server order.
type Finder interface {
	Find(ctx context.Context, collection string, filter bson.D, opts FindOptions) ([]bson.Raw, error)
	// FindOne returns ErrNotFound when nothing matches.
	FindOne(ctx context.Context, collection string, filter bson.D) (bson.Raw, error)
	Count(ctx context.Context, collection string, filter bson.D) (int64, error)
	Aggregate(ctx context.Context, collection string, pipeline bson.A) ([]bson.Raw, error)
}

// UpsertItem is a single replace-by-id for pipelined upserts.
type UpsertItem struct {
	ID  any
	Doc bson.D
}

// DocumentStore provides document write operations.
type DocumentStore interface {
	// Insert returns ErrDuplicateKey on unique index violations.
	Insert(ctx context.Context, collection string, doc bson.D) error
	Upsert(ctx context.Context, collection string, id any, doc bson.D) error
	UpsertMulti(ctx context.Context, collection string, items []UpsertItem) error
	// Delete removes all matching documents and reports how many were removed.
	Delete(ctx context.Context, collection string, filter bson.D) (int64, error)
}

// IndexManager provides index lifecycle operations. Models are createIndexes elements
// ({key, name, ...options}).
type IndexManager interface {
	CreateIndexes(ctx context.Context, collection string, models []bson.D) error
	DropIndex(ctx context.Context, collection, name string) error
	// DropIndexes drops every index except _id.
	DropIndexes(ctx context.Context, collection string) error
	ListIndexes(ctx context.Context, collection string) ([]bson.Raw, error)
	// ModifyIndex applies collMod changes such as {hidden: true} to the named index.
	ModifyIndex(ctx context.Context, collection, name string, changes bson.D) error
}

// SearchIndexModel is a createSearchIndexes element.
type SearchIndexModel struct {
	Name       string
	Type       string
	Definition bson.D
}

// SearchIndexManager manages Atlas search and vector search indexes.
type SearchIndexManager interface {
	CreateSearchIndexes(ctx context.Context, collection string, models []SearchIndexModel) error
	UpdateSearchIndex(ctx context.Context, collection, name string, definition bson.D) error
	DropSearchIndex(ctx context.Context, collection, name string) error
	// ListSearchIndexes lists all search indexes, or only the named one when name is set.
	ListSearchIndexes(ctx context.Context, collection, name string) ([]bson.Raw, error)
}

// CollectionManager provides collection lifecycle operations.
type CollectionManager interface {
	// CreateCollection creates a collection with an optional validator.
	// Returns ErrCollectionExists when it is already present.
	CreateCollection(ctx context.Context, name string, validator bson.D) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	// SetValidator replaces the validator of an existing collection.
	SetValidator(ctx context.Context, name string, validator bson.D) error
	DropCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
}
