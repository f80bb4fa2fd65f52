package document

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/db"
)

// Repository defines the storage contract for documents.
type Repository interface {
	Upsert(ctx context.Context, collection string, id any, doc bson.D) error
	BatchUpsert(ctx context.Context, collection string, items []db.UpsertItem) error
	Get(ctx context.Context, collection string, id any) (bson.Raw, error)
	Find(ctx context.Context, collection string, filter bson.D, opts db.FindOptions) ([]bson.Raw, error)
	Count(ctx context.Context, collection string, filter bson.D) (int64, error)
	Exists(ctx context.Context, collection string, filter bson.D) (bool, error)
	Delete(ctx context.Context, collection string, filter bson.D) (int64, error)
	DeleteByID(ctx context.Context, collection string, id any) error
}

// Invalidator drops cached reference lookups into a collection after it changes.
type Invalidator interface {
	Invalidate(ctx context.Context, collection string) error
}
