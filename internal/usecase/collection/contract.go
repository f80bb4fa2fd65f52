package collection

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Repository defines the storage contract for collections.
type Repository interface {
	CreateCollection(ctx context.Context, name string, validator bson.D) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	SetValidator(ctx context.Context, name string, validator bson.D) error
	DropCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
}
