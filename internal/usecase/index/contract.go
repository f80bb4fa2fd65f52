package index

import (
	"context"

	domidx "github.com/kailas-cloud/mongomap/internal/index"
	repoidx "github.com/kailas-cloud/mongomap/internal/repository/index"
)

// Repository defines the index storage contract.
type Repository interface {
	Ensure(ctx context.Context, collection string, def domidx.Definition) (string, error)
	Drop(ctx context.Context, collection, name string) error
	DropAll(ctx context.Context, collection string) error
	List(ctx context.Context, collection string) ([]domidx.Info, error)
	Alter(ctx context.Context, collection, name string, opts repoidx.AlterOptions) error
}

// SearchRepository defines the search index storage contract.
type SearchRepository interface {
	Create(ctx context.Context, collection string, def domidx.SearchIndexDefinition) (string, error)
	Update(ctx context.Context, collection string, def domidx.SearchIndexDefinition) error
	Exists(ctx context.Context, collection, name string) (bool, error)
	Drop(ctx context.Context, collection, name string) error
	List(ctx context.Context, collection string) ([]domidx.SearchIndexInfo, error)
}
