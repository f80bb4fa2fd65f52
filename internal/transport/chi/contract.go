package chi

import (
	"context"

	"github.com/kailas-cloud/mongomap/internal/domain/search/request"
	"github.com/kailas-cloud/mongomap/internal/domain/search/result"
	domusage "github.com/kailas-cloud/mongomap/internal/domain/usage"
	domidx "github.com/kailas-cloud/mongomap/internal/index"
	healthuc "github.com/kailas-cloud/mongomap/internal/usecase/health"
)

// CollectionService lists and drops collections.
type CollectionService interface {
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// IndexService manages regular and search indexes of a collection.
type IndexService interface {
	List(ctx context.Context, collection string) ([]domidx.Info, error)
	Drop(ctx context.Context, collection, name string) error
	SetHidden(ctx context.Context, collection, name string, hidden bool) error
	ListSearch(ctx context.Context, collection string) ([]domidx.SearchIndexInfo, error)
	DropSearch(ctx context.Context, collection, name string) error
}

// SearchService runs vector, text and hybrid searches.
type SearchService interface {
	Search(ctx context.Context, collection string, req *request.Request) ([]result.Result, error)
}

// UsageService reports embedding token usage.
type UsageService interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthService aggregates component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}
