package search

import (
	"context"

	"github.com/kailas-cloud/mongomap/internal/domain"
	"github.com/kailas-cloud/mongomap/internal/domain/search/request"
	"github.com/kailas-cloud/mongomap/internal/domain/search/result"
)

// Repository defines the storage contract for search operations.
type Repository interface {
	Vector(ctx context.Context, collection string, req *request.Request, vector []float32) ([]result.Result, error)
	Text(ctx context.Context, collection string, req *request.Request) ([]result.Result, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
