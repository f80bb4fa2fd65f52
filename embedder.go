package mongomap

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mongomap/internal/domain"
	"github.com/kailas-cloud/mongomap/internal/transport/openai"
)

// Embedder converts query text to vector embeddings for vector and hybrid search.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// modeler is implemented by embedders that name their model. The name scopes cached vectors.
type modeler interface {
	Model() string
}

// OpenAIConfig configures an OpenAI-compatible embedding provider (OpenAI, Nebius, Ollama).
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

// NewOpenAIEmbedder creates an Embedder backed by an OpenAI-compatible embeddings API.
func NewOpenAIEmbedder(cfg OpenAIConfig) Embedder {
	return &openAIEmbedder{inner: openai.NewEmbedder(&openai.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   "openai",
		Logger:     cfg.Logger,
	})}
}

type openAIEmbedder struct {
	inner *openai.Embedder
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	r, err := e.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, err
	}
	return EmbeddingResult(r), nil
}

func (e *openAIEmbedder) Model() string { return e.inner.Model() }

// HealthCheck verifies the provider is reachable.
func (e *openAIEmbedder) HealthCheck(ctx context.Context) error { return e.inner.HealthCheck(ctx) }

// embedderAdapter bridges the public Embedder to the internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult(r), nil
}

func modelOf(e Embedder) string {
	if m, ok := e.(modeler); ok {
		return m.Model()
	}
	return ""
}
