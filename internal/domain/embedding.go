package domain

import (
	"context"
	"fmt"
)

// Embedder turns query text into a vector for $vectorSearch.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the query vector and the tokens the provider charged for it.
// Cached results report zero tokens.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// CheckDimensions fails with ErrVectorDimMismatch when want is set and v has another length.
func CheckDimensions(v []float32, want int) error {
	if want > 0 && len(v) != want {
		return fmt.Errorf("got %d dimensions, want %d: %w", len(v), want, ErrVectorDimMismatch)
	}
	return nil
}

// InstructionEmbedder prefixes query text with an instruction, for instruction-tuned models
// such as e5 or bge that expect "query: ..." inputs.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder wraps inner. An empty instruction returns inner unchanged.
func NewInstructionEmbedder(inner Embedder, instruction string) Embedder {
	if instruction == "" {
		return inner
	}
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends the instruction and delegates to the inner embedder.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return result, nil
}
