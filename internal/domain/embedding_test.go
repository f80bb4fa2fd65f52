package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/mongomap/internal/domain/search/mode"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	return s.result, s.err
}

func TestInstructionEmbedder_Embed(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: 3}}
	emb := NewInstructionEmbedder(inner, "query: ")

	res, err := emb.Embed(context.Background(), "jazz musicians")
	require.NoError(t, err)
	assert.Equal(t, []string{"query: jazz musicians"}, inner.got)
	assert.Equal(t, 3, res.TotalTokens)
}

func TestInstructionEmbedder_Error(t *testing.T) {
	cause := errors.New("boom")
	emb := NewInstructionEmbedder(&stubEmbedder{err: cause}, "query: ")

	_, err := emb.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, cause)
}

func TestInstructionEmbedder_EmptyInstruction(t *testing.T) {
	inner := &stubEmbedder{}
	assert.Same(t, Embedder(inner), NewInstructionEmbedder(inner, ""))
}

func TestCheckDimensions(t *testing.T) {
	assert.NoError(t, CheckDimensions([]float32{1, 2, 3}, 0))
	assert.NoError(t, CheckDimensions([]float32{1, 2, 3}, 3))

	err := CheckDimensions([]float32{1, 2}, 3)
	require.ErrorIs(t, err, ErrVectorDimMismatch)
	assert.Contains(t, err.Error(), "got 2 dimensions, want 3")
}

func TestSearchUsage(t *testing.T) {
	var none *SearchUsage
	assert.Nil(t, SearchUsageFrom(context.Background()))
	SearchUsageFrom(context.Background()).Record(5)
	assert.False(t, none.Embedded())
	assert.Zero(t, none.Tokens())

	ctx, u := WithSearchUsage(context.Background(), "articles", mode.Hybrid)
	assert.Same(t, u, SearchUsageFrom(ctx))
	assert.Equal(t, "articles", u.Collection())
	assert.Equal(t, mode.Hybrid, u.Mode())
	assert.False(t, u.Embedded())

	u.Record(0)
	assert.True(t, u.Embedded(), "a cache hit still counts as embedding")
	assert.True(t, u.Cached())

	u.Record(7)
	assert.Equal(t, 7, u.Tokens())
	assert.False(t, u.Cached())
}
