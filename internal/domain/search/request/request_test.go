package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/mongomap/internal/domain/search/mode"
)

func vectorParams() Params {
	return Params{Query: "space opera", Index: "books_vector", Path: "embedding"}
}

func TestNew_Defaults(t *testing.T) {
	r, err := New(vectorParams())
	require.NoError(t, err)

	assert.Equal(t, mode.Vector, r.Mode())
	assert.Equal(t, DefaultLimit, r.Limit())
	assert.Equal(t, DefaultLimit*candidateFactor, r.NumCandidates())
	assert.False(t, r.Exact())
	assert.Nil(t, r.Vector())
}

func TestNew_Clamps(t *testing.T) {
	p := vectorParams()
	p.Limit = 5000
	r, err := New(p)
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, r.Limit())
	assert.Equal(t, MaxNumCandidates, r.NumCandidates())
}

func TestNew_ExactHasNoCandidates(t *testing.T) {
	p := vectorParams()
	p.Exact = true
	p.NumCandidates = 50
	r, err := New(p)
	require.NoError(t, err)
	assert.Zero(t, r.NumCandidates())
}

func TestNew_VectorWithoutQuery(t *testing.T) {
	p := vectorParams()
	p.Query = ""
	p.Vector = []float32{0.1, 0.2}
	r, err := New(p)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, r.Vector())
}

func TestNew_Invalid(t *testing.T) {
	long := make([]byte, MaxQueryLength+1)
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"unknown mode", func(p *Params) { p.Mode = "geo" }},
		{"query too long", func(p *Params) { p.Query = string(long) }},
		{"nothing to search", func(p *Params) { p.Query = "" }},
		{"text without query", func(p *Params) { p.Query, p.Vector, p.Mode = "", []float32{1}, mode.Text }},
		{"no index", func(p *Params) { p.Index = "" }},
		{"no path", func(p *Params) { p.Path = "" }},
		{"candidates below limit", func(p *Params) { p.Limit, p.NumCandidates = 20, 5 }},
		{"negative min score", func(p *Params) { p.MinScore = -0.1 }},
		{"min score above one", func(p *Params) { p.MinScore = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := vectorParams()
			tt.mutate(&p)
			_, err := New(p)
			assert.Error(t, err)
		})
	}
}

func TestNew_TextNeedsNoIndex(t *testing.T) {
	r, err := New(Params{Query: "dune", Mode: mode.Text})
	require.NoError(t, err)
	assert.Equal(t, mode.Text, r.Mode())
}

func TestWithVector(t *testing.T) {
	r, err := New(vectorParams())
	require.NoError(t, err)

	embedded := r.WithVector([]float32{1, 2})
	assert.Nil(t, r.Vector())
	assert.Equal(t, []float32{1, 2}, embedded.Vector())
}
