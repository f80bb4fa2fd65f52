package embcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/domain"
)

type fakeEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	calls   atomic.Int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls.Add(1)
	return f.embedFn(ctx, text)
}

func returning(vec []float32, tokens int) *fakeEmbedder {
	return &fakeEmbedder{embedFn: func(context.Context, string) (domain.EmbeddingResult, error) {
		return domain.EmbeddingResult{Embedding: vec, PromptTokens: tokens, TotalTokens: tokens}, nil
	}}
}

// memStore is an in-memory store; getErr and setErr override its behavior when set.
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}
