// Package embcache caches query embeddings in the key-value cache so repeated searches for the
// same text skip the provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/domain"
)

// KeyPrefix namespaces embedding entries in the shared cache.
const KeyPrefix = "emb:"

// entryVersion leads every stored entry; bump it when the layout changes.
const entryVersion byte = 1

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures an Embedder.
type Options struct {
	// Model is mixed into keys so switching models never serves stale vectors.
	Model string
	// TTL bounds entry lifetime; zero keeps entries until evicted.
	TTL time.Duration
	// Lookups counts results by label "result" (hit, miss, error). Optional.
	Lookups *prometheus.CounterVec
	Logger  *zap.Logger
}

// Embedder is a read-through cache in front of another embedder.
// Concurrent requests for the same text share one upstream call.
type Embedder struct {
	inner  domain.Embedder
	store  store
	opts   Options
	logger *zap.Logger
	group  singleflight.Group
}

// New wraps inner with a cache backed by s.
func New(inner domain.Embedder, s store, opts Options) *Embedder {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{inner: inner, store: s, opts: opts, logger: logger}
}

// Embed returns the cached vector for text or computes and stores it.
// A hit reports zero tokens since the provider was not called.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := e.key(text)
	if vec, ok := e.lookup(ctx, key); ok {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	leader := false
	v, err, _ := e.group.Do(key, func() (any, error) {
		leader = true
		res, err := e.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := e.store.SetWithTTL(ctx, key, encodeEntry(res.Embedding), e.opts.TTL); err != nil {
			e.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
		}
		return res, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	res := v.(domain.EmbeddingResult)
	if !leader {
		// Tokens are charged once, to the caller that ran the request.
		res.PromptTokens, res.TotalTokens = 0, 0
	}
	return res, nil
}

func (e *Embedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	data, err := e.store.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrNotFound):
		e.count("miss")
		return nil, false
	case err != nil:
		e.count("error")
		e.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	vec, err := decodeEntry(data)
	if err != nil {
		e.count("error")
		e.logger.Warn("Dropping unreadable embedding cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	e.count("hit")
	return vec, true
}

func (e *Embedder) count(result string) {
	if e.opts.Lookups != nil {
		e.opts.Lookups.WithLabelValues(result).Inc()
	}
}

func (e *Embedder) key(text string) string {
	h := sha256.New()
	h.Write([]byte(e.opts.Model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// encodeEntry lays out a vector as: version byte, uint32 length, little-endian float32s.
func encodeEntry(v []float32) []byte {
	buf := make([]byte, 5+len(v)*4)
	buf[0] = entryVersion
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(v))) //nolint:gosec // vectors are far below 2^32
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[5+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEntry(data []byte) ([]float32, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("entry too short: %d bytes", len(data))
	}
	if data[0] != entryVersion {
		return nil, fmt.Errorf("entry version %d, want %d", data[0], entryVersion)
	}
	n := int(binary.LittleEndian.Uint32(data[1:5]))
	if len(data)-5 != n*4 {
		return nil, fmt.Errorf("entry holds %d bytes for %d dims", len(data)-5, n)
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[5+i*4:]))
	}
	return vec, nil
}
