// Package redis is a rueidis-backed cache for resolved references, query embeddings and token
// budget counters.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/mongomap/internal/db"
)

// Config holds connection parameters for a Redis cache.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// Prefix namespaces every key as "<prefix>:<key>"; a trailing colon is optional.
	Prefix string
	// WriteTimeout bounds a stalled connection; zero keeps the rueidis default.
	WriteTimeout time.Duration
}

// Store is a byte-value cache over rueidis.
type Store struct {
	client rueidis.Client
	prefix string
}

// NewStore dials the cache. Server-assisted client caching stays off: entries are small and
// short lived, and invalidation traffic would outweigh the saved round trips.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:      cfg.Addrs,
		Username:         cfg.Username,
		Password:         cfg.Password,
		SelectDB:         cfg.DB,
		DisableCache:     true,
		ConnWriteTimeout: cfg.WriteTimeout,
		ClientName:       "mongomap",
	})
	if err != nil {
		return nil, fmt.Errorf("redis: dial %v: %w", cfg.Addrs, err)
	}
	return newStore(client, cfg.Prefix), nil
}

// NewStoreForTest wraps an existing client, typically a rueidis mock.
func NewStoreForTest(c rueidis.Client, prefix string) *Store {
	return newStore(c, prefix)
}

func newStore(c rueidis.Client, prefix string) *Store {
	if prefix != "" {
		prefix = strings.TrimSuffix(prefix, ":") + ":"
	}
	return &Store{client: c, prefix: prefix}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return wrap(db.OpCachePing, err)
	}
	return nil
}

// WaitForReady blocks until the cache answers a ping or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitReady(ctx, "cache", timeout, s.Ping)
}

// Close releases every connection.
func (s *Store) Close() {
	s.client.Close()
}

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) keys(ks []string) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = s.key(k)
	}
	return out
}

func wrap(op string, err error) error {
	return &db.Error{Op: op, Err: err}
}
