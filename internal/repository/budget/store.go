// Package budget persists embedding token counters in the key-value cache so budgets survive
// restarts and are shared between server replicas.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/mongomap/internal/db"
	domusage "github.com/kailas-cloud/mongomap/internal/domain/usage"
)

// KeyPrefix namespaces budget counters inside the cache.
const KeyPrefix = "budget:"

// Grace keeps a counter readable for a while after its window closed.
const Grace = 24 * time.Hour

// store is the consumer interface for budget operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps one counter per provider and window, expiring it after the window ends.
type Store struct {
	store store
	now   func() time.Time
}

// New creates a budget store.
func New(s store) *Store {
	return &Store{store: s, now: time.Now}
}

// Key names the counter of w for provider, e.g. budget:openai:day:2026-10-18.
func Key(provider string, w domusage.Window) string {
	layout := "2006-01-02"
	if w.Period == domusage.PeriodMonth {
		layout = "2006-01"
	}
	return fmt.Sprintf("%s%s:%s:%s", KeyPrefix, provider, w.Period, w.Start.Format(layout))
}

// Add increments the window counter. The first increment sets the expiry to the window end
// plus Grace; later ones keep it.
func (s *Store) Add(ctx context.Context, provider string, w domusage.Window, tokens int64) error {
	key := Key(provider, w)
	if err := s.store.IncrBy(ctx, key, tokens); err != nil {
		return fmt.Errorf("budget INCRBY %s: %w", key, err)
	}

	ttl := w.End.Sub(s.now()) + Grace
	if err := s.store.Expire(ctx, key, ttl, true); err != nil {
		return fmt.Errorf("budget EXPIRE %s: %w", key, err)
	}
	return nil
}

// Load returns the persisted counter of w. A missing key is zero.
func (s *Store) Load(ctx context.Context, provider string, w domusage.Window) (int64, error) {
	key := Key(provider, w)
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget GET %s parse: %w", key, err)
	}
	return val, nil
}
