package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/mongomap/internal/db"
)

// Get returns the cached value or db.ErrNotFound on a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(s.key(key)).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrNotFound
		}
		return nil, wrap(db.OpCacheGet, err)
	}
	return data, nil
}

// SetWithTTL stores value with an expiration. A zero ttl stores without expiry.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = s.client.B().Set().Key(s.key(key)).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	} else {
		cmd = s.client.B().Set().Key(s.key(key)).Value(rueidis.BinaryString(value)).Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return wrap(db.OpCacheSet, err)
	}
	return nil
}

// Del removes keys; missing keys are ignored.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	cmd := s.client.B().Del().Key(s.keys(keys)...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return wrap(db.OpCacheDel, err)
	}
	return nil
}

// Invalidate removes every key starting with prefix (relative to the store prefix).
func (s *Store) Invalidate(ctx context.Context, prefix string) error {
	var (
		cursor uint64
		match  = s.key(prefix) + "*"
	)
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(match).Count(100).Build()
		res, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return wrap(db.OpCacheScan, err)
		}
		if len(res.Elements) > 0 {
			del := s.client.B().Del().Key(res.Elements...).Build()
			if err := s.client.Do(ctx, del).Error(); err != nil {
				return wrap(db.OpCacheDel, err)
			}
		}
		cursor = res.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// IncrBy atomically increments a counter key by val.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	cmd := s.client.B().Incrby().Key(s.key(key)).Increment(val).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return wrap(db.OpCacheIncrBy, err)
	}
	return nil
}

// Expire sets a TTL on key. With nx the TTL is only set when the key has none yet.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	var cmd rueidis.Completed
	if nx {
		cmd = s.client.B().Expire().Key(s.key(key)).Seconds(int64(ttl.Seconds())).Nx().Build()
	} else {
		cmd = s.client.B().Expire().Key(s.key(key)).Seconds(int64(ttl.Seconds())).Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return wrap(db.OpCacheExpire, err)
	}
	return nil
}
