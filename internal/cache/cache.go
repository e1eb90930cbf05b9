// Package cache provides a small key/value and counter abstraction with two
// implementations: Redis (shared between replicas) and an in-process map
// used when no Redis address is configured and in tests.
//
// The geographic resolver caches its lists here, the daily submission limit
// counts through Counter and revoked session ids are remembered until their
// token would have expired anyway.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMiss is returned by GetJSON when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache stores opaque values with a time-to-live.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Counter increments named counters that expire as a whole.
type Counter interface {
	// Incr adds one to key and returns the new value together with the time
	// left before the counter resets. The ttl is applied when the key is
	// created and left untouched on later increments.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error)
}

// Store is both a Cache and a Counter.
type Store interface {
	Cache
	Counter
	Close() error
}

// GetJSON loads key into dst. It returns ErrMiss when the key is absent.
func GetJSON(ctx context.Context, c Cache, key string, dst any) error {
	raw, ok, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(raw, dst)
}

// SetJSON stores v as JSON under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}
