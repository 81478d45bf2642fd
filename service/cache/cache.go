package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a key-value store with per-entry TTL. A Get on an expired entry
// behaves exactly like a miss, including removal of the stale entry.
type Cache interface {
	// Get returns the cached value and whether it was present and fresh.
	Get(ctx context.Context, key string) (interface{}, bool, error)

	// Set stores value under key for ttl; non-positive ttl means no expiry.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Invalidate removes a single entry.
	Invalidate(ctx context.Context, key string) error

	// InvalidateNamespace removes every entry whose key starts with prefix.
	InvalidateNamespace(ctx context.Context, prefix string) error
}

// CorruptionError flags an entry that failed deserialisation or its
// integrity check. It is handled internally as a forced miss and never
// propagated to Get callers.
type CorruptionError struct {
	Key    string
	Reason error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("cache entry %v corrupted: %v", e.Key, e.Reason)
}

func (e *CorruptionError) Unwrap() error { return e.Reason }

// Fetch makes the cache boundary explicit at call sites: look the key up,
// compute on miss, store the computed value, return it. The second return
// value reports whether the value came from the cache.
func Fetch(ctx context.Context, c Cache, key string, ttl time.Duration, compute func(ctx context.Context) (interface{}, error)) (interface{}, bool, error) {
	if c != nil {
		if value, ok, err := c.Get(ctx, key); err != nil {
			return nil, false, err
		} else if ok {
			return value, true, nil
		}
	}
	value, err := compute(ctx)
	if err != nil {
		return nil, false, err
	}
	if c != nil {
		if err := c.Set(ctx, key, value, ttl); err != nil {
			return nil, false, err
		}
	}
	return value, false, nil
}
