package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader fills a Cache on miss and collapses concurrent fills of the same key
// into one call.
type Loader struct {
	cache Cache
	group singleflight.Group
}

// NewLoader creates a Loader over c.
func NewLoader(c Cache) *Loader {
	return &Loader{cache: c}
}

// Cache returns the underlying cache.
func (l *Loader) Cache() Cache {
	return l.cache
}

// Load returns the cached value for key, or calls fn, caches its result for
// ttl and returns it. Cache errors are logged and treated as misses; fn errors
// are returned and nothing is cached. fn runs without ctx's cancellation so a
// caller that gives up does not fail the others waiting on the same fill.
// POST: at most one fn call is in flight per key
func Load[T any](ctx context.Context, l *Loader, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if b, ok, err := l.cache.Get(ctx, key); err != nil {
		slog.Warn("cache_get_failed", "key", key, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			return v, nil
		}
		slog.Warn("cache_decode_failed", "key", key)
	}

	res, err, _ := l.group.Do(key, func() (any, error) {
		fillCtx := context.WithoutCancel(ctx)
		v, err := fn(fillCtx)
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(v); err != nil {
			slog.Warn("cache_encode_failed", "key", key, "error", err)
		} else if err := l.cache.Set(fillCtx, key, b, ttl); err != nil {
			slog.Warn("cache_set_failed", "key", key, "error", err)
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}
