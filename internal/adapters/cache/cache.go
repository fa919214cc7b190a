// Package cache stores computed read models (leaderboards, dashboards) for a
// short time, in Redis when configured and in process memory otherwise.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-value store with per-entry expiry.
type Cache interface {
	// Get returns the value and true on a hit, false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	// PRE: ttl > 0
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Ensure implementations satisfy Cache.
var (
	_ Cache = (*Memory)(nil)
	_ Cache = (*Redis)(nil)
)
