// Package cache defines the storage used for cached condition evaluation results.
package cache

import (
	"context"
	"time"
)

// Cache stores evaluation results under opaque keys.
// Implementations expire entries after a TTL and must be safe for concurrent use.
type Cache interface {
	// Get returns the value stored under key.
	// The second result is false when the key is missing or has expired.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores value under key for ttl.
	// A zero ttl uses the cache's default.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes the entry stored under key, if any.
	Delete(ctx context.Context, key string) error

	// Clear drops every entry.
	Clear(ctx context.Context) error

	// Close releases resources held by the cache.
	Close() error

	// Metrics returns a snapshot of the cache statistics.
	Metrics() *Metrics
}

// Sizer is implemented by values that know their approximate memory footprint.
type Sizer interface {
	// Size returns the approximate size of the value in bytes.
	Size() int64
}

// Metrics holds cache performance statistics.
type Metrics struct {
	// Hits counts lookups that found a live entry
	Hits uint64

	// Misses counts lookups for missing or expired keys
	Misses uint64

	// KeysAdded counts entries inserted under a new key
	KeysAdded uint64

	// KeysEvicted counts entries dropped to stay within capacity
	KeysEvicted uint64

	// CostAdded is the approximate number of bytes inserted
	CostAdded uint64

	// CostEvicted is the approximate number of bytes evicted
	CostEvicted uint64
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (m *Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0.0
	}
	return float64(m.Hits) / float64(total)
}
