// Package cache memoizes stage outputs keyed by a deterministic
// fingerprint of (stage, input, parameters). Two interchangeable
// backends implement the same contract: a local bounded map and a
// Redis-backed store for cross-instance sharing.
package cache

import (
	"context"
	"time"
)

// Cache is the contract both backends implement. A Get that encounters
// an expired entry or a backend error reports a miss; backend errors are
// never propagated to callers.
type Cache interface {
	// Get returns the cached value for key, or ok=false on miss.
	Get(ctx context.Context, key string) (value any, ok bool)
	// Set stores value under key for ttl. ttl<=0 falls back to the
	// backend's default TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	// Clear removes all entries owned by this cache.
	Clear(ctx context.Context)
	// Stats returns a snapshot of cache counters.
	Stats() Stats
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Entries       int   `json:"entries"`
	Evictions     int64 `json:"evictions"`
	BackendErrors int64 `json:"backend_errors"`
}

// Config selects and sizes a cache backend.
type Config struct {
	// Backend is "local" or "redis".
	Backend string `yaml:"backend" mapstructure:"backend"`
	// Capacity bounds the local backend's entry count.
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
	// DefaultTTL applies when Set is called with ttl<=0.
	DefaultTTL time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	// KeyPrefix namespaces keys in the redis backend.
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = "local"
	}
	if c.Capacity <= 0 {
		c.Capacity = 1000
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 5 * time.Minute
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "chain:cache:"
	}
}
