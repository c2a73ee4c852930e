package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/lspecian/chain-of-experts/logger"
	"github.com/lspecian/chain-of-experts/redis"
)

// Redis is a cache backed by a Redis server with native per-key expiry.
// Every operation degrades to a miss on backend error: errors are logged
// and counted, never returned, so a cache outage cannot fail a chain.
type Redis struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	log        *logger.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	backendErrors atomic.Int64
}

// NewRedis creates a Redis cache on top of an existing client.
func NewRedis(client *redis.Client, cfg Config, log *logger.Logger) *Redis {
	cfg.ApplyDefaults()
	return &Redis{
		client:     client,
		prefix:     cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
		log:        log.WithComponent("cache.redis"),
	}
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) (any, bool) {
	raw, err := r.client.Get(ctx, r.prefix+key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.backendErrors.Add(1)
			r.log.WithError(err).Warn("cache get failed, treating as miss", map[string]interface{}{"key": key})
		}
		r.misses.Add(1)
		return nil, false
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		r.backendErrors.Add(1)
		r.log.WithError(err).Warn("cache entry undecodable, treating as miss", map[string]interface{}{"key": key})
		r.misses.Add(1)
		return nil, false
	}

	r.hits.Add(1)
	return value, true
}

// Set implements Cache. Redis expiry has second granularity, so a
// sub-second ttl rounds up to one second.
func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	data, err := json.Marshal(value)
	if err != nil {
		r.backendErrors.Add(1)
		r.log.WithError(err).Warn("cache value not serializable, skipping set", map[string]interface{}{"key": key})
		return
	}

	if err := r.client.Set(ctx, r.prefix+key, string(data), ttl); err != nil {
		r.backendErrors.Add(1)
		r.log.WithError(err).Warn("cache set failed", map[string]interface{}{"key": key})
	}
}

// Clear implements Cache via a prefix scan and batched deletes.
func (r *Redis) Clear(ctx context.Context) {
	err := r.client.ScanPrefix(ctx, r.prefix, func(keys []string) error {
		return r.client.Del(ctx, keys...)
	})
	if err != nil {
		r.backendErrors.Add(1)
		r.log.WithError(err).Warn("cache clear failed")
	}
}

// Stats implements Cache. Entries is not tracked for the redis backend.
func (r *Redis) Stats() Stats {
	return Stats{
		Hits:          r.hits.Load(),
		Misses:        r.misses.Load(),
		BackendErrors: r.backendErrors.Load(),
	}
}
