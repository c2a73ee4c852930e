package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Local is a capacity-bounded in-memory cache. At capacity, inserting a
// new key first evicts the entry with the oldest insertion timestamp
// (linear scan). This is intentionally oldest-insertion eviction, not
// access-based LRU: entries are write-once memoizations and re-reading
// one does not make it more valuable to keep.
type Local struct {
	capacity   int
	defaultTTL time.Duration

	mu      sync.Mutex
	entries map[string]localEntry

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type localEntry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration
}

func (e localEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) >= e.ttl
}

// NewLocal creates a Local cache from cfg.
func NewLocal(cfg Config) *Local {
	cfg.ApplyDefaults()
	return &Local{
		capacity:   cfg.Capacity,
		defaultTTL: cfg.DefaultTTL,
		entries:    make(map[string]localEntry),
	}
}

// Get implements Cache. Expired entries are removed lazily and count as
// misses.
func (l *Local) Get(_ context.Context, key string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		l.misses.Add(1)
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(l.entries, key)
		l.misses.Add(1)
		return nil, false
	}

	l.hits.Add(1)
	return e.value, true
}

// Set implements Cache.
func (l *Local) Set(_ context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = l.defaultTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[key]; !exists && len(l.entries) >= l.capacity {
		l.evictOldest()
	}
	l.entries[key] = localEntry{value: value, createdAt: time.Now(), ttl: ttl}
}

// evictOldest removes the entry with the oldest insertion timestamp.
// Caller must hold l.mu.
func (l *Local) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range l.entries {
		if oldestKey == "" || e.createdAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.createdAt
		}
	}
	if oldestKey != "" {
		delete(l.entries, oldestKey)
		l.evictions.Add(1)
	}
}

// Clear implements Cache.
func (l *Local) Clear(_ context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]localEntry)
}

// Stats implements Cache.
func (l *Local) Stats() Stats {
	l.mu.Lock()
	entries := len(l.entries)
	l.mu.Unlock()

	return Stats{
		Hits:      l.hits.Load(),
		Misses:    l.misses.Load(),
		Entries:   entries,
		Evictions: l.evictions.Load(),
	}
}
