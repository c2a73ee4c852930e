package cache

import (
	"context"
	"testing"
	"time"
)

func TestLocal_SetGet(t *testing.T) {
	c := NewLocal(Config{})
	ctx := context.Background()

	c.Set(ctx, "k1", "v1", time.Minute)

	v, ok := c.Get(ctx, "k1")
	if !ok || v != "v1" {
		t.Fatalf("expected v1, got %v (ok=%v)", v, ok)
	}
}

func TestLocal_Miss(t *testing.T) {
	c := NewLocal(Config{})

	if _, ok := c.Get(context.Background(), "missing"); ok {
		t.Error("expected miss")
	}
}

func TestLocal_TTLExpiry(t *testing.T) {
	c := NewLocal(Config{})
	ctx := context.Background()

	c.Set(ctx, "k1", "v1", 100*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("expected miss after ttl expiry")
	}
}

func TestLocal_EvictsOldestInsertion(t *testing.T) {
	c := NewLocal(Config{Capacity: 2})
	ctx := context.Background()

	c.Set(ctx, "a", 1, time.Minute)
	time.Sleep(2 * time.Millisecond)
	c.Set(ctx, "b", 2, time.Minute)
	time.Sleep(2 * time.Millisecond)

	// Reading "a" must not protect it: eviction is insertion-ordered.
	c.Get(ctx, "a")
	c.Set(ctx, "c", 3, time.Minute)

	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected oldest entry a to be evicted")
	}
	if _, ok := c.Get(ctx, "b"); !ok {
		t.Error("expected b to survive")
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Error("expected c to be present")
	}
}

func TestLocal_OverwriteDoesNotEvict(t *testing.T) {
	c := NewLocal(Config{Capacity: 2})
	ctx := context.Background()

	c.Set(ctx, "a", 1, time.Minute)
	c.Set(ctx, "b", 2, time.Minute)
	c.Set(ctx, "a", 10, time.Minute)

	if _, ok := c.Get(ctx, "b"); !ok {
		t.Error("overwriting an existing key must not evict")
	}
	if v, _ := c.Get(ctx, "a"); v != 10 {
		t.Errorf("expected updated value 10, got %v", v)
	}
}

func TestLocal_Clear(t *testing.T) {
	c := NewLocal(Config{})
	ctx := context.Background()

	c.Set(ctx, "k1", "v1", time.Minute)
	c.Clear(ctx)

	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("expected miss after clear")
	}
}

func TestLocal_Stats(t *testing.T) {
	c := NewLocal(Config{Capacity: 1})
	ctx := context.Background()

	c.Set(ctx, "a", 1, time.Minute)
	c.Get(ctx, "a")       // hit
	c.Get(ctx, "missing") // miss
	c.Set(ctx, "b", 2, time.Minute)

	s := c.Stats()
	if s.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", s.Hits)
	}
	if s.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", s.Misses)
	}
	if s.Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", s.Evictions)
	}
	if s.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", s.Entries)
	}
}

func TestLocal_DefaultTTLApplied(t *testing.T) {
	c := NewLocal(Config{DefaultTTL: 50 * time.Millisecond})
	ctx := context.Background()

	c.Set(ctx, "k1", "v1", 0)
	time.Sleep(70 * time.Millisecond)

	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("expected default ttl to expire the entry")
	}
}
