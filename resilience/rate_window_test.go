package resilience

import (
	"context"
	"testing"
	"time"
)

func TestRateWindow_AllowWithinLimit(t *testing.T) {
	rw := NewRateWindow(RateWindowConfig{Name: "test", Limit: 3, Interval: time.Second})

	for i := 0; i < 3; i++ {
		if !rw.Allow() {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rw.Allow() {
		t.Error("request beyond limit should be rejected")
	}
}

func TestRateWindow_PrunesOldTimestamps(t *testing.T) {
	rw := NewRateWindow(RateWindowConfig{Name: "test", Limit: 2, Interval: 30 * time.Millisecond})

	rw.Allow()
	rw.Allow()

	if rw.Allow() {
		t.Fatal("window should be full")
	}

	time.Sleep(40 * time.Millisecond)

	if !rw.Allow() {
		t.Error("old timestamps should have been pruned")
	}
}

func TestRateWindow_WaitBlocksUntilSlot(t *testing.T) {
	rw := NewRateWindow(RateWindowConfig{Name: "test", Limit: 1, Interval: 50 * time.Millisecond})

	ctx := context.Background()
	if err := rw.Wait(ctx); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	start := time.Now()
	if err := rw.Wait(ctx); err != nil {
		t.Fatalf("second wait failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 30*time.Millisecond {
		t.Errorf("expected wait of roughly the interval, waited %v", elapsed)
	}
}

func TestRateWindow_WaitHonorsContext(t *testing.T) {
	rw := NewRateWindow(RateWindowConfig{Name: "test", Limit: 1, Interval: time.Hour})

	_ = rw.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rw.Wait(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestRateWindow_OnWaitCallback(t *testing.T) {
	var waited bool
	rw := NewRateWindow(RateWindowConfig{
		Name:     "test",
		Limit:    1,
		Interval: 20 * time.Millisecond,
		OnWait:   func(name string, wait time.Duration) { waited = true },
	})

	_ = rw.Wait(context.Background())
	_ = rw.Wait(context.Background())

	if !waited {
		t.Error("expected OnWait callback to fire")
	}
}

func TestRateWindow_InWindowAndReset(t *testing.T) {
	rw := NewRateWindow(RateWindowConfig{Name: "test", Limit: 5, Interval: time.Second})

	rw.Allow()
	rw.Allow()

	if got := rw.InWindow(); got != 2 {
		t.Errorf("expected 2 in window, got %d", got)
	}

	rw.Reset()
	if got := rw.InWindow(); got != 0 {
		t.Errorf("expected 0 after reset, got %d", got)
	}
}
