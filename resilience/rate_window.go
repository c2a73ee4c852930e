package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned by Allow-style checks when the window is full.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateWindowConfig configures a sliding-window rate limiter.
type RateWindowConfig struct {
	// Name identifies this limiter for logging.
	Name string
	// Limit is the maximum number of requests inside one interval.
	Limit int
	// Interval is the trailing window length.
	Interval time.Duration
	// OnWait is called when a caller has to sleep for a slot.
	OnWait func(name string, wait time.Duration)
}

// DefaultRateWindowConfig returns the engine defaults.
func DefaultRateWindowConfig(name string) RateWindowConfig {
	return RateWindowConfig{
		Name:     name,
		Limit:    10,
		Interval: time.Second,
	}
}

// RateWindow is a sliding-window rate limiter. It keeps the timestamps of
// recent requests, pruned to the trailing interval on every check. When
// the window is full, Wait sleeps until the oldest timestamp leaves the
// window instead of rejecting the caller.
type RateWindow struct {
	config RateWindowConfig

	mu     sync.Mutex
	stamps []time.Time
}

// NewRateWindow creates a new sliding-window limiter.
func NewRateWindow(config RateWindowConfig) *RateWindow {
	if config.Limit <= 0 {
		config.Limit = 10
	}
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	return &RateWindow{config: config}
}

// Allow records the request and returns true if the window had room,
// without blocking.
func (rw *RateWindow) Allow() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	now := time.Now()
	rw.prune(now)

	if len(rw.stamps) >= rw.config.Limit {
		return false
	}
	rw.stamps = append(rw.stamps, now)
	return true
}

// Wait blocks until the window has room, then records the request.
// Returns early with the context error on cancellation.
func (rw *RateWindow) Wait(ctx context.Context) error {
	for {
		rw.mu.Lock()
		now := time.Now()
		rw.prune(now)

		if len(rw.stamps) < rw.config.Limit {
			rw.stamps = append(rw.stamps, now)
			rw.mu.Unlock()
			return nil
		}

		// Sleep until the oldest timestamp exits the trailing window.
		wait := rw.stamps[0].Add(rw.config.Interval).Sub(now)
		rw.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if rw.config.OnWait != nil {
			rw.config.OnWait(rw.config.Name, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// InWindow returns the number of requests currently inside the window.
func (rw *RateWindow) InWindow() int {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.prune(time.Now())
	return len(rw.stamps)
}

// Reset drops all recorded timestamps.
func (rw *RateWindow) Reset() {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.stamps = nil
}

// prune drops timestamps older than the trailing interval.
// Caller must hold rw.mu.
func (rw *RateWindow) prune(now time.Time) {
	cutoff := now.Add(-rw.config.Interval)
	i := 0
	for i < len(rw.stamps) && !rw.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		rw.stamps = append(rw.stamps[:0], rw.stamps[i:]...)
	}
}
