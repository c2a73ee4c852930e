// Package batcher coalesces many small completion calls into
// time/size-bounded batches against a single wrapped provider. Each
// submitted request is resolved independently, so one request's failure
// never affects its batch siblings.
package batcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lspecian/chain-of-experts/llm"
	"github.com/lspecian/chain-of-experts/logger"
	"github.com/lspecian/chain-of-experts/resilience"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("batcher: closed")

// Config configures a Batcher.
type Config struct {
	// BatchSize flushes the queue as soon as this many requests are
	// pending.
	BatchSize int
	// BatchTimeout flushes after this much enqueue inactivity.
	BatchTimeout time.Duration
	// MaxConcurrency caps how many requests of one flush are in flight
	// against the wrapped provider at once. Zero means BatchSize.
	MaxConcurrency int
}

// ApplyDefaults fills in sensible defaults for zero values.
func (c *Config) ApplyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 8
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = c.BatchSize
	}
}

type outcome struct {
	resp *llm.CompletionResponse
	err  error
}

type pending struct {
	ctx  context.Context
	req  llm.CompletionRequest
	done chan outcome
}

// Batcher decorates a provider with request batching. It implements
// llm.Provider itself so it can stand in anywhere a provider is used.
type Batcher struct {
	inner    llm.Provider
	cfg      Config
	log      *logger.Logger
	bulkhead *resilience.Bulkhead

	mu     sync.Mutex
	queue  []*pending
	timer  *time.Timer
	closed bool

	inflight sync.WaitGroup
}

// New wraps the given provider. A nil logger disables logging.
func New(inner llm.Provider, cfg Config, log *logger.Logger) *Batcher {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewDefault("batcher")
	}
	return &Batcher{
		inner:    inner,
		cfg:      cfg,
		log:      log.WithComponent("batcher"),
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
	}
}

// Submit enqueues a completion request and waits for its response.
// The queue flushes when it reaches BatchSize or after BatchTimeout of
// enqueue inactivity, whichever comes first.
func (b *Batcher) Submit(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p := &pending{ctx: ctx, req: req, done: make(chan outcome, 1)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.queue = append(b.queue, p)
	if len(b.queue) >= b.cfg.BatchSize {
		batch := b.detachLocked()
		b.mu.Unlock()
		b.dispatch(batch)
	} else {
		b.resetTimerLocked()
		b.mu.Unlock()
	}

	select {
	case out := <-p.done:
		return out.resp, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Flush dispatches everything currently queued. Safe to call at any
// time; used for graceful shutdown so no queued caller is dropped.
func (b *Batcher) Flush() {
	b.mu.Lock()
	batch := b.detachLocked()
	b.mu.Unlock()
	b.dispatch(batch)
}

// Close flushes the queue, waits for in-flight requests, and rejects
// further submissions.
func (b *Batcher) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	batch := b.detachLocked()
	b.mu.Unlock()

	b.dispatch(batch)
	b.inflight.Wait()
}

// Pending returns the number of queued, not yet dispatched requests.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// detachLocked swaps in a fresh queue and stops the pending timer.
// Caller must hold b.mu.
func (b *Batcher) detachLocked() []*pending {
	batch := b.queue
	b.queue = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	return batch
}

// resetTimerLocked restarts the inactivity timer. Caller must hold b.mu.
func (b *Batcher) resetTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.cfg.BatchTimeout, b.Flush)
}

// dispatch runs every request of a detached batch against the wrapped
// provider, bounded by MaxConcurrency, resolving each caller
// independently.
func (b *Batcher) dispatch(batch []*pending) {
	if len(batch) == 0 {
		return
	}
	b.log.Debug("dispatching batch", map[string]interface{}{
		"size":     len(batch),
		"provider": b.inner.Name(),
	})

	b.inflight.Add(len(batch))
	for _, p := range batch {
		go func(p *pending) {
			defer b.inflight.Done()
			err := b.bulkhead.Execute(p.ctx, func() error {
				resp, err := b.inner.Complete(p.ctx, p.req)
				p.done <- outcome{resp: resp, err: err}
				return nil
			})
			if err != nil {
				// Bulkhead admission failed (context cancelled).
				p.done <- outcome{err: err}
			}
		}(p)
	}
}

// Provider interface passthroughs.

// Name implements llm.Provider.
func (b *Batcher) Name() string { return b.inner.Name() }

// IsAvailable implements llm.Provider.
func (b *Batcher) IsAvailable(ctx context.Context) bool { return b.inner.IsAvailable(ctx) }

// Complete implements llm.Provider by routing through the batch queue.
func (b *Batcher) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return b.Submit(ctx, req)
}

// Embed implements llm.Provider. Embedding calls carry their own
// payload batching, so they pass straight through.
func (b *Batcher) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return b.inner.Embed(ctx, req)
}
