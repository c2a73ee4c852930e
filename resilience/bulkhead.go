package resilience

import (
	"context"
	"errors"
)

// ErrBulkheadFull is returned by TryExecute when no slot is available.
var ErrBulkheadFull = errors.New("bulkhead is full")

// Bulkhead caps the number of concurrently executing calls. The chain
// executor uses one per parallel run to enforce MaxConcurrency; the
// request batcher uses one to bound flush dispatch.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead allowing maxConcurrent calls in flight.
func NewBulkhead(maxConcurrent int) *Bulkhead {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Bulkhead{sem: make(chan struct{}, maxConcurrent)}
}

// Execute waits for a slot (honoring ctx) and runs fn.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.sem }()
	return fn()
}

// TryExecute runs fn only if a slot is immediately available.
func (b *Bulkhead) TryExecute(fn func() error) error {
	select {
	case b.sem <- struct{}{}:
	default:
		return ErrBulkheadFull
	}
	defer func() { <-b.sem }()
	return fn()
}

// ExecuteWithResult runs a function that returns a value through b.
func ExecuteWithResult[T any](b *Bulkhead, ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

// InUse returns the number of slots currently in use.
func (b *Bulkhead) InUse() int {
	return len(b.sem)
}

// MaxConcurrent returns the maximum concurrent calls allowed.
func (b *Bulkhead) MaxConcurrent() int {
	return cap(b.sem)
}
