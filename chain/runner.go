package chain

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/lspecian/chain-of-experts/cache"
	"github.com/lspecian/chain-of-experts/errors"
	"github.com/lspecian/chain-of-experts/logger"
	"github.com/lspecian/chain-of-experts/observability"
	"github.com/lspecian/chain-of-experts/resilience"
	"github.com/lspecian/chain-of-experts/stage"
)

// runStage wraps one stage invocation with the resilience controller:
// rate gate, circuit gate, cache check, then a retry loop feeding the
// circuit breaker. Exactly one of cache hit, terminal success, or
// terminal failure is returned per call.
func (e *Executor) runStage(ctx context.Context, s stage.Stage, in stage.Input, ec *stage.ExecutionContext, index int, opts Options) (any, bool, error) {
	name := s.Name()
	log := e.log.WithContext(ctx).WithFields(map[string]interface{}{
		logger.FieldStage: name,
	})

	// Rate gate: sleep until the oldest timestamp exits the window.
	if rw := e.window(name); rw != nil {
		if err := rw.Wait(ctx); err != nil {
			return nil, false, errors.RateLimited(name).WithCause(err)
		}
	}

	// Circuit gate: while open, the stage function is never called and
	// no cache lookup occurs.
	cb := e.circuit(name)
	if !cb.Allow() {
		log.Warn("circuit open, rejecting stage call", nil)
		return nil, false, errors.CircuitOpen(name)
	}

	params := opts.StageParams[name]
	key := ""
	if !opts.SkipCache {
		key = cache.Key(name, in, params)
		cacheCtx, span := e.sink.StartSpan(ctx, "cache.lookup")
		v, ok := e.cache.Get(cacheCtx, key)
		span.SetAttribute(observability.AttrStage, name)
		span.SetAttribute(observability.AttrCacheHit, ok)
		span.End()
		if ok {
			// A cache hit is no evidence about stage health; free the
			// probe slot without recording a verdict.
			cb.Release()
			e.metrics.RecordCacheHit(ctx, name)
			log.Debug("cache hit", nil)
			return v, true, nil
		}
	}

	if ps, ok := s.(stage.ParameterSetter); ok && len(params) > 0 {
		ps.SetParameters(params)
	}

	cfg := e.res.Retry
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		attempts = attempt
		out, err := e.invoke(ctx, s, in, ec, index, attempt, opts)
		if err == nil {
			cb.RecordSuccess()
			if !opts.SkipCache {
				e.cache.Set(ctx, key, out, opts.CacheTTL)
			}
			return out, false, nil
		}
		lastErr = err
		nowOpen := cb.RecordFailure()
		log.Warn("stage attempt failed", map[string]interface{}{
			logger.FieldAttempt: attempt,
			"error":             err.Error(),
			"circuit_open":      nowOpen,
		})
		if nowOpen {
			return nil, false, errors.StageExecution(name, attempt, true, lastErr)
		}
		if attempt == cfg.MaxAttempts || !retryable(cfg, err) {
			break
		}
		e.metrics.RecordRetry(ctx, name)
		delay := resilience.Backoff(attempt, cfg)
		select {
		case <-ctx.Done():
			return nil, false, errors.StageExecution(name, attempt, false, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, false, errors.StageExecution(name, attempts, false, lastErr)
}

func retryable(cfg resilience.RetryConfig, err error) bool {
	if cfg.RetryIf != nil {
		return cfg.RetryIf(err)
	}
	return resilience.DefaultRetryIf(err)
}

// invoke runs one stage attempt under its own span and optional
// per-attempt deadline.
func (e *Executor) invoke(ctx context.Context, s stage.Stage, in stage.Input, ec *stage.ExecutionContext, index, attempt int, opts Options) (any, error) {
	if opts.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.StageTimeout)
		defer cancel()
	}

	ctx, span := e.sink.StartSpan(ctx, "stage.execute")
	span.SetAttribute(observability.AttrStage, s.Name())
	span.SetAttribute(observability.AttrStageIndex, index)
	span.SetAttribute(observability.AttrAttempt, attempt)
	span.SetAttribute(observability.AttrRequestID, ec.RequestID())
	defer span.End()

	start := time.Now()
	out, err := s.Process(ctx, in, ec)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "failure"
		if stderrors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			err = errors.Timeout(s.Name()).WithCause(err)
		}
		span.RecordError(err)
	}
	span.SetAttribute(observability.AttrStatus, status)
	e.metrics.RecordStage(ctx, s.Name(), status, elapsed)
	return out, err
}
