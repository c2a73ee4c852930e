// Package chain orchestrates named stages into sequential or
// bounded-parallel pipelines. Each stage invocation passes through a
// resilience controller combining rate limiting, circuit breaking,
// retry with backoff, and cache check/population.
package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lspecian/chain-of-experts/cache"
	"github.com/lspecian/chain-of-experts/errors"
	"github.com/lspecian/chain-of-experts/logger"
	"github.com/lspecian/chain-of-experts/observability"
	"github.com/lspecian/chain-of-experts/resilience"
	"github.com/lspecian/chain-of-experts/stage"
)

// ResilienceConfig carries the per-stage resilience defaults applied by
// the executor.
type ResilienceConfig struct {
	// Retry configures the in-stage retry loop.
	Retry resilience.RetryConfig
	// CircuitThreshold is the consecutive-failure count that opens a
	// stage's circuit.
	CircuitThreshold int
	// CircuitResetTimeout is how long an open circuit blocks attempts
	// before allowing a probe.
	CircuitResetTimeout time.Duration
	// RateLimit caps stage invocations per RateInterval. Zero disables
	// the rate gate.
	RateLimit int
	// RateInterval is the trailing rate window length.
	RateInterval time.Duration
}

// DefaultResilienceConfig returns the engine defaults.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Retry:               resilience.DefaultRetryConfig(),
		CircuitThreshold:    5,
		CircuitResetTimeout: 30 * time.Second,
		RateInterval:        time.Second,
	}
}

// ExecutorOptions configures a new Executor. Zero values select
// sensible defaults.
type ExecutorOptions struct {
	// Cache memoizes stage outputs. Nil selects a default local cache.
	Cache cache.Cache
	// Logger receives structured execution logs.
	Logger *logger.Logger
	// Sink receives execution spans. Nil selects the no-op sink.
	Sink observability.Sink
	// Metrics records execution counters. Nil disables metrics.
	Metrics *observability.Metrics
	// Resilience overrides the per-stage resilience defaults.
	Resilience ResilienceConfig
	// ScoreQueueSize bounds the background scoring queue.
	ScoreQueueSize int
	// ScoreWorkers is the number of background scoring workers.
	ScoreWorkers int
}

// Executor runs chains of registered stages. Per-stage circuit and rate
// state persists across requests for the executor's lifetime; Reset
// hooks exist for long-running processes.
type Executor struct {
	registry *stage.Registry
	cache    cache.Cache
	log      *logger.Logger
	sink     observability.Sink
	metrics  *observability.Metrics
	res      ResilienceConfig

	mu       sync.Mutex
	circuits map[string]*resilience.CircuitBreaker
	windows  map[string]*resilience.RateWindow

	scores *scoreQueue
}

// NewExecutor creates an executor over the given stage registry.
func NewExecutor(registry *stage.Registry, opts ExecutorOptions) *Executor {
	if opts.Cache == nil {
		cfg := cache.Config{}
		cfg.ApplyDefaults()
		opts.Cache = cache.NewLocal(cfg)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewDefault("chain")
	}
	if opts.Sink == nil {
		opts.Sink = observability.NoopSink{}
	}
	if opts.Resilience.Retry.MaxAttempts == 0 {
		opts.Resilience.Retry = resilience.DefaultRetryConfig()
	}
	if opts.Resilience.CircuitThreshold <= 0 {
		opts.Resilience.CircuitThreshold = 5
	}
	if opts.Resilience.CircuitResetTimeout <= 0 {
		opts.Resilience.CircuitResetTimeout = 30 * time.Second
	}
	if opts.Resilience.RateInterval <= 0 {
		opts.Resilience.RateInterval = time.Second
	}

	log := opts.Logger.WithComponent("executor")
	return &Executor{
		registry: registry,
		cache:    opts.Cache,
		log:      log,
		sink:     opts.Sink,
		metrics:  opts.Metrics,
		res:      opts.Resilience,
		circuits: make(map[string]*resilience.CircuitBreaker),
		windows:  make(map[string]*resilience.RateWindow),
		scores:   newScoreQueue(opts.ScoreQueueSize, opts.ScoreWorkers, log),
	}
}

// Close drains the background scoring queue. The executor must not be
// used after Close.
func (e *Executor) Close() {
	e.scores.close()
}

// Run executes the named stages against the input and returns the
// aggregate result. The returned Result is non-nil whenever an error is
// returned after stage resolution, so callers always get the structured
// {success, result, error} shape.
func (e *Executor) Run(ctx context.Context, input stage.Input, ec *stage.ExecutionContext, stageNames []string, opts Options) (*Result, error) {
	if len(stageNames) == 0 {
		return nil, errors.EmptyChain()
	}
	stages, err := e.registry.Resolve(stageNames)
	if err != nil {
		return nil, err
	}
	if opts.Mode == "" {
		opts.Mode = ModeSequential
	}
	if opts.Mode != ModeSequential && opts.Mode != ModeParallel {
		return nil, errors.InvalidInput("mode", fmt.Sprintf("unknown execution mode %q", opts.Mode))
	}

	ctx = logger.ContextWith(ctx, logger.FieldRequestID, ec.RequestID())
	ctx = logger.ContextWith(ctx, logger.FieldUserID, ec.UserID())
	ctx = logger.ContextWith(ctx, logger.FieldSessionID, ec.SessionID())
	log := e.log.WithContext(ctx)

	ctx, span := e.sink.StartSpan(ctx, "chain.run")
	span.SetAttribute(observability.AttrMode, string(opts.Mode))
	span.SetAttribute(observability.AttrRequestID, ec.RequestID())
	defer span.End()

	log.Info("chain started", map[string]interface{}{
		"stages": stageNames,
		"mode":   string(opts.Mode),
	})

	var result *Result
	if opts.Mode == ModeParallel {
		result = e.runParallel(ctx, log, input, ec, stages, opts)
	} else {
		result = e.runSequential(ctx, log, input, ec, stages, opts)
	}

	status := "success"
	if !result.Success {
		status = "failure"
		span.RecordError(fmt.Errorf("%s", result.Error))
	}
	span.SetAttribute(observability.AttrStatus, status)
	e.metrics.RecordChain(ctx, string(opts.Mode), status)

	log.Info("chain finished", map[string]interface{}{
		"stages_completed": len(result.StageResults),
		"success":          result.Success,
	})

	if !result.Success && opts.Mode == ModeSequential {
		return result, errors.New(errors.ErrCodeStageExecution, result.Error)
	}
	return result, nil
}

// runSequential invokes stages in declared order, merging each stage's
// output into the next stage's input. The first unrecoverable stage
// error aborts the remaining stages.
func (e *Executor) runSequential(ctx context.Context, log *logger.Logger, input stage.Input, ec *stage.ExecutionContext, stages []stage.Stage, opts Options) *Result {
	results := make([]StageResult, 0, len(stages))
	var prev any

	for i, s := range stages {
		in := input
		if i > 0 {
			in = stage.Merge(input, prev)
		}
		out, hit, err := e.runStage(ctx, s, in, ec, i, opts)
		if err != nil {
			log.Error("chain aborted", map[string]interface{}{
				logger.FieldStage: s.Name(),
				"stage_index":     i,
				"error":           err.Error(),
			})
			return &Result{
				StageResults: results,
				Success:      false,
				Error:        err.Error(),
			}
		}

		sr := StageResult{
			Name:      s.Name(),
			Type:      s.Type(),
			Index:     i,
			Input:     in,
			Output:    out,
			CacheHit:  hit,
			Timestamp: time.Now(),
		}
		results = append(results, sr)
		if opts.OnStageResult != nil {
			opts.OnStageResult(sr)
		}
		e.enqueueScoring(s, in, out, ec)
		prev = out
	}

	return &Result{
		Result:       prev,
		StageResults: results,
		Success:      true,
		TokenUsage:   deriveUsage(prev, results),
	}
}

// runParallel invokes every stage against the original input with at
// most opts.MaxConcurrency stages in flight. Failures are isolated as
// {error: message} markers inside the aggregate map; the run still
// succeeds unless RequireAllSuccess is set.
func (e *Executor) runParallel(ctx context.Context, log *logger.Logger, input stage.Input, ec *stage.ExecutionContext, stages []stage.Stage, opts Options) *Result {
	type slot struct {
		out any
		hit bool
		err error
	}

	maxConc := opts.MaxConcurrency
	if maxConc <= 0 || maxConc > len(stages) {
		maxConc = len(stages)
	}

	slots := make([]slot, len(stages))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < maxConc; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out, hit, err := e.runStage(ctx, stages[i], input, ec, i, opts)
				slots[i] = slot{out: out, hit: hit, err: err}
			}
		}()
	}
	for i := range stages {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	aggregate := make(map[string]any, len(stages))
	results := make([]StageResult, 0, len(stages))
	var firstErr error
	for i, s := range stages {
		sl := slots[i]
		if sl.err != nil {
			aggregate[s.Name()] = map[string]any{"error": sl.err.Error()}
			if firstErr == nil {
				firstErr = sl.err
			}
			log.Warn("stage failed in parallel chain", map[string]interface{}{
				logger.FieldStage: s.Name(),
				"stage_index":     i,
				"error":           sl.err.Error(),
			})
			continue
		}
		aggregate[s.Name()] = sl.out
		sr := StageResult{
			Name:      s.Name(),
			Type:      s.Type(),
			Index:     i,
			Input:     input,
			Output:    sl.out,
			CacheHit:  sl.hit,
			Timestamp: time.Now(),
		}
		results = append(results, sr)
		if opts.OnStageResult != nil {
			opts.OnStageResult(sr)
		}
		e.enqueueScoring(s, input, sl.out, ec)
	}

	res := &Result{
		Result:       aggregate,
		StageResults: results,
		Success:      true,
		TokenUsage:   deriveUsage(nil, results),
	}
	if opts.RequireAllSuccess && firstErr != nil {
		res.Success = false
		res.Error = firstErr.Error()
	}
	return res
}

// circuit returns the stage's circuit breaker, creating it on first
// use. Breakers persist for the executor's lifetime.
func (e *Executor) circuit(name string) *resilience.CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()
	cb, ok := e.circuits[name]
	if !ok {
		cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             name,
			FailureThreshold: e.res.CircuitThreshold,
			ResetTimeout:     e.res.CircuitResetTimeout,
			OnStateChange:    e.onCircuitStateChange,
		})
		e.circuits[name] = cb
	}
	return cb
}

// window returns the stage's rate window, or nil when the rate gate is
// disabled.
func (e *Executor) window(name string) *resilience.RateWindow {
	if e.res.RateLimit <= 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rw, ok := e.windows[name]
	if !ok {
		rw = resilience.NewRateWindow(resilience.RateWindowConfig{
			Name:     name,
			Limit:    e.res.RateLimit,
			Interval: e.res.RateInterval,
		})
		e.windows[name] = rw
	}
	return rw
}

func (e *Executor) onCircuitStateChange(name string, from, to resilience.State) {
	e.log.Warn("circuit state changed", map[string]interface{}{
		logger.FieldStage: name,
		"from":            from.String(),
		"to":              to.String(),
	})
	if to == resilience.StateOpen {
		e.metrics.RecordCircuitOpen(context.Background(), name)
	}
}

// ResetStageState discards the circuit and rate state for one stage.
func (e *Executor) ResetStageState(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.circuits, name)
	delete(e.windows, name)
}

// ResetAllStageState discards all per-stage circuit and rate state.
func (e *Executor) ResetAllStageState() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.circuits = make(map[string]*resilience.CircuitBreaker)
	e.windows = make(map[string]*resilience.RateWindow)
}

// CacheStats exposes the underlying cache counters.
func (e *Executor) CacheStats() cache.Stats {
	return e.cache.Stats()
}
