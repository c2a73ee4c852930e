package chain

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/lspecian/chain-of-experts/errors"
	"github.com/lspecian/chain-of-experts/resilience"
	"github.com/lspecian/chain-of-experts/stage"
)

func countingStage(name string, calls *int32) stage.Stage {
	return &stage.Func{
		StageName: name,
		Fn: func(_ context.Context, _ stage.Input, _ *stage.ExecutionContext) (any, error) {
			atomic.AddInt32(calls, 1)
			return "output-" + name, nil
		},
	}
}

func TestCacheSingleInvocation(t *testing.T) {
	reg := stage.NewRegistry()
	var calls int32
	reg.Register(countingStage("memo", &calls))
	e := newTestExecutor(t, reg, ResilienceConfig{})

	in := stage.Input{Payload: map[string]any{"q": "same"}}
	ec := stage.NewExecutionContext("u", "s")

	first, err := e.Run(context.Background(), in, ec, []string{"memo"}, Options{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := e.Run(context.Background(), in, ec, []string{"memo"}, Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("stage invoked %d times, want 1", got)
	}
	if first.Result != second.Result {
		t.Errorf("cached result %v differs from original %v", second.Result, first.Result)
	}
	if first.StageResults[0].CacheHit {
		t.Error("first run should be a miss")
	}
	if !second.StageResults[0].CacheHit {
		t.Error("second run should be a hit")
	}
	if stats := e.CacheStats(); stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("cache stats = %+v", stats)
	}
}

func TestSkipCacheInvokesEveryTime(t *testing.T) {
	reg := stage.NewRegistry()
	var calls int32
	reg.Register(countingStage("memo", &calls))
	e := newTestExecutor(t, reg, ResilienceConfig{})

	in := stage.Input{Payload: "same"}
	for i := 0; i < 2; i++ {
		if _, err := e.Run(context.Background(), in, stage.NewExecutionContext("u", "s"),
			[]string{"memo"}, Options{SkipCache: true}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("stage invoked %d times with cache skipped, want 2", got)
	}
}

func TestStageParamsAffectCacheKey(t *testing.T) {
	reg := stage.NewRegistry()
	var calls int32
	reg.Register(countingStage("tuned", &calls))
	e := newTestExecutor(t, reg, ResilienceConfig{})

	in := stage.Input{Payload: "same"}
	for _, temp := range []float64{0.2, 0.9} {
		opts := Options{StageParams: map[string]map[string]any{
			"tuned": {"temperature": temp},
		}}
		if _, err := e.Run(context.Background(), in, stage.NewExecutionContext("u", "s"),
			[]string{"tuned"}, opts); err != nil {
			t.Fatalf("run with temp %v: %v", temp, err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("different params should miss the cache, got %d invocations", got)
	}
}

func TestParametersAppliedBeforeProcess(t *testing.T) {
	reg := stage.NewRegistry()
	ps := &paramStage{name: "tuned"}
	reg.Register(ps)
	e := newTestExecutor(t, reg, ResilienceConfig{})

	opts := Options{
		SkipCache:   true,
		StageParams: map[string]map[string]any{"tuned": {"style": "terse"}},
	}
	res, err := e.Run(context.Background(), stage.Input{}, stage.NewExecutionContext("u", "s"),
		[]string{"tuned"}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Result != "style=terse" {
		t.Errorf("parameters were not applied before Process, got %v", res.Result)
	}
}

type paramStage struct {
	name  string
	style string
}

func (p *paramStage) Name() string { return p.name }
func (p *paramStage) Type() string { return "configurable" }

func (p *paramStage) SetParameters(params map[string]any) {
	if v, ok := params["style"].(string); ok {
		p.style = v
	}
}

func (p *paramStage) Process(_ context.Context, _ stage.Input, _ *stage.ExecutionContext) (any, error) {
	return "style=" + p.style, nil
}

func TestCircuitOpensAndRejects(t *testing.T) {
	reg := stage.NewRegistry()
	var calls int32
	reg.Register(&stage.Func{
		StageName: "flaky",
		Fn: func(_ context.Context, _ stage.Input, _ *stage.ExecutionContext) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errors.New("always failing")
		},
	})
	retry := fastRetry()
	retry.MaxAttempts = 1
	e := newTestExecutor(t, reg, ResilienceConfig{
		Retry:               retry,
		CircuitThreshold:    3,
		CircuitResetTimeout: time.Hour,
	})

	in := stage.Input{Payload: "x"}
	// Three failing runs reach the threshold.
	for i := 0; i < 3; i++ {
		if _, err := e.Run(context.Background(), in, stage.NewExecutionContext("u", "s"),
			[]string{"flaky"}, Options{SkipCache: true}); err == nil {
			t.Fatalf("run %d should fail", i)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("stage invoked %d times before opening, want 3", got)
	}

	// The next run is rejected without invoking the stage, and without
	// a cache lookup masking the rejection.
	_, err := e.Run(context.Background(), in, stage.NewExecutionContext("u", "s"),
		[]string{"flaky"}, Options{})
	if err == nil {
		t.Fatal("expected circuit rejection")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("stage was invoked while the circuit was open (%d calls)", got)
	}

	// The reset hook clears the breaker; the stage is attempted again.
	e.ResetStageState("flaky")
	_, _ = e.Run(context.Background(), in, stage.NewExecutionContext("u", "s"),
		[]string{"flaky"}, Options{SkipCache: true})
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("expected a fresh attempt after reset, got %d calls", got)
	}
}

func TestCircuitOpenMidRetryIsTerminal(t *testing.T) {
	reg := stage.NewRegistry()
	var calls int32
	reg.Register(&stage.Func{
		StageName: "flaky",
		Fn: func(_ context.Context, _ stage.Input, _ *stage.ExecutionContext) (any, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errors.New("always failing")
		},
	})
	// Threshold 2 with 3 attempts: the second attempt opens the circuit
	// and ends the retry loop early.
	e := newTestExecutor(t, reg, ResilienceConfig{
		Retry:               fastRetry(),
		CircuitThreshold:    2,
		CircuitResetTimeout: time.Hour,
	})

	_, err := e.Run(context.Background(), stage.Input{}, stage.NewExecutionContext("u", "s"),
		[]string{"flaky"}, Options{SkipCache: true})
	if err == nil {
		t.Fatal("expected failure")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("retry loop made %d attempts, want 2 (stopped by the breaker)", got)
	}
	var ae *apperrors.AppError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AppError, got %T", err)
	}
}

func TestStageTimeout(t *testing.T) {
	reg := stage.NewRegistry()
	reg.Register(&stage.Func{
		StageName: "slow",
		Fn: func(ctx context.Context, _ stage.Input, _ *stage.ExecutionContext) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return "too late", nil
			}
		},
	})
	e := newTestExecutor(t, reg, ResilienceConfig{})

	start := time.Now()
	res, err := e.Run(context.Background(), stage.Input{}, stage.NewExecutionContext("u", "s"),
		[]string{"slow"}, Options{SkipCache: true, StageTimeout: 20 * time.Millisecond})
	if err == nil {
		t.Fatal("expected timeout failure")
	}
	if res == nil || res.Success {
		t.Fatalf("expected structured failure, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("timeout did not cut the stage short, took %v", elapsed)
	}
}

func TestRateGateDelaysExcessCalls(t *testing.T) {
	reg := stage.NewRegistry()
	var calls int32
	reg.Register(countingStage("limited", &calls))
	e := newTestExecutor(t, reg, ResilienceConfig{
		Retry:        fastRetry(),
		RateLimit:    1,
		RateInterval: 100 * time.Millisecond,
	})

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := e.Run(context.Background(), stage.Input{Payload: i}, stage.NewExecutionContext("u", "s"),
			[]string{"limited"}, Options{SkipCache: true}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("second call should have waited for the window, total %v", elapsed)
	}
}

func TestRateGateHonorsCancellation(t *testing.T) {
	reg := stage.NewRegistry()
	var calls int32
	reg.Register(countingStage("limited", &calls))
	e := newTestExecutor(t, reg, ResilienceConfig{
		Retry:        fastRetry(),
		RateLimit:    1,
		RateInterval: time.Hour,
	})

	ec := stage.NewExecutionContext("u", "s")
	if _, err := e.Run(context.Background(), stage.Input{Payload: 0}, ec,
		[]string{"limited"}, Options{SkipCache: true}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Run(ctx, stage.Input{Payload: 1}, ec, []string{"limited"}, Options{SkipCache: true})
	if err == nil {
		t.Fatal("expected the rate wait to abort on context cancellation")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("cancelled call still invoked the stage (%d calls)", got)
	}
}

func TestRetryBackoffProgression(t *testing.T) {
	cfg := resilience.RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		BackoffFactor: 2.0,
	}
	if d := resilience.Backoff(1, cfg); d != 200*time.Millisecond {
		t.Errorf("delay after attempt 1 = %v", d)
	}
	if d := resilience.Backoff(2, cfg); d != 400*time.Millisecond {
		t.Errorf("delay after attempt 2 = %v", d)
	}
}
