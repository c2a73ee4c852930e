// Package stage defines the unit of work the chain engine orchestrates:
// a named Stage transforming an input and execution context into an
// output. Stage implementations live outside the engine; the engine only
// sequences, retries, caches, and isolates them.
package stage

import "context"

// Stage is a named processing unit. Implementations must be safe for
// concurrent Process calls: parallel chains invoke stages from multiple
// goroutines.
type Stage interface {
	// Name returns the unique stage name used for registry lookup,
	// cache keys, and per-stage resilience state.
	Name() string
	// Type returns the stage's type tag recorded in stage results.
	Type() string
	// Process transforms the input into an output. Blocking work must
	// honor ctx cancellation.
	Process(ctx context.Context, in Input, ec *ExecutionContext) (any, error)
}

// ContextKeyer is implemented by stages that declare which execution
// context keys they read.
type ContextKeyer interface {
	RequiredContextKeys() []string
}

// ParameterSetter is implemented by stages accepting per-request
// parameter overrides.
type ParameterSetter interface {
	SetParameters(params map[string]any)
}

// Scorer is implemented by stages that grade their own output.
// Score calls run on the executor's background queue, off the request
// path.
type Scorer interface {
	CalculateScores(ctx context.Context, in Input, output any) (map[string]float64, error)
}

// Func adapts a plain function into a Stage.
type Func struct {
	StageName string
	StageType string
	Fn        func(ctx context.Context, in Input, ec *ExecutionContext) (any, error)
}

// Name implements Stage.
func (f *Func) Name() string { return f.StageName }

// Type implements Stage. Empty types default to "generic".
func (f *Func) Type() string {
	if f.StageType == "" {
		return "generic"
	}
	return f.StageType
}

// Process implements Stage.
func (f *Func) Process(ctx context.Context, in Input, ec *ExecutionContext) (any, error) {
	return f.Fn(ctx, in, ec)
}
