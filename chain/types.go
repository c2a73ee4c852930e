package chain

import (
	"time"

	"github.com/lspecian/chain-of-experts/llm"
	"github.com/lspecian/chain-of-experts/stage"
)

// Mode selects how a chain's stages are executed.
type Mode string

const (
	// ModeSequential runs stages in declared order, feeding each stage
	// the previous stage's output.
	ModeSequential Mode = "sequential"
	// ModeParallel runs all stages against the original input under a
	// concurrency cap.
	ModeParallel Mode = "parallel"
)

// Options configures one chain run.
type Options struct {
	// Mode is sequential (default) or parallel.
	Mode Mode `json:"mode,omitempty"`
	// MaxConcurrency caps in-flight stages in parallel mode.
	// Zero means the stage count.
	MaxConcurrency int `json:"max_concurrency,omitempty"`
	// SkipCache bypasses the cache entirely for this run.
	SkipCache bool `json:"skip_cache,omitempty"`
	// CacheTTL overrides the cache backend's default TTL for entries
	// written by this run.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`
	// StageTimeout bounds each stage invocation attempt. Zero means no
	// per-stage deadline.
	StageTimeout time.Duration `json:"stage_timeout,omitempty"`
	// StageParams carries per-stage parameter overrides keyed by stage
	// name. Overrides participate in cache key derivation.
	StageParams map[string]map[string]any `json:"stage_params,omitempty"`
	// RequireAllSuccess makes a parallel run report Success=false when
	// any stage fails. Off by default: failures stay isolated inside
	// the aggregate result.
	RequireAllSuccess bool `json:"require_all_success,omitempty"`
	// OnStageResult, when set, receives each StageResult as soon as it
	// is produced.
	OnStageResult func(StageResult) `json:"-"`
}

// StageResult records one completed stage execution. Results are
// appended to an ordered list and never mutated afterwards.
type StageResult struct {
	// Name is the stage name.
	Name string `json:"name"`
	// Type is the stage's type tag.
	Type string `json:"type"`
	// Index is the stage's position in the declared stage list.
	Index int `json:"index"`
	// Input is a snapshot of the input the stage received.
	Input stage.Input `json:"input"`
	// Output is the stage's output (possibly served from cache).
	Output any `json:"output"`
	// CacheHit reports whether the output came from the cache.
	CacheHit bool `json:"cache_hit"`
	// Timestamp is when the stage completed.
	Timestamp time.Time `json:"timestamp"`
}

// Result is the outcome of one chain run.
type Result struct {
	// Result is the final output: the last stage's output in sequential
	// mode, or a map keyed by stage name in parallel mode.
	Result any `json:"result"`
	// StageResults lists completed stages in declared order.
	StageResults []StageResult `json:"stage_results"`
	// Success reports whether the chain as a whole succeeded.
	Success bool `json:"success"`
	// Error is the single caller-facing error string when Success is
	// false. Detail beyond it lives in logs and traces.
	Error string `json:"error,omitempty"`
	// TokenUsage is the first usage block found in the final output or
	// the stage results, if any.
	TokenUsage *llm.Usage `json:"token_usage,omitempty"`
}

// usageFrom extracts a token usage block from a stage output, if the
// output carries one.
func usageFrom(v any) *llm.Usage {
	switch out := v.(type) {
	case *llm.Usage:
		if out != nil && out.TotalTokens > 0 {
			return out
		}
	case llm.Usage:
		if out.TotalTokens > 0 {
			u := out
			return &u
		}
	case *llm.CompletionResponse:
		if out != nil && out.Usage.TotalTokens > 0 {
			u := out.Usage
			return &u
		}
	case llm.CompletionResponse:
		if out.Usage.TotalTokens > 0 {
			u := out.Usage
			return &u
		}
	case map[string]any:
		if raw, ok := out["usage"]; ok {
			if u := usageFrom(raw); u != nil {
				return u
			}
		}
	}
	return nil
}

// deriveUsage scans the final output first, then stage results in
// order, for the first present usage block.
func deriveUsage(final any, results []StageResult) *llm.Usage {
	if u := usageFrom(final); u != nil {
		return u
	}
	for _, sr := range results {
		if u := usageFrom(sr.Output); u != nil {
			return u
		}
	}
	return nil
}
