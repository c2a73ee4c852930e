package selector

import (
	"context"

	"github.com/lspecian/chain-of-experts/errors"
	"github.com/lspecian/chain-of-experts/llm"
)

// FallbackChain wraps an inner strategy. The provider it returns is a
// composite: calls first go to the inner-selected candidate, then to
// every remaining candidate in registration order. Only the final
// candidate's error surfaces; earlier failures are swallowed.
type FallbackChain struct {
	// Inner picks the primary candidate. Nil means Default.
	Inner Strategy
}

// Select implements Strategy.
func (f FallbackChain) Select(candidates []llm.Provider, sc Context) (llm.Provider, error) {
	if len(candidates) == 0 {
		return nil, errors.NoProvider("no candidate providers")
	}

	inner := f.Inner
	if inner == nil {
		inner = Default{}
	}
	primary, err := inner.Select(candidates, sc)
	if err != nil {
		return nil, err
	}

	// Primary first, then the rest in their original order.
	ordered := make([]llm.Provider, 0, len(candidates))
	ordered = append(ordered, primary)
	for _, p := range candidates {
		if p.Name() != primary.Name() {
			ordered = append(ordered, p)
		}
	}

	return &fallbackProvider{chain: ordered}, nil
}

// fallbackProvider tries each provider in order until one succeeds.
type fallbackProvider struct {
	chain []llm.Provider
}

func (f *fallbackProvider) Name() string { return f.chain[0].Name() }

func (f *fallbackProvider) IsAvailable(ctx context.Context) bool {
	for _, p := range f.chain {
		if p.IsAvailable(ctx) {
			return true
		}
	}
	return false
}

func (f *fallbackProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var lastErr error
	for _, p := range f.chain {
		resp, err := p.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (f *fallbackProvider) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	var lastErr error
	for _, p := range f.chain {
		resp, err := p.Embed(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
