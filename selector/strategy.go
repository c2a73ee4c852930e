package selector

import (
	"github.com/lspecian/chain-of-experts/errors"
	"github.com/lspecian/chain-of-experts/llm"
)

// Context carries the hints a strategy may use when choosing a provider.
type Context struct {
	// Stage is the name of the stage making the call.
	Stage string
	// TaskType describes the work ("summarization", "extraction", ...).
	TaskType string
	// Priority is an optional hint ("low", "normal", "high").
	Priority string
	// PreferredProvider names an explicitly requested candidate.
	PreferredProvider string
	// PreferredModel names an explicitly requested model.
	PreferredModel string
	// CostCeiling caps the acceptable unit cost. 0 means no ceiling.
	CostCeiling float64
}

// Strategy picks one provider from the candidate list.
// Implementations are stateless: for a fixed candidate slice and context
// the same provider is returned every time.
type Strategy interface {
	Select(candidates []llm.Provider, sc Context) (llm.Provider, error)
}

// Default honors an explicit preferred-candidate name when present among
// the candidates, and otherwise returns the first candidate.
type Default struct{}

// Select implements Strategy.
func (Default) Select(candidates []llm.Provider, sc Context) (llm.Provider, error) {
	if len(candidates) == 0 {
		return nil, errors.NoProvider("no candidate providers")
	}
	if sc.PreferredProvider != "" {
		for _, p := range candidates {
			if p.Name() == sc.PreferredProvider {
				return p, nil
			}
		}
	}
	return candidates[0], nil
}
