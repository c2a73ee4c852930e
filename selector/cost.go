package selector

import (
	"github.com/lspecian/chain-of-experts/errors"
	"github.com/lspecian/chain-of-experts/llm"
)

// DefaultUnknownCost is assigned to (model, provider) combinations absent
// from the cost table, so unknown backends rank last.
const DefaultUnknownCost = 100.0

// CostTable maps providers to unit costs. Entries under a model name
// override the provider default.
type CostTable struct {
	// PerProvider is the default unit cost per provider name.
	PerProvider map[string]float64
	// PerModel overrides costs for a specific (provider, model) pair,
	// keyed provider -> model -> cost.
	PerModel map[string]map[string]float64
}

// UnitCost resolves the cost for a provider/model pair. Model-specific
// entries win over provider defaults; unknown combos cost DefaultUnknownCost.
func (t CostTable) UnitCost(provider, model string) float64 {
	if model != "" {
		if models, ok := t.PerModel[provider]; ok {
			if c, ok := models[model]; ok {
				return c
			}
		}
	}
	if c, ok := t.PerProvider[provider]; ok {
		return c
	}
	return DefaultUnknownCost
}

// CostBased ranks candidates by unit cost and, when the selection context
// carries a cost ceiling, picks the cheapest candidate under the ceiling.
// If no candidate qualifies it falls back to the cheapest overall.
type CostBased struct {
	Table CostTable
}

// Select implements Strategy.
func (s CostBased) Select(candidates []llm.Provider, sc Context) (llm.Provider, error) {
	if len(candidates) == 0 {
		return nil, errors.NoProvider("no candidate providers")
	}

	var cheapest llm.Provider
	cheapestCost := 0.0
	var underCeiling llm.Provider
	underCeilingCost := 0.0

	for _, p := range candidates {
		cost := s.Table.UnitCost(p.Name(), sc.PreferredModel)

		if cheapest == nil || cost < cheapestCost {
			cheapest = p
			cheapestCost = cost
		}
		if sc.CostCeiling > 0 && cost <= sc.CostCeiling {
			if underCeiling == nil || cost < underCeilingCost {
				underCeiling = p
				underCeilingCost = cost
			}
		}
	}

	if sc.CostCeiling > 0 && underCeiling != nil {
		return underCeiling, nil
	}
	return cheapest, nil
}
