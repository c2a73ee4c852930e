package selector

import (
	"github.com/lspecian/chain-of-experts/errors"
	"github.com/lspecian/chain-of-experts/llm"
)

// QualityTable maps providers to quality scores (0..10 by convention).
// Entries under a model name override the provider default.
type QualityTable struct {
	// PerProvider is the default quality score per provider name.
	PerProvider map[string]float64
	// PerModel overrides scores for a specific (provider, model) pair,
	// keyed provider -> model -> score.
	PerModel map[string]map[string]float64
}

// Score resolves the quality score for a provider/model pair.
// Unknown combinations score zero.
func (t QualityTable) Score(provider, model string) float64 {
	if model != "" {
		if models, ok := t.PerModel[provider]; ok {
			if s, ok := models[model]; ok {
				return s
			}
		}
	}
	return t.PerProvider[provider]
}

// QualityBased ranks candidates by quality score plus a task-type
// preference boost and picks the highest composite. Ties resolve to the
// earlier candidate so selection stays deterministic.
type QualityBased struct {
	Table QualityTable
	// TaskPreferences maps a task type to an ordered provider preference
	// list. Earlier positions earn a larger boost.
	TaskPreferences map[string][]string
}

// Boost added per preference-list position; the first preferred provider
// for a task gets len(list)*boost extra points.
const preferenceBoost = 1.0

// Select implements Strategy.
func (s QualityBased) Select(candidates []llm.Provider, sc Context) (llm.Provider, error) {
	if len(candidates) == 0 {
		return nil, errors.NoProvider("no candidate providers")
	}

	prefs := s.TaskPreferences[sc.TaskType]

	var best llm.Provider
	bestScore := 0.0

	for _, p := range candidates {
		score := s.Table.Score(p.Name(), sc.PreferredModel)
		for i, name := range prefs {
			if name == p.Name() {
				score += float64(len(prefs)-i) * preferenceBoost
				break
			}
		}
		if best == nil || score > bestScore {
			best = p
			bestScore = score
		}
	}

	return best, nil
}
