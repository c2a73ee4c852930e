package stage

import (
	"sort"
	"sync"

	"github.com/lspecian/chain-of-experts/errors"
)

// Registry provides named stage lookup for the executor. It is the
// in-process registry only; persisted stage definitions are resolved
// into Stage values by an external layer before registration.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// Register adds a stage to the registry, replacing any existing stage
// with the same name.
func (r *Registry) Register(s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[s.Name()] = s
}

// Get retrieves a stage by name.
func (r *Registry) Get(name string) (Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	if !ok {
		return nil, errors.UnknownStage(name)
	}
	return s, nil
}

// Resolve maps every name to its stage, failing on the first unknown
// name. No stage is invoked here.
func (r *Registry) Resolve(names []string) ([]Stage, error) {
	out := make([]Stage, 0, len(names))
	for _, name := range names {
		s, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// List returns sorted names of all registered stages.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stages))
	for name := range r.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
