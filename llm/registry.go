package llm

import (
	"fmt"
	"sync"
)

// Registry holds named providers in registration order. Registration order
// is significant: the fallback-chain selector tries remaining candidates
// in the order they were registered.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]Provider
	order []string
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]Provider)}
}

// Register adds a provider. Re-registering a name replaces the provider
// but keeps its original position.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("llm: cannot register nil provider")
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("llm: provider name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byKey[name] = p
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byKey[name]
	return p, ok
}

// Candidates returns all providers in registration order.
func (r *Registry) Candidates() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byKey[name])
	}
	return out
}

// List returns provider names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
