package stage

import (
	"sync"

	"github.com/google/uuid"
)

// ExecutionContext is the per-request bag shared by all stages of one
// chain run. The identity triple is immutable; the state map is mutable
// and safe for concurrent access. The context is created once per
// request and discarded afterwards — nothing here is persisted.
type ExecutionContext struct {
	requestID string
	userID    string
	sessionID string

	mu    sync.RWMutex
	state map[string]any
}

// NewExecutionContext creates a context with a generated request id.
func NewExecutionContext(userID, sessionID string) *ExecutionContext {
	return &ExecutionContext{
		requestID: uuid.NewString(),
		userID:    userID,
		sessionID: sessionID,
		state:     make(map[string]any),
	}
}

// RequestID returns the immutable request identifier.
func (ec *ExecutionContext) RequestID() string { return ec.requestID }

// UserID returns the immutable user identifier.
func (ec *ExecutionContext) UserID() string { return ec.userID }

// SessionID returns the immutable session identifier.
func (ec *ExecutionContext) SessionID() string { return ec.sessionID }

// Get retrieves a state value by key.
func (ec *ExecutionContext) Get(key string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.state[key]
	return v, ok
}

// Set stores a state value by key.
func (ec *ExecutionContext) Set(key string, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.state[key] = value
}

// Keys returns a snapshot of the current state keys.
func (ec *ExecutionContext) Keys() []string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	keys := make([]string, 0, len(ec.state))
	for k := range ec.state {
		keys = append(keys, k)
	}
	return keys
}
