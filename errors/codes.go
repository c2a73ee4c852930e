package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors (never retryable, no stage is invoked)
const (
	// ErrCodeConfiguration indicates the chain request itself is invalid.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeUnknownStage indicates a stage name could not be resolved.
	ErrCodeUnknownStage ErrorCode = "UNKNOWN_STAGE"
	// ErrCodeInvalidInput indicates the input payload is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Execution errors
const (
	// ErrCodeStageExecution indicates a stage failed after retry/circuit exhaustion.
	ErrCodeStageExecution ErrorCode = "STAGE_EXECUTION_ERROR"
	// ErrCodeCircuitOpen indicates the stage's circuit breaker rejected the call.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// ErrCodeRateLimited indicates the stage's rate window is exhausted.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeTimeout indicates a stage exceeded its per-stage deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Collaborator errors
const (
	// ErrCodeCacheBackend indicates a cache backend operation failed.
	// Cache errors are logged and degrade to a miss, never surfaced to callers.
	ErrCodeCacheBackend ErrorCode = "CACHE_BACKEND_ERROR"
	// ErrCodeProvider indicates a backend provider call failed.
	ErrCodeProvider ErrorCode = "PROVIDER_ERROR"
	// ErrCodeNoProvider indicates no candidate provider could be selected.
	ErrCodeNoProvider ErrorCode = "NO_PROVIDER"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeProvider:     true,
	ErrCodeTimeout:      true,
	ErrCodeCacheBackend: true,
	ErrCodeRateLimited:  true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
