// Package errors provides unified error handling for the chain engine.
// It implements structured error types with machine-readable codes and
// retryable detection so the resilience layer can classify failures.
package errors

import (
	"errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// CodeOf extracts the ErrorCode from err, or "" when err is not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsRetryable reports whether err can be retried. Non-AppError values are
// treated as retryable so transient provider failures are not dropped.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return true
}

// --- Common Error Constructors ---

// EmptyChain creates a configuration error for a chain with no stages.
func EmptyChain() *AppError {
	return &AppError{
		Code: ErrCodeConfiguration, Message: "chain requires at least one stage",
		Retryable: false,
	}
}

// UnknownStage creates a configuration error for an unresolvable stage name.
func UnknownStage(name string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownStage, Message: fmt.Sprintf("stage %q is not registered", name),
		Retryable: false,
		Details:   map[string]any{"stage": name},
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		Retryable: false, Details: details,
	}
}

// StageExecution creates a terminal stage failure after retry/circuit exhaustion.
func StageExecution(stage string, attempts int, circuitOpen bool, cause error) *AppError {
	return &AppError{
		Code:      ErrCodeStageExecution,
		Message:   fmt.Sprintf("stage %q failed after %d attempt(s)", stage, attempts),
		Retryable: false,
		Details: map[string]any{
			"stage":        stage,
			"attempts":     attempts,
			"circuit_open": circuitOpen,
		},
		Cause: cause,
	}
}

// CircuitOpen creates an error for a call rejected by an open circuit breaker.
func CircuitOpen(stage string) *AppError {
	return &AppError{
		Code: ErrCodeCircuitOpen, Message: fmt.Sprintf("circuit breaker open for stage %q", stage),
		Retryable: false,
		Details:   map[string]any{"stage": stage},
	}
}

// RateLimited creates an error for a stage whose rate window is exhausted.
func RateLimited(stage string) *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: fmt.Sprintf("rate limit exceeded for stage %q", stage),
		Retryable: true,
		Details:   map[string]any{"stage": stage},
	}
}

// Timeout creates an error for a stage that exceeded its deadline.
func Timeout(stage string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("stage %q timed out", stage),
		Retryable: true,
		Details:   map[string]any{"stage": stage},
	}
}

// CacheBackend creates an error for a failed cache backend operation.
func CacheBackend(op string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeCacheBackend, Message: fmt.Sprintf("cache backend %s failed", op),
		Retryable: true,
		Details:   map[string]any{"operation": op},
		Cause:     cause,
	}
}

// ProviderFailure creates an error for a failed backend provider call.
func ProviderFailure(provider string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeProvider, Message: fmt.Sprintf("provider %q call failed", provider),
		Retryable: true,
		Details:   map[string]any{"provider": provider},
		Cause:     cause,
	}
}

// NoProvider creates an error when selection yields no usable candidate.
func NoProvider(reason string) *AppError {
	return &AppError{
		Code: ErrCodeNoProvider, Message: reason,
		Retryable: false,
	}
}
