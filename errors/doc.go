// Package errors defines the error taxonomy shared across the chain
// engine: configuration errors, stage execution errors, and collaborator
// (cache, provider) errors, with retryable classification.
package errors
