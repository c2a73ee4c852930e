// Package llm defines the backend-provider contract consumed by the
// chain engine: a universal completion/embedding request shape, the
// Provider interface, and an order-preserving registry.
//
// Concrete backends (OpenAI-compatible HTTP services, local runtimes)
// live outside this module; the engine only depends on the interface.
package llm
