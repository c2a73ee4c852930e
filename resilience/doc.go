// Package resilience provides the fault-tolerance primitives the chain
// engine composes around each stage invocation:
//
//   - CircuitBreaker: halts attempts to a repeatedly failing stage
//   - Retry: retries failed operations with exponential backoff
//   - RateWindow: sliding-window rate limiter keyed by stage name
//   - Bulkhead: caps concurrent in-flight work
//
// The stage runner in package chain wires them in a fixed order:
// rate gate, circuit gate, cache check, retry loop.
package resilience
