// Package selector implements provider-selection strategies for stages
// calling external backends: default (preferred-or-first), fallback-chain
// (composite provider trying alternates in order), cost-based, and
// quality-based ranking.
//
// All strategies are stateless and deterministic for a fixed candidate
// set and selection context.
package selector
