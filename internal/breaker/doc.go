// Package breaker implements a named circuit breaker that protects calls to
// a flaky external dependency (for example an LLM API). The breaker decides
// admission only; retry policy belongs to the caller, which consults
// AllowRequest immediately before each attempt and records the outcome
// exactly once.
//
// Breaker state lives behind the StateStore interface so the same logic runs
// against an in-memory store (single process, tests) or a shared external
// store whose atomic primitives keep every worker process protecting the same
// resource in agreement.
package breaker
