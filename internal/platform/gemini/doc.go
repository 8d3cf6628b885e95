// Package gemini wraps the Google Gemini API behind a small text-generation
// client. The client deliberately does no retrying: callers run it behind a
// circuit breaker, which owns the failure policy.
package gemini
