package breaker

import (
	"context"
	"time"
)

// State represents the admission state of a circuit breaker.
type State string

// Possible breaker states
const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Valid reports whether s is one of the defined breaker states.
func (s State) Valid() bool {
	switch s {
	case StateClosed, StateOpen, StateHalfOpen:
		return true
	default:
		return false
	}
}

// Record is the persisted state of one named breaker. OpenedAt is the zero
// time unless the breaker has an open timestamp recorded.
type Record struct {
	State             State
	FailureCount      int
	OpenedAt          time.Time
	HalfOpenSuccesses int
}

// StateStore persists breaker records keyed by breaker name. Implementations
// must make the increment and SetState operations atomic under concurrent
// callers: multiple worker processes share one record per protected resource
// and must not lose updates. Records are created lazily with closed state and
// zeroed counters the first time a name is used.
type StateStore interface {
	// Get returns the current record for the named breaker.
	Get(ctx context.Context, name string) (Record, error)

	// IncrementFailureCount atomically adds one to the failure counter and
	// returns the new value.
	IncrementFailureCount(ctx context.Context, name string) (int, error)

	// ResetFailureCount atomically sets the failure counter to zero.
	ResetFailureCount(ctx context.Context, name string) error

	// IncrementSuccessCount atomically adds one to the half-open success
	// counter and returns the new value.
	IncrementSuccessCount(ctx context.Context, name string) (int, error)

	// SetState transitions the record from the expected state to the target
	// state (compare-and-set) and reports whether the swap happened. A false
	// return with nil error means another caller changed the state first.
	//
	// Side effects on a successful swap:
	//   - to open: opened_at is set to openedAt, the half-open success
	//     counter resets
	//   - to half_open: the half-open success counter resets
	//   - to closed: both counters reset and opened_at clears
	SetState(ctx context.Context, name string, from, to State, openedAt time.Time) (bool, error)
}
