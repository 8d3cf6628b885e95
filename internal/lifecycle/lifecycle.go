package lifecycle

import "fmt"

// Status represents the current lifecycle state of a task.
type Status string

// Possible task status values
const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusEscalated  Status = "escalated"
)

// transitions is the legal-transition table. A status absent from the value
// set of its source is never reachable via Transition. completed and
// escalated are terminal: undoing either requires a new task, not a
// resurrected one. failed is deliberately non-terminal so a retry can
// re-queue the task from the top.
var transitions = map[Status][]Status{
	StatusPending:    {StatusAssigned},
	StatusAssigned:   {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusFailed, StatusEscalated},
	StatusCompleted:  {},
	StatusFailed:     {StatusPending},
	StatusEscalated:  {},
}

// Valid reports whether s is one of the defined status values.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s accepts no outgoing transitions.
func (s Status) Terminal() bool {
	targets, ok := transitions[s]
	return ok && len(targets) == 0
}

// Parse converts a raw string into a Status, rejecting anything outside the
// defined state set.
func Parse(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid task status %q", raw)
	}
	return s, nil
}

// LegalTargets returns the statuses reachable from the given status. The
// returned slice is a copy; callers may modify it freely.
func LegalTargets(from Status) []Status {
	targets := transitions[from]
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}

// StatusCarrier is the capability the state machine needs from a task. The
// embedding application supplies it over whatever actually holds the status
// (a persisted row, an in-memory object), keeping this package free of any
// persistence assumptions.
type StatusCarrier interface {
	// Status returns the carrier's current lifecycle status.
	Status() Status

	// SetStatus overwrites the carrier's status. Only Transition may call it.
	SetStatus(status Status)
}

// CurrentState returns the carrier's status without mutating anything.
func CurrentState(c StatusCarrier) Status {
	return c.Status()
}

// Transition moves the carrier from its current status to target, mutating
// the carrier's status field in the same step. It is the sole authorized
// mutator of a task's status.
//
// Callers must serialize concurrent transitions for a single task (e.g. via a
// database row lock): the legality check reads the current status immediately
// before the write, and two in-flight transitions for the same task would
// otherwise race.
//
// Returns an *InvalidTransitionError when target is not a legal successor of
// the current status, including every attempt to leave a terminal status.
func Transition(c StatusCarrier, target Status) error {
	current := c.Status()

	if !current.Valid() {
		return fmt.Errorf("task has invalid current status %q", current)
	}
	if !target.Valid() {
		return fmt.Errorf("invalid target status %q", target)
	}

	for _, legal := range transitions[current] {
		if legal == target {
			c.SetStatus(target)
			return nil
		}
	}

	return &InvalidTransitionError{
		From:         current,
		To:           target,
		LegalTargets: LegalTargets(current),
	}
}
