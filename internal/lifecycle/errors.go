package lifecycle

import (
	"fmt"
	"strings"
)

// InvalidTransitionError is returned when a transition is attempted that is
// not legal from the task's current status. It names the current status, the
// attempted target, and the legal targets so the violation is diagnosable
// without consulting the transition table.
type InvalidTransitionError struct {
	From         Status
	To           Status
	LegalTargets []Status
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	if len(e.LegalTargets) == 0 {
		return fmt.Sprintf(
			"invalid transition from %q to %q: %q is terminal",
			e.From, e.To, e.From,
		)
	}

	targets := make([]string, len(e.LegalTargets))
	for i, t := range e.LegalTargets {
		targets[i] = string(t)
	}
	return fmt.Sprintf(
		"invalid transition from %q to %q: legal targets are %s",
		e.From, e.To, strings.Join(targets, ", "),
	)
}
