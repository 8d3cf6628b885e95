package breaker

import "fmt"

// CircuitOpenError is returned when a call is attempted while the breaker
// denies admission. Callers should treat it as a transient condition and
// defer or escalate rather than report a hard business failure.
type CircuitOpenError struct {
	Name string
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open, request rejected", e.Name)
}
