package dispatch

import (
	"fmt"
	"strings"
)

// UnregisteredHandlerError is returned by Dispatch when no handler exists for
// the task's type. The message enumerates all currently registered types so
// an operator can spot a misrouted task without querying the registry.
type UnregisteredHandlerError struct {
	TaskType        string
	RegisteredTypes []string
}

// Error implements the error interface.
func (e *UnregisteredHandlerError) Error() string {
	if len(e.RegisteredTypes) == 0 {
		return fmt.Sprintf("no handler registered for task type %q: registry is empty", e.TaskType)
	}
	return fmt.Sprintf(
		"no handler registered for task type %q: registered types are %s",
		e.TaskType, strings.Join(e.RegisteredTypes, ", "),
	)
}
