// Package lifecycle defines the task status state machine: the set of legal
// statuses, the directed transitions between them, and the single authorized
// operation for mutating a task's status. All other code reads status but
// never writes it directly.
package lifecycle
