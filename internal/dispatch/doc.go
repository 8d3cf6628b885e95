// Package dispatch maps a task's declared type to a registered handler and
// invokes it. The dispatcher holds no lifecycle state, performs no I/O of its
// own, and never reinterprets handler errors; deciding what a handler failure
// means is the caller's job.
package dispatch
