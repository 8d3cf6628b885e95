// Package task manages background task queuing and processing. The runner
// pulls tasks from a bounded queue, walks each one through its lifecycle via
// the state machine, and hands the actual work to the dispatcher's registered
// handler for the task's type. Tasks survive restarts: interrupted work is
// failed and re-queued on recovery.
package task
