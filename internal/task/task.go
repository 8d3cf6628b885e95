package task

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerworks/taskengine/internal/lifecycle"
)

// ErrEscalate signals that a handler has determined the task needs human
// judgment. Handlers return it (usually wrapped) to make the runner move the
// task to the terminal escalated status instead of failed.
var ErrEscalate = errors.New("task requires human attention")

// Task represents a unit of routed work: a type tag for dispatch and a
// lifecycle status. The status field is written only through
// lifecycle.Transition.
// Version: 1.0
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier used for handler routing
	Type() string

	// Payload returns the task data as a byte slice
	Payload() []byte

	// Status returns the current lifecycle status
	Status() lifecycle.Status

	// SetStatus overwrites the lifecycle status. Reserved for
	// lifecycle.Transition; nothing else may call it.
	SetStatus(status lifecycle.Status)
}

// QueueReader provides read-only access to the task channel,
// allowing workers to consume tasks without the ability to enqueue.
// Version: 1.0
type QueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// QueueWriter provides write access to the task queue,
// allowing services to enqueue tasks for processing.
// Version: 1.0
type QueueWriter interface {
	// Enqueue adds a task to the queue for processing.
	// Returns an error if the queue is full or closed.
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// TaskStore defines the interface for persisting tasks.
// Version: 1.0
type TaskStore interface {
	// SaveTask persists a new task
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus updates the persisted status of a task
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status lifecycle.Status, errorMsg string) error

	// GetTasksByStatus retrieves all tasks currently in the given status
	GetTasksByStatus(ctx context.Context, status lifecycle.Status) ([]Task, error)

	// GetStuckTasks retrieves in_progress tasks that have not been updated
	// for at least olderThan, typically abandoned by a dead worker
	GetStuckTasks(ctx context.Context, olderThan time.Duration) ([]Task, error)

	// WithTx returns a TaskStore bound to the provided transaction, so
	// several operations can share one transaction managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}

// Record is the basic Task implementation: what producers submit and what
// stores load back out of persistence.
type Record struct {
	id        uuid.UUID
	taskType  string
	payload   []byte
	status    lifecycle.Status
	createdAt time.Time
}

// New creates a pending task of the given type with the given payload.
func New(taskType string, payload []byte) *Record {
	return &Record{
		id:        uuid.New(),
		taskType:  taskType,
		payload:   payload,
		status:    lifecycle.StatusPending,
		createdAt: time.Now().UTC(),
	}
}

// Load reconstructs a task from persisted fields.
func Load(id uuid.UUID, taskType string, payload []byte, status lifecycle.Status) *Record {
	return &Record{
		id:       id,
		taskType: taskType,
		payload:  payload,
		status:   status,
	}
}

// ID returns the task's unique identifier
func (r *Record) ID() uuid.UUID {
	return r.id
}

// Type returns the task type identifier
func (r *Record) Type() string {
	return r.taskType
}

// Payload returns the task data as a byte slice
func (r *Record) Payload() []byte {
	return r.payload
}

// Status returns the current lifecycle status
func (r *Record) Status() lifecycle.Status {
	return r.status
}

// SetStatus overwrites the lifecycle status. See Task.SetStatus.
func (r *Record) SetStatus(status lifecycle.Status) {
	r.status = status
}

// CreatedAt returns when the task was created.
func (r *Record) CreatedAt() time.Time {
	return r.createdAt
}

// Ensure Record implements Task
var _ Task = (*Record)(nil)
