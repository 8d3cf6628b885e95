package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ErrEmptyTaskType is returned when a handler registration names no task type.
var ErrEmptyTaskType = errors.New("task type cannot be empty")

// Task is the minimal view of a task the dispatcher needs for routing. The
// full task contract (status, persistence) lives with the caller.
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier used for routing
	Type() string

	// Payload returns the task data as a byte slice
	Payload() []byte
}

// Handler performs the work for one task type. It blocks until the work is
// done and reports failure through its error; the dispatcher awaits it and
// propagates that error unchanged.
type Handler func(ctx context.Context, t Task) error

// Dispatcher routes tasks to handlers by task type. It is constructed
// explicitly and injected by the application's startup routine; production
// usage creates exactly one per process, registers handlers at startup, and
// treats the registry as read-mostly thereafter.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   logger.With("component", "dispatcher"),
	}
}

// Register stores the handler for taskType. An empty taskType is rejected
// outright. Registering over an existing handler replaces it and logs a
// warning rather than failing; hot-reloading a handler during development or
// operations is a supported path and must never error.
func (d *Dispatcher) Register(taskType string, handler Handler) error {
	if taskType == "" {
		return ErrEmptyTaskType
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[taskType]; exists {
		d.logger.Warn("replacing existing handler registration",
			"task_type", taskType)
	}
	d.handlers[taskType] = handler

	d.logger.Debug("registered handler",
		"task_type", taskType,
		"handler_count", len(d.handlers))
	return nil
}

// Unregister removes the handler for taskType. Removing a type that was
// never registered is a no-op, not an error.
func (d *Dispatcher) Unregister(taskType string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[taskType]; !exists {
		return
	}
	delete(d.handlers, taskType)
	d.logger.Debug("unregistered handler", "task_type", taskType)
}

// RegisteredTypes returns the currently registered task types, sorted.
func (d *Dispatcher) RegisteredTypes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]string, 0, len(d.handlers))
	for taskType := range d.handlers {
		types = append(types, taskType)
	}
	sort.Strings(types)
	return types
}

// Dispatch looks up the handler for the task's type and invokes it, blocking
// until the handler returns. Handler errors are propagated unchanged: mapping
// a failure to a lifecycle outcome (failed, escalated) is the caller's
// responsibility.
//
// An unknown task type yields an *UnregisteredHandlerError listing every
// registered type, which is deliberately verbose to help operators diagnose
// misrouted tasks.
func (d *Dispatcher) Dispatch(ctx context.Context, t Task) error {
	d.mu.RLock()
	handler, ok := d.handlers[t.Type()]
	d.mu.RUnlock()

	if !ok {
		return &UnregisteredHandlerError{
			TaskType:        t.Type(),
			RegisteredTypes: d.RegisteredTypes(),
		}
	}

	d.logger.Debug("dispatching task",
		"task_id", t.ID(),
		"task_type", t.Type())

	return handler(ctx, t)
}

// Reset removes every registration. It exists for test isolation; production
// code has no reason to call it.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[string]Handler)
}
