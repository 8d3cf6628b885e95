package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerworks/taskengine/internal/events"
)

// Submitter accepts new tasks for processing. *Runner satisfies it.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// SubmitEventHandler turns TaskRequestEvents into pending tasks. Registering
// it on an event emitter lets producers request work without importing the
// runner.
type SubmitEventHandler struct {
	submitter Submitter
	logger    *slog.Logger
}

// NewSubmitEventHandler creates a handler that submits tasks to the given
// Submitter.
func NewSubmitEventHandler(submitter Submitter, logger *slog.Logger) *SubmitEventHandler {
	return &SubmitEventHandler{
		submitter: submitter,
		logger:    logger.With("component", "submit_event_handler"),
	}
}

// HandleEvent builds a pending task from the event and submits it.
func (h *SubmitEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	t := New(event.Type, event.Payload)

	if err := h.submitter.Submit(ctx, t); err != nil {
		return fmt.Errorf("failed to submit task for event %s: %w", event.ID, err)
	}

	h.logger.Debug("task submitted from event",
		"event_id", event.ID,
		"task_id", t.ID(),
		"task_type", t.Type())
	return nil
}

var _ events.Handler = (*SubmitEventHandler)(nil)
