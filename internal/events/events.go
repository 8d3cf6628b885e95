package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyEventType is returned when an event is created without a task type.
var ErrEmptyEventType = errors.New("event type cannot be empty")

// TaskRequestEvent asks the system to run a task of the given type. The
// payload is carried as raw JSON so producers and handlers agree only on the
// task type's payload schema, not on shared Go types.
type TaskRequestEvent struct {
	// ID uniquely identifies this event
	ID uuid.UUID `json:"id"`

	// Type is the task type a handler should create
	Type string `json:"type"`

	// Payload is the task-specific data, serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskRequestEvent builds a TaskRequestEvent for the given task type,
// serializing the payload to JSON.
func NewTaskRequestEvent(taskType string, payload interface{}) (*TaskRequestEvent, error) {
	if taskType == "" {
		return nil, ErrEmptyEventType
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &TaskRequestEvent{
		ID:        uuid.New(),
		Type:      taskType,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the event payload into v.
func (e *TaskRequestEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Handler processes emitted events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// Emitter publishes events to registered handlers.
type Emitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}
