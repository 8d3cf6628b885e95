package task

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerworks/taskengine/internal/lifecycle"
)

// MockTask is a simple implementation of the Task interface for testing
type MockTask struct {
	TaskID      uuid.UUID
	TaskType    string
	TaskPayload []byte
	TaskStatus  lifecycle.Status
}

// NewMockTask creates a new MockTask with the given ID and type
func NewMockTask(id uuid.UUID, taskType string, payload []byte) *MockTask {
	return &MockTask{
		TaskID:      id,
		TaskType:    taskType,
		TaskPayload: payload,
		TaskStatus:  lifecycle.StatusPending,
	}
}

// ID returns the task's unique identifier
func (t *MockTask) ID() uuid.UUID {
	return t.TaskID
}

// Type returns the task type identifier
func (t *MockTask) Type() string {
	return t.TaskType
}

// Payload returns the task data as a byte slice
func (t *MockTask) Payload() []byte {
	return t.TaskPayload
}

// Status returns the current task status
func (t *MockTask) Status() lifecycle.Status {
	return t.TaskStatus
}

// SetStatus overwrites the task status
func (t *MockTask) SetStatus(status lifecycle.Status) {
	t.TaskStatus = status
}

// MockPayload is a sample payload structure used for testing
type MockPayload struct {
	Message string    `json:"message"`
	Created time.Time `json:"created"`
}

// CreateMockTaskWithPayload is a helper function to create a MockTask with a structured payload
func CreateMockTaskWithPayload(taskType, message string) *MockTask {
	payload := MockPayload{
		Message: message,
		Created: time.Now().UTC(),
	}

	data, _ := json.Marshal(payload)
	return NewMockTask(uuid.New(), taskType, data)
}
