package task

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerworks/taskengine/internal/lifecycle"
)

// MockTaskStore implements the TaskStore interface for testing
type MockTaskStore struct {
	mutex          sync.RWMutex
	tasks          map[uuid.UUID]Task
	statuses       map[uuid.UUID]lifecycle.Status
	errorMessages  map[uuid.UUID]string
	updatedAt      map[uuid.UUID]time.Time
	SaveFn         func(ctx context.Context, task Task) error
	UpdateStatusFn func(ctx context.Context, taskID uuid.UUID, status lifecycle.Status, errorMsg string) error
	WithTxFn       func(tx *sql.Tx) TaskStore
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	store := &MockTaskStore{
		tasks:         make(map[uuid.UUID]Task),
		statuses:      make(map[uuid.UUID]lifecycle.Status),
		errorMessages: make(map[uuid.UUID]string),
		updatedAt:     make(map[uuid.UUID]time.Time),
	}

	store.SaveFn = func(ctx context.Context, task Task) error {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		store.tasks[task.ID()] = task
		store.statuses[task.ID()] = task.Status()
		store.updatedAt[task.ID()] = time.Now().UTC()
		return nil
	}

	store.UpdateStatusFn = func(ctx context.Context, taskID uuid.UUID, status lifecycle.Status, errorMsg string) error {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		if _, exists := store.tasks[taskID]; !exists {
			return nil // Unknown task is a no-op, matching the real store
		}
		store.statuses[taskID] = status
		store.errorMessages[taskID] = errorMsg
		store.updatedAt[taskID] = time.Now().UTC()
		return nil
	}

	return store
}

// SaveTask persists a task to the mock store
func (s *MockTaskStore) SaveTask(ctx context.Context, task Task) error {
	return s.SaveFn(ctx, task)
}

// UpdateTaskStatus updates the status of a task in the mock store
func (s *MockTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status lifecycle.Status,
	errorMsg string,
) error {
	return s.UpdateStatusFn(ctx, taskID, status, errorMsg)
}

// GetTasksByStatus retrieves all tasks whose persisted status matches
func (s *MockTaskStore) GetTasksByStatus(ctx context.Context, status lifecycle.Status) ([]Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var matched []Task
	for id, t := range s.tasks {
		if s.statuses[id] == status {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// GetStuckTasks retrieves in_progress tasks last touched before the cutoff
func (s *MockTaskStore) GetStuckTasks(ctx context.Context, olderThan time.Duration) ([]Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var stuck []Task
	for id, t := range s.tasks {
		if s.statuses[id] == lifecycle.StatusInProgress && s.updatedAt[id].Before(cutoff) {
			stuck = append(stuck, t)
		}
	}
	return stuck, nil
}

// Backdate rewrites the task's last-update time, so tests can age a task
// without sleeping.
func (s *MockTaskStore) Backdate(taskID uuid.UUID, to time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.updatedAt[taskID] = to
}

// PersistedStatus returns the status last written for the task, for
// asserting that transitions were persisted and not just applied in memory.
func (s *MockTaskStore) PersistedStatus(taskID uuid.UUID) (lifecycle.Status, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	status, ok := s.statuses[taskID]
	return status, ok
}

// PersistedErrorMessage returns the error message last written for the task.
func (s *MockTaskStore) PersistedErrorMessage(taskID uuid.UUID) string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.errorMessages[taskID]
}

// WithTx implements TaskStore.WithTx for the mock store. The mock has no
// transactions; unless a test overrides WithTxFn it returns itself.
func (s *MockTaskStore) WithTx(tx *sql.Tx) TaskStore {
	if s.WithTxFn != nil {
		return s.WithTxFn(tx)
	}
	return s
}
