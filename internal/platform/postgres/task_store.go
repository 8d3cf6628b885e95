package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerworks/taskengine/internal/lifecycle"
	"github.com/ledgerworks/taskengine/internal/platform/logger"
	"github.com/ledgerworks/taskengine/internal/store"
	"github.com/ledgerworks/taskengine/internal/task"
)

// TaskStore implements task.TaskStore on PostgreSQL.
type TaskStore struct {
	db store.DBTX
}

// NewTaskStore creates a TaskStore on the given database handle.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

// SaveTask inserts a new task row.
func (s *TaskStore) SaveTask(ctx context.Context, t task.Task) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO tasks (id, type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, query,
		t.ID(),
		t.Type(),
		t.Payload(),
		string(t.Status()),
		now,
		now,
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", err)
		return fmt.Errorf("failed to save task: %w", MapError(err))
	}

	return nil
}

// UpdateTaskStatus updates the persisted status and error message of a task.
// An unknown task ID is a no-op, matching the runner's tolerance for tasks
// deleted out from under it.
func (s *TaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status lifecycle.Status,
	errorMsg string,
) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		string(status),
		errorMsg,
		time.Now().UTC(),
		taskID,
	)
	if err != nil {
		log.Error("failed to update task status",
			"task_id", taskID,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to update task status: %w", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		log.Warn("no task found to update status", "task_id", taskID)
	}

	return nil
}

// GetTasksByStatus loads all tasks in the given status, oldest first.
func (s *TaskStore) GetTasksByStatus(
	ctx context.Context,
	status lifecycle.Status,
) ([]task.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, type, payload, status
		FROM tasks
		WHERE status = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		log.Error("failed to query tasks by status",
			"status", status,
			"error", err)
		return nil, fmt.Errorf("failed to query tasks by status: %w", MapError(err))
	}

	return scanTasks(rows)
}

// GetStuckTasks loads in_progress tasks whose last update is older than the
// cutoff, oldest first. These are tasks claimed by a worker that died without
// a process restart cleaning up after it.
func (s *TaskStore) GetStuckTasks(
	ctx context.Context,
	olderThan time.Duration,
) ([]task.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, type, payload, status
		FROM tasks
		WHERE status = $1 AND updated_at < $2
		ORDER BY created_at ASC
	`

	cutoff := time.Now().UTC().Add(-olderThan)

	rows, err := s.db.QueryContext(ctx, query, string(lifecycle.StatusInProgress), cutoff)
	if err != nil {
		log.Error("failed to query stuck tasks",
			"older_than", olderThan,
			"error", err)
		return nil, fmt.Errorf("failed to query stuck tasks: %w", MapError(err))
	}

	return scanTasks(rows)
}

// scanTasks drains a (id, type, payload, status) result set into tasks.
func scanTasks(rows *sql.Rows) ([]task.Task, error) {
	defer func() { _ = rows.Close() }()

	var tasks []task.Task
	for rows.Next() {
		var (
			id         uuid.UUID
			taskType   string
			payload    []byte
			taskStatus string
		)
		if err := rows.Scan(&id, &taskType, &payload, &taskStatus); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}

		parsed, err := lifecycle.Parse(taskStatus)
		if err != nil {
			return nil, fmt.Errorf("task %s has invalid status: %w", id, err)
		}

		tasks = append(tasks, task.Load(id, taskType, payload, parsed))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// WithTx returns a TaskStore bound to the given transaction.
func (s *TaskStore) WithTx(tx *sql.Tx) task.TaskStore {
	return &TaskStore{db: tx}
}

// Ensure TaskStore implements task.TaskStore
var _ task.TaskStore = (*TaskStore)(nil)
