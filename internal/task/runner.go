package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerworks/taskengine/internal/dispatch"
	"github.com/ledgerworks/taskengine/internal/lifecycle"
	"github.com/ledgerworks/taskengine/internal/platform/logger"
	"github.com/ledgerworks/taskengine/internal/redact"
	"github.com/ledgerworks/taskengine/internal/store"
)

// RunnerConfig holds configuration for the task runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// StuckTaskAge defines how long a task may sit in_progress before the
	// monitor considers it abandoned and resets it
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	StuckTaskCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// Runner manages background task processing. Each claimed task is walked
// through its lifecycle (pending -> assigned -> in_progress) before the
// dispatcher invokes the registered handler, and to completed, failed, or
// escalated depending on the handler's outcome. The runner decides outcome
// mapping; the dispatcher stays a pure router.
type Runner struct {
	db         *sql.DB
	store      TaskStore
	dispatcher *dispatch.Dispatcher
	queue      *Queue
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewRunner creates a new Runner on the given store and dispatcher. db may be
// nil when the store is not database-backed; recovery then persists each
// lifecycle step separately instead of inside one transaction.
func NewRunner(
	db *sql.DB,
	store TaskStore,
	dispatcher *dispatch.Dispatcher,
	config RunnerConfig,
	logger *slog.Logger,
) *Runner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultRunnerConfig().WorkerCount
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultRunnerConfig().QueueSize
	}
	if config.StuckTaskAge <= 0 {
		config.StuckTaskAge = DefaultRunnerConfig().StuckTaskAge
	}
	if config.StuckTaskCheckInterval <= 0 {
		config.StuckTaskCheckInterval = DefaultRunnerConfig().StuckTaskCheckInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		db:         db,
		store:      store,
		dispatcher: dispatcher,
		queue:      NewQueue(config.QueueSize, logger),
		ctx:        ctx,
		cancelFunc: cancel,
		wg:         sync.WaitGroup{},
		config:     config,
		logger:     logger.With("component", "task_runner"),
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler invoked whenever a
// task ends in failed or escalated.
func (r *Runner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit persists a new task and adds it to the queue.
func (r *Runner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Retry re-queues a failed task for another attempt from the top. It is the
// only path out of the failed status. The runner does not count attempts;
// enforcing a retry budget is deliberately left to the caller.
func (r *Runner) Retry(ctx context.Context, task Task) error {
	if err := lifecycle.Transition(task, lifecycle.StatusPending); err != nil {
		return err
	}
	if err := r.store.UpdateTaskStatus(ctx, task.ID(), lifecycle.StatusPending, "requeued for retry"); err != nil {
		return fmt.Errorf("failed to persist retry: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		return fmt.Errorf("failed to enqueue retried task: %w", err)
	}

	r.logger.Info("task requeued for retry",
		"task_id", task.ID(),
		"task_type", task.Type())
	return nil
}

// Start recovers unfinished tasks and begins processing with the configured
// number of workers.
func (r *Runner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the task runner, waiting for in-flight tasks.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.queue.Close()
}

// Recover reloads tasks left unfinished by a previous process. Pending and
// assigned tasks are simply requeued. Tasks caught in_progress by a crash are
// moved through failed back to pending before requeueing, so a retry always
// restarts from the top rather than resuming partially done work.
func (r *Runner) Recover() error {
	ctx := context.Background()

	pending, err := r.store.GetTasksByStatus(ctx, lifecycle.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	assigned, err := r.store.GetTasksByStatus(ctx, lifecycle.StatusAssigned)
	if err != nil {
		return fmt.Errorf("failed to get assigned tasks: %w", err)
	}

	inProgress, err := r.store.GetTasksByStatus(ctx, lifecycle.StatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to get in_progress tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pending),
		"assigned_count", len(assigned),
		"in_progress_count", len(inProgress))

	for _, t := range append(pending, assigned...) {
		r.requeueRecovered(t)
	}

	for _, t := range inProgress {
		if err := r.resetInProgress(ctx, t, "interrupted by restart", "requeued after restart"); err != nil {
			r.logger.Error("failed to requeue interrupted task",
				"task_id", t.ID(),
				"task_type", t.Type(),
				"error", err)
			continue
		}
		r.requeueRecovered(t)
	}

	return nil
}

// resetInProgress routes an in_progress task through failed back to pending,
// so a retry always restarts from the top. When a database handle is
// available both persisted steps commit in one transaction; a crash between
// them can otherwise leave the task parked in failed.
func (r *Runner) resetInProgress(ctx context.Context, t Task, failMsg, requeueMsg string) error {
	if r.db == nil {
		if err := r.transition(ctx, t, lifecycle.StatusFailed, failMsg); err != nil {
			return err
		}
		return r.transition(ctx, t, lifecycle.StatusPending, requeueMsg)
	}

	return store.RunInTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := r.store.WithTx(tx)
		if err := transitionOn(ctx, txStore, t, lifecycle.StatusFailed, failMsg); err != nil {
			return err
		}
		return transitionOn(ctx, txStore, t, lifecycle.StatusPending, requeueMsg)
	})
}

// stuckTaskMonitor periodically resets tasks that have sat in_progress longer
// than the configured age, such as tasks claimed by a peer worker that died
// without this process restarting.
func (r *Runner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.recoverStuckTasks()
		}
	}
}

func (r *Runner) recoverStuckTasks() {
	ctx := context.Background()

	stuck, err := r.store.GetStuckTasks(ctx, r.config.StuckTaskAge)
	if err != nil {
		r.logger.Error("failed to check for stuck tasks", "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	r.logger.Info("found stuck tasks", "count", len(stuck))

	for _, t := range stuck {
		if err := r.resetInProgress(ctx, t, "stalled in progress", "requeued after stall"); err != nil {
			r.logger.Error("failed to reset stuck task",
				"task_id", t.ID(),
				"task_type", t.Type(),
				"error", err)
			continue
		}
		r.requeueRecovered(t)
	}
}

func (r *Runner) requeueRecovered(t Task) {
	if err := r.queue.Enqueue(t); err != nil {
		r.logger.Error("failed to requeue recovered task",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", err)
	}
}

// worker processes tasks from the queue
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case t, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}
			r.processTask(t, id)
		}
	}
}

// processTask walks a single task through its lifecycle around one dispatch.
func (r *Runner) processTask(t Task, workerID int) {
	log := r.logger.With(
		"task_id", t.ID(),
		"task_type", t.Type(),
		"worker_id", workerID,
	)

	// Handlers and stores pick the task-scoped logger back up via
	// logger.FromContext.
	ctx := logger.WithLogger(context.Background(), log)

	// Claim the task. Recovered tasks may already be assigned.
	if t.Status() == lifecycle.StatusPending {
		if err := r.transition(ctx, t, lifecycle.StatusAssigned, ""); err != nil {
			log.Error("failed to claim task", "error", err)
			return
		}
	}

	if err := r.transition(ctx, t, lifecycle.StatusInProgress, ""); err != nil {
		log.Error("failed to start task", "error", err)
		return
	}

	log.Info("processing task")

	err := r.dispatcher.Dispatch(ctx, t)

	switch {
	case err == nil:
		log.Info("task completed successfully")
		if txErr := r.transition(ctx, t, lifecycle.StatusCompleted, ""); txErr != nil {
			log.Error("failed to mark task completed", "error", txErr)
		}

	case errors.Is(err, ErrEscalate):
		log.Warn("task escalated for human attention", "error", err)
		if txErr := r.transition(ctx, t, lifecycle.StatusEscalated, redact.Error(err)); txErr != nil {
			log.Error("failed to mark task escalated", "error", txErr)
		}
		r.errHandler(t, err)

	default:
		log.Error("task execution failed", "error", err)
		if txErr := r.transition(ctx, t, lifecycle.StatusFailed, redact.Error(err)); txErr != nil {
			log.Error("failed to mark task failed", "error", txErr)
		}
		r.errHandler(t, err)
	}
}

// transition applies a lifecycle transition to the in-memory task and
// persists the new status in the same logical step.
func (r *Runner) transition(ctx context.Context, t Task, target lifecycle.Status, errorMsg string) error {
	return transitionOn(ctx, r.store, t, target, errorMsg)
}

// transitionOn is transition against an explicit store, so recovery can run
// the persistence half inside a transaction-scoped store.
func transitionOn(ctx context.Context, ts TaskStore, t Task, target lifecycle.Status, errorMsg string) error {
	if err := lifecycle.Transition(t, target); err != nil {
		return err
	}
	if err := ts.UpdateTaskStatus(ctx, t.ID(), target, errorMsg); err != nil {
		return fmt.Errorf("failed to persist status %q: %w", target, err)
	}
	return nil
}
