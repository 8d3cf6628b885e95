package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerworks/taskengine/internal/breaker"
	"github.com/ledgerworks/taskengine/internal/config"
	"github.com/ledgerworks/taskengine/internal/dispatch"
	"github.com/ledgerworks/taskengine/internal/events"
	"github.com/ledgerworks/taskengine/internal/platform/postgres"
	"github.com/ledgerworks/taskengine/internal/task"
)

// application holds the shared application dependencies so wiring and
// cleanup live in one place.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore    task.TaskStore
	breakerStore breaker.StateStore
	dispatcher   *dispatch.Dispatcher
	eventEmitter events.Emitter
	runner       *task.Runner

	// breakers indexes the process's circuit breakers by resource name for
	// the operational endpoints.
	breakers map[string]*breaker.Breaker
}

// newApplication wires all dependencies and starts the task runner. Handlers
// are registered before the runner starts so recovered tasks find their
// handlers on the first dispatch.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config:       cfg,
		logger:       logger,
		db:           db,
		taskStore:    postgres.NewTaskStore(db),
		breakerStore: postgres.NewBreakerStore(db),
		dispatcher:   dispatch.NewDispatcher(logger),
		breakers:     make(map[string]*breaker.Breaker),
	}

	if err := registerLLMHandlers(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to register LLM handlers: %w", err)
	}

	app.runner = task.NewRunner(db, app.taskStore, app.dispatcher, task.RunnerConfig{
		WorkerCount: cfg.Worker.Count,
		QueueSize:   cfg.Worker.QueueSize,
	}, logger)

	if err := app.runner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	emitter := events.NewInMemoryEmitter(logger)
	emitter.RegisterHandler(task.NewSubmitEventHandler(app.runner, logger))
	app.eventEmitter = emitter

	logger.Info("Application initialized",
		"registered_task_types", app.dispatcher.RegisteredTypes())
	return app, nil
}

// newBreaker constructs a named circuit breaker on the shared state store
// with the configured thresholds, and indexes it for the ops endpoints.
func (app *application) newBreaker(name string) *breaker.Breaker {
	b := breaker.New(name, breaker.Settings{
		FailureThreshold: app.config.Breaker.FailureThreshold,
		RecoveryTimeout:  time.Duration(app.config.Breaker.RecoveryTimeoutSeconds) * time.Second,
		SuccessThreshold: app.config.Breaker.SuccessThreshold,
	}, app.breakerStore, app.logger)

	app.breakers[name] = b
	return b
}

// Run serves the operational HTTP endpoints until shutdown.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}
}
