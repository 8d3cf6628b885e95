package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerworks/taskengine/internal/events"
)

// setupRouter configures the operational HTTP endpoints: health, breaker
// inspection, and task submission via the event emitter.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", app.handleHealth)
	r.Get("/breakers/{name}", app.handleGetBreaker)
	r.Post("/tasks", app.handleSubmitTask)

	return r
}

func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := app.db.PingContext(ctx); err != nil {
		app.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
		return
	}
	app.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetBreaker reports the current persisted state of a named breaker.
func (app *application) handleGetBreaker(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	b, ok := app.breakers[name]
	if !ok {
		app.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown breaker",
		})
		return
	}

	rec, err := b.Snapshot(r.Context())
	if err != nil {
		app.logger.Error("failed to read breaker snapshot", "breaker", name, "error", err)
		app.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to read breaker state",
		})
		return
	}

	resp := map[string]interface{}{
		"name":                name,
		"state":               rec.State,
		"failure_count":       rec.FailureCount,
		"half_open_successes": rec.HalfOpenSuccesses,
	}
	if !rec.OpenedAt.IsZero() {
		resp["opened_at"] = rec.OpenedAt.Format(time.RFC3339)
	}
	app.writeJSON(w, http.StatusOK, resp)
}

// handleSubmitTask accepts a task request and routes it through the event
// emitter, the same path in-process producers use.
func (app *application) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		app.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
		return
	}

	event, err := events.NewTaskRequestEvent(req.Type, req.Payload)
	if err != nil {
		app.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := app.eventEmitter.EmitEvent(r.Context(), event); err != nil {
		app.logger.Error("failed to emit task request event",
			"event_id", event.ID,
			"error", err)
		app.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to submit task",
		})
		return
	}

	app.writeJSON(w, http.StatusAccepted, map[string]string{
		"event_id": event.ID.String(),
	})
}

func (app *application) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		app.logger.Error("failed to encode response", "error", err)
	}
}
