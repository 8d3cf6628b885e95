package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgerworks/taskengine/internal/dispatch"
	"github.com/ledgerworks/taskengine/internal/platform/gemini"
	"github.com/ledgerworks/taskengine/internal/task"
)

// documentExtractionPayload is the payload schema for document_extraction
// tasks.
type documentExtractionPayload struct {
	Prompt string `json:"prompt"`
}

// registerLLMHandlers wires the Gemini-backed document_extraction handler
// behind the llm_api circuit breaker. Without an API key the handler is
// skipped and document_extraction tasks fail with an unregistered-handler
// error.
func registerLLMHandlers(ctx context.Context, app *application) error {
	if app.config.LLM.GeminiAPIKey == "" {
		app.logger.Info("no Gemini API key configured, skipping LLM handler registration")
		return nil
	}

	client, err := gemini.NewClient(ctx, app.logger, app.config.LLM)
	if err != nil {
		return fmt.Errorf("failed to create gemini client: %w", err)
	}

	llmBreaker := app.newBreaker("llm_api")
	log := app.logger.With("component", "document_extraction_handler")

	handler := func(ctx context.Context, t dispatch.Task) error {
		var payload documentExtractionPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid document_extraction payload: %w", err)
		}
		if payload.Prompt == "" {
			return errors.New("document_extraction payload has no prompt")
		}

		var text string
		err := llmBreaker.Call(ctx, func(ctx context.Context) error {
			out, err := client.GenerateText(ctx, payload.Prompt)
			if err != nil {
				return err
			}
			text = out
			return nil
		})
		if err != nil {
			// Safety blocks are a judgment call, not an outage.
			if errors.Is(err, gemini.ErrContentBlocked) {
				return fmt.Errorf("%w: %v", task.ErrEscalate, err)
			}
			return err
		}

		log.Info("document extraction completed",
			"task_id", t.ID(),
			"response_length", len(text))
		return nil
	}

	if err := app.dispatcher.Register("document_extraction", handler); err != nil {
		return fmt.Errorf("failed to register document_extraction handler: %w", err)
	}
	return nil
}
