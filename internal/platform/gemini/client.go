package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/ledgerworks/taskengine/internal/config"
)

// Client is a thin text-generation client over the Gemini API.
type Client struct {
	logger *slog.Logger
	client *genai.Client
	model  string
}

// NewClient creates a Client from the LLM configuration.
func NewClient(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gemini client: %v", ErrInvalidConfig, err)
	}

	return &Client{
		logger: logger.With("component", "gemini_client"),
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// GenerateText sends the prompt to the model and returns the concatenated
// text of the first candidate.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	c.logger.DebugContext(ctx, "calling gemini API",
		"model", c.model,
		"prompt_length", len(prompt))

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return "", err
	}

	c.logger.DebugContext(ctx, "gemini API call succeeded",
		"model", c.model,
		"response_length", len(text))
	return text, nil
}

// extractText pulls the concatenated text of the first candidate out of a
// generation response, distinguishing safety blocks from malformed responses.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	switch {
	case resp == nil:
		return "", fmt.Errorf("%w: nil response", ErrInvalidResponse)
	case len(resp.Candidates) == 0:
		return "", fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return "", fmt.Errorf("%w: finish reason safety", ErrContentBlocked)
	case resp.Candidates[0].Content == nil:
		return "", fmt.Errorf("%w: empty content in response", ErrInvalidResponse)
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text += part.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("%w: no text parts in response", ErrInvalidResponse)
	}
	return text, nil
}
