package gemini

import "errors"

// Common errors returned by the gemini package
var (
	// ErrInvalidConfig is returned when the client configuration is invalid
	ErrInvalidConfig = errors.New("invalid gemini client configuration")

	// ErrEmptyPrompt is returned when GenerateText is called with no prompt
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrInvalidResponse is returned when the model response is missing or malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the content on safety grounds
	ErrContentBlocked = errors.New("content blocked by language model safety filters")
)
