package driven

import (
	"context"
)

// LLMService generates grounded completions.
// Failures wrap domain.ErrGeneration, plus domain.ErrProviderTimeout or
// domain.ErrProviderAuth when the cause is known.
type LLMService interface {
	// Complete returns the model's answer to userPrompt under the given
	// system instruction.
	Complete(ctx context.Context, systemInstruction, userPrompt string) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
