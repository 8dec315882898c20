package driving

import (
	"context"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

// QuestionService answers questions from indexed documents
type QuestionService interface {
	// Ask retrieves up to topK passages and generates an answer grounded in them.
	// topK <= 0 selects the default. Returns domain.ErrInvalidQuery for a bad
	// query and domain.ErrUninitializedIndex when nothing has been indexed.
	Ask(ctx context.Context, query string, topK int) (*domain.Answer, error)

	// SystemPrompt returns the instruction currently sent to the language model
	SystemPrompt() string

	// SetSystemPrompt replaces the instruction. Empty prompts are rejected
	// with domain.ErrConfiguration.
	SetSystemPrompt(prompt string) error
}
