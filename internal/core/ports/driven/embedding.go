package driven

import (
	"context"
)

// EmbeddingService generates text embeddings.
// Failures wrap domain.ErrEmbeddingProvider, plus domain.ErrProviderTimeout
// or domain.ErrProviderAuth when the cause is known.
type EmbeddingService interface {
	// Embed generates embeddings for multiple texts in a single provider call.
	// The result is order-preserving and has the same length as texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a search query
	// May use different model/parameters optimized for queries
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
