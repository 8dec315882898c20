package flatindex

import (
	"fmt"
	"log/slog"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Ensure Factory implements VectorIndexFactory
var _ driven.VectorIndexFactory = (*Factory)(nil)

// Factory creates flat indexes tagged with the configured provider name.
type Factory struct {
	provider string
	logger   *slog.Logger
}

// NewFactory creates a flat index factory
func NewFactory(provider string, logger *slog.Logger) *Factory {
	return &Factory{provider: provider, logger: logger}
}

// NewIndex returns an empty index bound to embedder.
func (f *Factory) NewIndex(embedder driven.EmbeddingService) (driven.VectorIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: an embedding service is required", domain.ErrConfiguration)
	}
	return New(embedder, f.provider, f.logger), nil
}

// Backend returns "flat"
func (f *Factory) Backend() string {
	return Backend
}
