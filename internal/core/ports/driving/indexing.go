package driving

import (
	"context"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

// IndexingService turns documents into searchable passages
type IndexingService interface {
	// IndexFile extracts, chunks, embeds and persists a stored upload.
	// The upload is removed from the file store if indexing fails.
	IndexFile(ctx context.Context, documentID, path, filename string) (*domain.IndexResult, error)

	// IndexText chunks, embeds and persists already extracted text
	IndexText(ctx context.Context, documentID, text string, metadata map[string]string) (*domain.IndexResult, error)

	// Reload replaces the live index with the persisted bundle
	Reload(ctx context.Context) error
}
