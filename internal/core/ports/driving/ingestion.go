package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

// IngestionService accepts uploads and hands them to background indexing
type IngestionService interface {
	// Submit stores an upload, records it and enqueues indexing.
	// Returns immediately with a record in the processing state.
	Submit(ctx context.Context, filename, mimeType string, r io.Reader) (*domain.DocumentRecord, error)

	// Get returns a document record by ID
	Get(ctx context.Context, id string) (*domain.DocumentRecord, error)

	// List returns document records, newest first
	List(ctx context.Context, limit, offset int) ([]*domain.DocumentRecord, error)

	// Extensions lists the accepted file extensions
	Extensions() []string
}
