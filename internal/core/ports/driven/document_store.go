package driven

import (
	"context"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

// DocumentStore is the registry of uploaded documents and their indexing
// status (SQLite or PostgreSQL).
type DocumentStore interface {
	// Save creates or updates a document record
	Save(ctx context.Context, doc *domain.DocumentRecord) error

	// Get retrieves a document record by ID
	// Returns domain.ErrNotFound if it does not exist
	Get(ctx context.Context, id string) (*domain.DocumentRecord, error)

	// List retrieves records, newest first, with pagination
	List(ctx context.Context, limit, offset int) ([]*domain.DocumentRecord, error)

	// Delete deletes a document record
	Delete(ctx context.Context, id string) error

	// Count returns total document count
	Count(ctx context.Context) (int, error)

	// Ping checks if the store backend is healthy.
	Ping(ctx context.Context) error
}
