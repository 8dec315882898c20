package driven

import (
	"context"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

// VectorIndex stores (vector, passage) pairs and answers k-nearest-neighbour
// queries. Search is safe for concurrent callers; Build, Append, Load and
// DeleteDocument take exclusive access to the instance.
type VectorIndex interface {
	// Build embeds all passages with one batched EmbeddingService call and
	// replaces any prior content. On failure the previous content is kept.
	Build(ctx context.Context, passages []domain.Passage) error

	// Append embeds and adds passages with one batched call.
	Append(ctx context.Context, passages []domain.Passage) error

	// DeleteDocument removes every passage whose document_id matches and
	// returns how many were removed.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// Persist writes the full index to path atomically, creating parent
	// directories. Fails with domain.ErrStorage if path cannot be written.
	Persist(ctx context.Context, path string) error

	// Load replaces the content with a persisted index.
	// Fails with domain.ErrNotFound or domain.ErrCorruptIndex.
	Load(ctx context.Context, path string) error

	// Search returns the k highest-scoring passages in descending score
	// order; ties keep insertion order. An empty index yields an empty result.
	Search(ctx context.Context, query []float32, k int) ([]domain.ScoredPassage, error)

	// Len returns the number of stored passages.
	Len() int

	// Passages returns a copy of the stored passages in insertion order.
	Passages() []domain.Passage

	// Built reports whether Build or Load has completed at least once.
	Built() bool

	// Identity returns the provider identity the vectors were produced with.
	Identity() domain.ProviderIdentity

	// Close releases resources held by the index.
	Close() error
}

// VectorIndexFactory creates empty index instances bound to an embedding service.
type VectorIndexFactory interface {
	// NewIndex returns an empty, unbuilt index
	NewIndex(embedder EmbeddingService) (VectorIndex, error)

	// Backend names the implementation, e.g. "flat" or "qdrant"
	Backend() string
}
