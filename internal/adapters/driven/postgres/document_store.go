package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

const documentColumns = `id, filename, path, mime_type, size_bytes, status, chunk_count, error, created_at, updated_at`

// Save creates or updates a document record
func (s *DocumentStore) Save(ctx context.Context, doc *domain.DocumentRecord) error {
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			path = EXCLUDED.path,
			mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes,
			status = EXCLUDED.status,
			chunk_count = EXCLUDED.chunk_count,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.Filename,
		doc.Path,
		doc.MimeType,
		doc.SizeBytes,
		string(doc.Status),
		doc.ChunkCount,
		doc.Error,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: save document %s: %v", domain.ErrStorage, doc.ID, err)
	}
	return nil
}

// Get retrieves a document record by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get document %s: %v", domain.ErrStorage, id, err)
	}
	return doc, nil
}

// List retrieves records, newest first
func (s *DocumentStore) List(ctx context.Context, limit, offset int) ([]*domain.DocumentRecord, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	docs := []*domain.DocumentRecord{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan document: %v", domain.ErrStorage, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", domain.ErrStorage, err)
	}
	return docs, nil
}

// Delete deletes a document record
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete document %s: %v", domain.ErrStorage, id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Count returns total document count
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count documents: %v", domain.ErrStorage, err)
	}
	return count, nil
}

// Ping checks if the database is reachable
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.DocumentRecord, error) {
	var doc domain.DocumentRecord
	var status string
	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.Path,
		&doc.MimeType,
		&doc.SizeBytes,
		&status,
		&doc.ChunkCount,
		&doc.Error,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.IndexStatus(status)
	return &doc, nil
}
