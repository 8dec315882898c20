// Package sqlite keeps the document registry in an embedded SQLite file,
// the default for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id          TEXT PRIMARY KEY,
    filename    TEXT NOT NULL,
    path        TEXT NOT NULL DEFAULT '',
    mime_type   TEXT NOT NULL DEFAULT '',
    size_bytes  INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at DESC);
`

const documentColumns = `id, filename, path, mime_type, size_bytes, status, chunk_count, error, created_at, updated_at`

// DocumentStore implements driven.DocumentStore on SQLite.
type DocumentStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*DocumentStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", domain.ErrStorage, filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", domain.ErrStorage, err)
	}
	// One writer at a time; this also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{`PRAGMA busy_timeout = 5000`, `PRAGMA journal_mode = WAL`, schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: initialize sqlite: %v", domain.ErrStorage, err)
		}
	}

	return &DocumentStore{db: db}, nil
}

// Save creates or updates a document record
func (s *DocumentStore) Save(ctx context.Context, doc *domain.DocumentRecord) error {
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			filename = excluded.filename,
			path = excluded.path,
			mime_type = excluded.mime_type,
			size_bytes = excluded.size_bytes,
			status = excluded.status,
			chunk_count = excluded.chunk_count,
			error = excluded.error,
			updated_at = excluded.updated_at
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
		doc.CreatedAt.UnixNano(),
		doc.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: save document %s: %v", domain.ErrStorage, doc.ID, err)
	}
	return nil
}

// Get retrieves a document record by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset)
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
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
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

// Ping checks the database handle is usable
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.DocumentRecord, error) {
	var doc domain.DocumentRecord
	var status string
	var created, updated int64
	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.Path,
		&doc.MimeType,
		&doc.SizeBytes,
		&status,
		&doc.ChunkCount,
		&doc.Error,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.IndexStatus(status)
	doc.CreatedAt = time.Unix(0, created)
	doc.UpdatedAt = time.Unix(0, updated)
	return &doc, nil
}
