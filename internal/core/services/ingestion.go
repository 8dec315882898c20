package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driving"
)

// Ensure ingestionService implements IngestionService
var _ driving.IngestionService = (*ingestionService)(nil)

// DefaultMaxUploadBytes caps an upload at 25 MiB.
const DefaultMaxUploadBytes int64 = 25 << 20

// ingestionService implements the IngestionService interface
type ingestionService struct {
	extractors driven.ExtractorRegistry
	files      driven.FileStore
	documents  driven.DocumentStore
	taskQueue  driven.TaskQueue
	maxBytes   int64
	logger     *slog.Logger
}

// IngestionConfig holds configuration for the ingestion service.
type IngestionConfig struct {
	Extractors driven.ExtractorRegistry
	Files      driven.FileStore
	Documents  driven.DocumentStore
	TaskQueue  driven.TaskQueue
	MaxBytes   int64 // default: 25 MiB
	Logger     *slog.Logger
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(cfg IngestionConfig) driving.IngestionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &ingestionService{
		extractors: cfg.Extractors,
		files:      cfg.Files,
		documents:  cfg.Documents,
		taskQueue:  cfg.TaskQueue,
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// Submit stores the upload, records it and enqueues indexing.
// If any step fails, the earlier steps are undone.
func (s *ingestionService) Submit(ctx context.Context, filename, mimeType string, r io.Reader) (*domain.DocumentRecord, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidUpload)
	}
	if s.extractors.ForFile(name, mimeType) == nil {
		return nil, fmt.Errorf("%w: %s (supported: %s)", domain.ErrUnsupportedMediaType, name,
			strings.Join(s.extractors.Extensions(), ", "))
	}

	path, size, err := s.files.Save(ctx, name, r, s.maxBytes)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		_ = s.files.Remove(ctx, path)
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrInvalidUpload, name)
	}

	record := domain.NewDocumentRecord(name, path, mimeType, size)
	if err := s.documents.Save(ctx, record); err != nil {
		_ = s.files.Remove(ctx, path)
		return nil, err
	}

	task := domain.NewIndexDocumentTask(record)
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		_ = s.documents.Delete(ctx, record.ID)
		_ = s.files.Remove(ctx, path)
		s.logger.Error("failed to enqueue indexing", "document_id", record.ID, "error", err)
		return nil, fmt.Errorf("enqueue indexing: %w", err)
	}

	s.logger.Info("upload accepted",
		"document_id", record.ID,
		"filename", name,
		"size_bytes", size,
		"task_id", task.ID,
	)
	return record, nil
}

// Get retrieves a document record by ID
func (s *ingestionService) Get(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	return s.documents.Get(ctx, id)
}

// List retrieves document records, newest first
func (s *ingestionService) List(ctx context.Context, limit, offset int) ([]*domain.DocumentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return s.documents.List(ctx, limit, offset)
}

// Extensions lists the accepted file extensions
func (s *ingestionService) Extensions() []string {
	return s.extractors.Extensions()
}
