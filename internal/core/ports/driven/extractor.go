package driven

import (
	"context"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

// TextExtractor turns a stored document into plain text plus metadata.
// Failures wrap domain.ErrExtraction.
type TextExtractor interface {
	// Extract reads the file at path
	Extract(ctx context.Context, path string) (*domain.ExtractedDocument, error)

	// SupportedTypes returns MIME types this extractor handles
	SupportedTypes() []string

	// Extensions returns file extensions (with dot) this extractor handles
	Extensions() []string

	// Priority breaks ties when several extractors match (higher wins)
	Priority() int
}

// ExtractorRegistry selects a TextExtractor for an upload.
type ExtractorRegistry interface {
	// Register adds an extractor
	Register(extractor TextExtractor)

	// ForFile returns the best extractor for a filename and optional MIME
	// type, or nil if none matches.
	ForFile(filename, mimeType string) TextExtractor

	// Extensions lists every supported extension
	Extensions() []string
}
