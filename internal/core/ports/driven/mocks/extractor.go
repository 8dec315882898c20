package mocks

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

var (
	_ driven.TextExtractor     = (*MockExtractor)(nil)
	_ driven.ExtractorRegistry = (*MockExtractorRegistry)(nil)
)

// MockExtractor returns canned documents keyed by path
type MockExtractor struct {
	mu   sync.Mutex
	docs map[string]*domain.ExtractedDocument

	// Default is returned for paths with no canned document
	Default *domain.ExtractedDocument

	// Err is returned by every Extract when set
	Err error

	Exts []string
}

// NewMockExtractor creates an extractor for .pdf and .txt files
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		docs: make(map[string]*domain.ExtractedDocument),
		Exts: []string{".pdf", ".txt"},
	}
}

func (m *MockExtractor) Extract(ctx context.Context, path string) (*domain.ExtractedDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if doc, ok := m.docs[path]; ok {
		cp := *doc
		return &cp, nil
	}
	if m.Default != nil {
		cp := *m.Default
		return &cp, nil
	}
	return &domain.ExtractedDocument{}, nil
}

func (m *MockExtractor) SupportedTypes() []string {
	return []string{"application/pdf", "text/plain"}
}

func (m *MockExtractor) Extensions() []string {
	return m.Exts
}

func (m *MockExtractor) Priority() int {
	return 50
}

// SetDocument sets the document returned for path
func (m *MockExtractor) SetDocument(path string, doc *domain.ExtractedDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = doc
}

// MockExtractorRegistry routes every supported extension to its extractors
type MockExtractorRegistry struct {
	extractors []driven.TextExtractor
}

// NewMockExtractorRegistry creates a registry holding extractors
func NewMockExtractorRegistry(extractors ...driven.TextExtractor) *MockExtractorRegistry {
	return &MockExtractorRegistry{extractors: extractors}
}

func (r *MockExtractorRegistry) Register(extractor driven.TextExtractor) {
	r.extractors = append(r.extractors, extractor)
}

func (r *MockExtractorRegistry) ForFile(filename, mimeType string) driven.TextExtractor {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range r.extractors {
		for _, x := range e.Extensions() {
			if x == ext {
				return e
			}
		}
	}
	return nil
}

func (r *MockExtractorRegistry) Extensions() []string {
	var out []string
	for _, e := range r.extractors {
		out = append(out, e.Extensions()...)
	}
	return out
}
