// Package extractors turns uploaded files into plain text for chunking.
package extractors

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry implements ExtractorRegistry with priority-based selection.
// When multiple extractors match a file, the highest priority one is used.
type Registry struct {
	mu         sync.RWMutex
	extractors []driven.TextExtractor
}

// NewRegistry creates a new extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make([]driven.TextExtractor, 0),
	}
}

// Register registers an extractor.
func (r *Registry) Register(extractor driven.TextExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.extractors = append(r.extractors, extractor)
}

// ForFile returns the best extractor for a file. The extension is checked
// first; the MIME type is only consulted when the extension is unknown.
// Returns nil if nothing matches.
func (r *Registry) ForFile(filename, mimeType string) driven.TextExtractor {
	matches := r.GetAll(filename, mimeType)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// GetAll returns every extractor matching the file, highest priority first.
func (r *Registry) GetAll(filename, mimeType string) []driven.TextExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext := strings.ToLower(filepath.Ext(filename))

	var matches []driven.TextExtractor
	for _, e := range r.extractors {
		if ext != "" && matchesExtension(e.Extensions(), ext) {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 && mimeType != "" {
		for _, e := range r.extractors {
			if matchesMIMEType(e.SupportedTypes(), mimeType) {
				matches = append(matches, e)
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Priority() > matches[j].Priority()
	})
	return matches
}

// Extensions returns all registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := make(map[string]struct{})
	for _, e := range r.extractors {
		for _, x := range e.Extensions() {
			set[strings.ToLower(x)] = struct{}{}
		}
	}

	exts := make([]string, 0, len(set))
	for x := range set {
		exts = append(exts, x)
	}
	sort.Strings(exts)
	return exts
}

func matchesExtension(supported []string, ext string) bool {
	for _, s := range supported {
		if strings.ToLower(s) == ext {
			return true
		}
	}
	return false
}

// matchesMIMEType checks if any of the supported types match the given MIME type.
// Supports wildcard matching (e.g., "text/*" matches "text/plain").
func matchesMIMEType(supportedTypes []string, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	// Strip charset and other parameters
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	for _, supported := range supportedTypes {
		supported = strings.ToLower(strings.TrimSpace(supported))

		if supported == mimeType {
			return true
		}
		if strings.HasSuffix(supported, "/*") {
			prefix := supported[:len(supported)-1]
			if strings.HasPrefix(mimeType, prefix) {
				return true
			}
		}
	}

	return false
}

// DefaultRegistry creates a registry with the built-in extractors.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(NewPDFExtractor())
	r.Register(NewPlaintextExtractor())
	r.Register(NewMarkdownExtractor())

	return r
}
