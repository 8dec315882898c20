package extractors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

var (
	_ driven.TextExtractor = (*PlaintextExtractor)(nil)
	_ driven.TextExtractor = (*MarkdownExtractor)(nil)
)

// PlaintextExtractor handles plain text files.
type PlaintextExtractor struct{}

// NewPlaintextExtractor creates a plain text extractor.
func NewPlaintextExtractor() *PlaintextExtractor {
	return &PlaintextExtractor{}
}

func (e *PlaintextExtractor) Extract(ctx context.Context, path string) (*domain.ExtractedDocument, error) {
	text, err := readText(ctx, path)
	if err != nil {
		return nil, err
	}
	return &domain.ExtractedDocument{Text: Clean(text), PageCount: 1}, nil
}

func (e *PlaintextExtractor) SupportedTypes() []string {
	return []string{"text/plain"}
}

func (e *PlaintextExtractor) Extensions() []string {
	return []string{".txt"}
}

// Priority returns 10 - fallback for text/*.
func (e *PlaintextExtractor) Priority() int {
	return 10
}

// MarkdownExtractor handles Markdown files. A leading "# " heading is used
// as the title.
type MarkdownExtractor struct{}

// NewMarkdownExtractor creates a Markdown extractor.
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{}
}

func (e *MarkdownExtractor) Extract(ctx context.Context, path string) (*domain.ExtractedDocument, error) {
	text, err := readText(ctx, path)
	if err != nil {
		return nil, err
	}
	text = Clean(text)

	doc := &domain.ExtractedDocument{Text: text, PageCount: 1}
	first, _, _ := strings.Cut(text, "\n")
	if title, ok := strings.CutPrefix(first, "# "); ok {
		doc.Title = strings.TrimSpace(title)
	}
	return doc, nil
}

func (e *MarkdownExtractor) SupportedTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (e *MarkdownExtractor) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Priority returns 50 - format-specific.
func (e *MarkdownExtractor) Priority() int {
	return 50
}

func readText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", domain.ErrExtraction, filepath.Base(path), err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8 text", domain.ErrExtraction, filepath.Base(path))
	}
	return string(data), nil
}
