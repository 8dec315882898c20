package extractors

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

var _ driven.TextExtractor = (*PDFExtractor)(nil)

// PDFExtractor reads text and the Info dictionary from PDF files.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (doc *domain.ExtractedDocument, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %s: malformed pdf: %v", domain.ErrExtraction, filepath.Base(path), r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrExtraction, filepath.Base(path), err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrExtraction, filepath.Base(path), err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrExtraction, filepath.Base(path), err)
	}

	info := r.Trailer().Key("Info")
	return &domain.ExtractedDocument{
		Text:        Clean(buf.String()),
		Title:       infoText(info, "Title"),
		Author:      infoText(info, "Author"),
		CreatedDate: infoText(info, "CreationDate"),
		PageCount:   r.NumPage(),
	}, nil
}

func (e *PDFExtractor) SupportedTypes() []string {
	return []string{"application/pdf"}
}

func (e *PDFExtractor) Extensions() []string {
	return []string{".pdf"}
}

// Priority returns 100 - the primary document type.
func (e *PDFExtractor) Priority() int {
	return 100
}

func infoText(info pdf.Value, key string) string {
	if info.IsNull() {
		return ""
	}
	return strings.TrimSpace(info.Key(key).Text())
}
