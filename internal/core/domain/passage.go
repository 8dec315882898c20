package domain

import "strings"

// Metadata keys carried by every Passage.
const (
	MetaSource      = "source"
	MetaSection     = "section"
	MetaTitle       = "title"
	MetaAuthor      = "author"
	MetaCreatedDate = "created_date"
	MetaChunkID     = "chunk_id"
	MetaDocumentID  = "document_id"
)

const (
	// DefaultSection tags text that appears before any heading
	DefaultSection = "GENERAL"

	// UnknownSource and UnknownSection are reported in answer attribution
	// when a retrieved passage is missing the metadata.
	UnknownSource  = "Unknown"
	UnknownSection = "General"

	// UnknownValue fills extraction metadata the document did not provide
	UnknownValue = "Unknown"
)

// Passage is the atomic retrievable unit: a piece of document text and
// the metadata describing where it came from.
type Passage struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// NewPassage creates a passage with a private copy of metadata.
func NewPassage(text string, metadata map[string]string) Passage {
	return Passage{
		Text:     text,
		Metadata: CopyMetadata(metadata),
	}
}

// Source returns the originating document identifier, or "Unknown".
func (p Passage) Source() string {
	if v := strings.TrimSpace(p.Metadata[MetaSource]); v != "" {
		return v
	}
	return UnknownSource
}

// Section returns the logical heading the passage belongs to, or "General".
func (p Passage) Section() string {
	if v := strings.TrimSpace(p.Metadata[MetaSection]); v != "" {
		return v
	}
	return UnknownSection
}

// ChunkID returns the identifier assigned at chunk time (may be empty).
func (p Passage) ChunkID() string {
	return p.Metadata[MetaChunkID]
}

// DocumentID returns the document the passage was indexed under (may be empty).
func (p Passage) DocumentID() string {
	return p.Metadata[MetaDocumentID]
}

// Clone returns a deep copy of the passage.
func (p Passage) Clone() Passage {
	return NewPassage(p.Text, p.Metadata)
}

// IsEmpty reports whether the passage has no content after trimming.
func (p Passage) IsEmpty() bool {
	return strings.TrimSpace(p.Text) == ""
}

// CopyMetadata returns a copy of m. A nil map yields an empty, non-nil map.
func CopyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ScoredPassage is one entry of a retrieval result.
type ScoredPassage struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`
}

// Passages strips scores from a retrieval result, keeping order.
func Passages(results []ScoredPassage) []Passage {
	out := make([]Passage, len(results))
	for i, r := range results {
		out[i] = r.Passage
	}
	return out
}
