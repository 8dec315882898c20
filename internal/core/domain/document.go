package domain

import "time"

// ExtractedDocument is what a text extractor returns for one file.
type ExtractedDocument struct {
	Text        string `json:"text"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	CreatedDate string `json:"created_date"`
	PageCount   int    `json:"page_count"`
}

// Metadata builds passage metadata for the document, falling back to the
// filename for the title and "Unknown" for missing author or date.
func (d *ExtractedDocument) Metadata(documentID, filename string) map[string]string {
	title := d.Title
	if title == "" {
		title = filename
	}
	author := d.Author
	if author == "" {
		author = UnknownValue
	}
	created := d.CreatedDate
	if created == "" {
		created = UnknownValue
	}
	return map[string]string{
		MetaSource:      filename,
		MetaTitle:       title,
		MetaAuthor:      author,
		MetaCreatedDate: created,
		MetaDocumentID:  documentID,
	}
}

// IndexStatus tracks an uploaded document through background indexing.
type IndexStatus string

const (
	IndexStatusProcessing IndexStatus = "processing"
	IndexStatusIndexed    IndexStatus = "indexed"
	IndexStatusEmpty      IndexStatus = "empty"
	IndexStatusFailed     IndexStatus = "failed"
)

// IsTerminal reports whether indexing has finished one way or another.
func (s IndexStatus) IsTerminal() bool {
	return s == IndexStatusIndexed || s == IndexStatusEmpty || s == IndexStatusFailed
}

// IndexResult reports the outcome of indexing one document.
type IndexResult struct {
	DocumentID string      `json:"document_id"`
	ChunkCount int         `json:"chunk_count"`
	Status     IndexStatus `json:"status"`
}

// DocumentRecord is the registry entry for an uploaded document.
type DocumentRecord struct {
	ID         string      `json:"id"`
	Filename   string      `json:"filename"`
	Path       string      `json:"-"`
	MimeType   string      `json:"mime_type"`
	SizeBytes  int64       `json:"size_bytes"`
	Status     IndexStatus `json:"status"`
	ChunkCount int         `json:"chunk_count"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// NewDocumentRecord creates a record in the processing state.
func NewDocumentRecord(filename, path, mimeType string, size int64) *DocumentRecord {
	now := time.Now()
	return &DocumentRecord{
		ID:        NewDocumentID(),
		Filename:  filename,
		Path:      path,
		MimeType:  mimeType,
		SizeBytes: size,
		Status:    IndexStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply copies an indexing result onto the record.
func (r *DocumentRecord) Apply(result *IndexResult) {
	r.Status = result.Status
	r.ChunkCount = result.ChunkCount
	r.Error = ""
	r.UpdatedAt = time.Now()
}

// Fail marks the record as failed with the given reason.
func (r *DocumentRecord) Fail(reason string) {
	r.Status = IndexStatusFailed
	r.Error = reason
	r.UpdatedAt = time.Now()
}
