package domain

import "testing"

func TestExtractedDocument_Metadata(t *testing.T) {
	doc := &ExtractedDocument{Text: "body"}
	meta := doc.Metadata("doc-1", "policy.pdf")

	if meta[MetaSource] != "policy.pdf" {
		t.Errorf("expected source policy.pdf, got %s", meta[MetaSource])
	}
	if meta[MetaTitle] != "policy.pdf" {
		t.Errorf("expected title fallback to filename, got %s", meta[MetaTitle])
	}
	if meta[MetaAuthor] != "Unknown" || meta[MetaCreatedDate] != "Unknown" {
		t.Errorf("expected Unknown fallbacks, got %+v", meta)
	}
	if meta[MetaDocumentID] != "doc-1" {
		t.Errorf("expected document id, got %s", meta[MetaDocumentID])
	}
}

func TestDocumentRecord_Transitions(t *testing.T) {
	r := NewDocumentRecord("a.pdf", "/tmp/a.pdf", "application/pdf", 10)
	if r.Status != IndexStatusProcessing || r.Status.IsTerminal() {
		t.Fatalf("new record should be processing, got %s", r.Status)
	}

	r.Apply(&IndexResult{DocumentID: r.ID, ChunkCount: 4, Status: IndexStatusIndexed})
	if r.Status != IndexStatusIndexed || r.ChunkCount != 4 {
		t.Errorf("unexpected record after apply: %+v", r)
	}

	r.Fail("boom")
	if r.Status != IndexStatusFailed || r.Error != "boom" || !r.Status.IsTerminal() {
		t.Errorf("unexpected record after fail: %+v", r)
	}
}
