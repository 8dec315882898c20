package domain

import "testing"

func TestPassage_SourceAndSectionDefaults(t *testing.T) {
	tests := []struct {
		name        string
		metadata    map[string]string
		wantSource  string
		wantSection string
	}{
		{"both present", map[string]string{"source": "policy.pdf", "section": "COVERAGE"}, "policy.pdf", "COVERAGE"},
		{"missing source", map[string]string{"section": "EXCLUSIONS"}, "Unknown", "EXCLUSIONS"},
		{"missing section", map[string]string{"source": "policy.pdf"}, "policy.pdf", "General"},
		{"blank values", map[string]string{"source": "  ", "section": ""}, "Unknown", "General"},
		{"nil metadata", nil, "Unknown", "General"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Passage{Text: "text", Metadata: tt.metadata}
			if got := p.Source(); got != tt.wantSource {
				t.Errorf("Source() = %q, want %q", got, tt.wantSource)
			}
			if got := p.Section(); got != tt.wantSection {
				t.Errorf("Section() = %q, want %q", got, tt.wantSection)
			}
		})
	}
}

func TestNewPassage_CopiesMetadata(t *testing.T) {
	meta := map[string]string{"source": "a.pdf"}
	p := NewPassage("text", meta)

	meta["source"] = "b.pdf"
	if p.Metadata["source"] != "a.pdf" {
		t.Errorf("passage metadata should not alias caller map, got %q", p.Metadata["source"])
	}

	clone := p.Clone()
	clone.Metadata["source"] = "c.pdf"
	if p.Metadata["source"] != "a.pdf" {
		t.Error("Clone should deep copy metadata")
	}
}

func TestPassage_IsEmpty(t *testing.T) {
	if !(Passage{Text: " \n\t "}).IsEmpty() {
		t.Error("whitespace-only passage should be empty")
	}
	if (Passage{Text: "x"}).IsEmpty() {
		t.Error("non-blank passage should not be empty")
	}
}

func TestPassages_KeepsOrder(t *testing.T) {
	results := []ScoredPassage{
		{Passage: Passage{Text: "first"}, Score: 0.9},
		{Passage: Passage{Text: "second"}, Score: 0.5},
	}
	got := Passages(results)
	if len(got) != 2 || got[0].Text != "first" || got[1].Text != "second" {
		t.Errorf("unexpected passages: %+v", got)
	}
}
