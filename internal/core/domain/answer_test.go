package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		min     int
		want    string
		wantErr bool
	}{
		{"valid", "  what does coverage include?  ", 3, "what does coverage include?", false},
		{"empty", "", 3, "", true},
		{"whitespace", "   \n", 3, "", true},
		{"two characters", "hi", 3, "", true},
		{"exactly minimum", "why", 3, "why", false},
		{"multibyte counts runes", "été", 3, "été", false},
		{"zero minimum still rejects empty", " ", 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeQuery(tt.query, tt.min)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidQuery) {
					t.Fatalf("expected ErrInvalidQuery, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSourcesFor(t *testing.T) {
	passages := []Passage{
		{Text: "a", Metadata: map[string]string{"source": "one.pdf", "section": "COVERAGE"}},
		{Text: "b", Metadata: map[string]string{"source": "two.pdf"}},
		{Text: "c"},
	}

	sources := SourcesFor(passages)

	want := []SourceRef{
		{Source: "one.pdf", Section: "COVERAGE"},
		{Source: "two.pdf", Section: "General"},
		{Source: "Unknown", Section: "General"},
	}
	if len(sources) != len(want) {
		t.Fatalf("expected %d sources, got %d", len(want), len(sources))
	}
	for i := range want {
		if sources[i] != want[i] {
			t.Errorf("source %d: expected %+v, got %+v", i, want[i], sources[i])
		}
	}
}

func TestNewInsufficientAnswer(t *testing.T) {
	a := NewInsufficientAnswer()
	if a.Text != InsufficientInformationMessage {
		t.Errorf("unexpected text %q", a.Text)
	}
	if a.Sources == nil || len(a.Sources) != 0 {
		t.Error("expected empty, non-nil sources")
	}
	if a.Context != "" {
		t.Error("expected empty context")
	}
}

func TestDefaultSystemPromptMentionsFallback(t *testing.T) {
	if !strings.Contains(DefaultSystemPrompt, InsufficientInformationMessage) {
		t.Error("system prompt should instruct the model to use the insufficient-information message")
	}
}
