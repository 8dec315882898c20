package domain

import (
	"errors"
	"testing"
)

func TestParseChunkStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    ChunkStrategy
		wantErr bool
	}{
		{"default", ChunkStrategyDefault, false},
		{"", ChunkStrategyDefault, false},
		{"section-aware", ChunkStrategySectionAware, false},
		{"Section_Aware", ChunkStrategySectionAware, false},
		{"insurance", ChunkStrategySectionAware, false},
		{"semantic", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChunkStrategy(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrConfiguration) {
					t.Fatalf("expected ErrConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestChunkOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    ChunkOptions
		wantErr bool
	}{
		{"defaults", DefaultChunkOptions(), false},
		{"zero overlap", ChunkOptions{ChunkSize: 10, Overlap: 0}, false},
		{"overlap equals size", ChunkOptions{ChunkSize: 10, Overlap: 10}, true},
		{"negative overlap", ChunkOptions{ChunkSize: 10, Overlap: -1}, true},
		{"zero size", ChunkOptions{ChunkSize: 0, Overlap: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr && !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
