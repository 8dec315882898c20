package domain

import (
	"fmt"
	"strings"
)

// ChunkStrategy selects how raw document text is split into passages.
type ChunkStrategy string

const (
	// ChunkStrategyDefault is a sliding character window with overlap
	ChunkStrategyDefault ChunkStrategy = "default"
	// ChunkStrategySectionAware splits on ALL-CAPS "HEADING:" lines
	ChunkStrategySectionAware ChunkStrategy = "section-aware"
)

// ParseChunkStrategy resolves a configured strategy name.
// "insurance" is accepted as an alias for section-aware.
func ParseChunkStrategy(name string) (ChunkStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(ChunkStrategyDefault):
		return ChunkStrategyDefault, nil
	case string(ChunkStrategySectionAware), "section_aware", "insurance":
		return ChunkStrategySectionAware, nil
	default:
		return "", fmt.Errorf("%w: unknown chunking strategy %q", ErrConfiguration, name)
	}
}

// ChunkOptions sizes the default sliding window. Both values count characters.
type ChunkOptions struct {
	ChunkSize int `json:"chunk_size"`
	Overlap   int `json:"chunk_overlap"`
}

// DefaultChunkOptions returns the window used when nothing is configured.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		ChunkSize: 1000,
		Overlap:   200,
	}
}

// Validate checks 0 <= overlap < chunk size.
func (o ChunkOptions) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfiguration, o.ChunkSize)
	}
	if o.Overlap < 0 || o.Overlap >= o.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", ErrConfiguration, o.ChunkSize, o.Overlap)
	}
	return nil
}
