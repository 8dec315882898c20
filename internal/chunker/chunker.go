// Package chunker splits extracted document text into passages.
package chunker

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

// Chunker turns text into passages using one strategy.
// Safe for concurrent use.
type Chunker struct {
	strategy domain.ChunkStrategy
	pipeline *Pipeline
}

// New creates a chunker. The window options only apply to the default
// strategy but are validated regardless.
func New(strategy domain.ChunkStrategy, opts domain.ChunkOptions) (*Chunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	p := NewPipeline()
	switch strategy {
	case domain.ChunkStrategyDefault:
		p.Add(NewWindowSplitter(opts.ChunkSize, opts.Overlap))
	case domain.ChunkStrategySectionAware:
		p.Add(NewSectionSplitter())
	default:
		return nil, fmt.Errorf("%w: unknown chunking strategy %q", domain.ErrConfiguration, strategy)
	}
	p.Add(NewTrimmer())

	return &Chunker{strategy: strategy, pipeline: p}, nil
}

// Strategy returns the configured strategy.
func (c *Chunker) Strategy() domain.ChunkStrategy {
	return c.strategy
}

// Chunk splits text into passages. Every passage gets a copy of metadata,
// a section (GENERAL unless a heading says otherwise) and a fresh chunk_id.
// Empty text yields no passages.
func (c *Chunker) Chunk(text string, metadata map[string]string) []domain.Passage {
	spans := c.pipeline.Process(text)
	passages := make([]domain.Passage, 0, len(spans))
	for _, s := range spans {
		meta := domain.CopyMetadata(metadata)
		switch {
		case s.Section != "":
			meta[domain.MetaSection] = s.Section
		case meta[domain.MetaSection] == "":
			meta[domain.MetaSection] = domain.DefaultSection
		}
		meta[domain.MetaChunkID] = uuid.NewString()
		passages = append(passages, domain.Passage{Text: s.Text, Metadata: meta})
	}
	return passages
}

// Chunk is a convenience wrapper that builds a chunker for one call.
func Chunk(text string, metadata map[string]string, strategy domain.ChunkStrategy, opts domain.ChunkOptions) ([]domain.Passage, error) {
	c, err := New(strategy, opts)
	if err != nil {
		return nil, err
	}
	return c.Chunk(text, metadata), nil
}
