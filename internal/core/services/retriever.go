package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/runtime"
)

// Retriever embeds queries and looks them up in the live vector index.
type Retriever struct {
	services *runtime.Services
	minScore float64
	logger   *slog.Logger
}

// RetrieverConfig holds configuration for the retriever.
type RetrieverConfig struct {
	Services *runtime.Services
	Logger   *slog.Logger

	// MinScore drops hits scoring below it. Zero keeps everything.
	MinScore float64
}

// NewRetriever creates a new Retriever.
func NewRetriever(cfg RetrieverConfig) *Retriever {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		services: cfg.Services,
		minScore: cfg.MinScore,
		logger:   logger,
	}
}

// Retrieve returns up to topK passages most similar to query, best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.Passage, error) {
	results, err := r.RetrieveScored(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	return domain.Passages(results), nil
}

// RetrieveScored is Retrieve with similarity scores kept.
func (r *Retriever) RetrieveScored(ctx context.Context, query string, topK int) ([]domain.ScoredPassage, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", domain.ErrInvalidQuery, topK)
	}

	index := r.services.Index()
	if index == nil || !index.Built() {
		return nil, domain.ErrUninitializedIndex
	}

	embedder := r.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrConfiguration)
	}

	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := index.Search(ctx, vector, topK)
	if err != nil {
		return nil, err
	}

	if r.minScore > 0 {
		kept := results[:0]
		for _, res := range results {
			if res.Score >= r.minScore {
				kept = append(kept, res)
			}
		}
		if dropped := len(results) - len(kept); dropped > 0 {
			r.logger.Debug("dropped low relevance passages", "dropped", dropped, "min_score", r.minScore)
		}
		results = kept
	}

	return results, nil
}

// FormatContext renders passages for the language model prompt, numbered
// from 1 in the given order and separated by blank lines.
func FormatContext(passages []domain.Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = fmt.Sprintf("[%d] Source: %s | Section: %s\n%s", i+1, p.Source(), p.Section(), p.Text)
	}
	return strings.Join(parts, "\n\n")
}
