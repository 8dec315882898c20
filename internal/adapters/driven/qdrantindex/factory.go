// Package qdrantindex keeps index vectors in Qdrant collections. Each
// persisted generation gets its own collection; the bundle directory only
// holds a manifest pointing at the current one.
package qdrantindex

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Ensure Factory implements VectorIndexFactory
var _ driven.VectorIndexFactory = (*Factory)(nil)

// Backend is the name recorded in bundle manifests
const Backend = "qdrant"

// Config holds Qdrant connection settings
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Provider   string
	Logger     *slog.Logger
}

// Factory owns the gRPC client shared by every index it creates.
type Factory struct {
	client     *qdrant.Client
	collection string
	provider   string
	logger     *slog.Logger
}

// NewFactory connects to Qdrant.
func NewFactory(cfg Config) (*Factory, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "askmydocs"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect to qdrant: %v", domain.ErrStorage, err)
	}

	return &Factory{
		client:     client,
		collection: cfg.Collection,
		provider:   cfg.Provider,
		logger:     cfg.Logger.With("component", "qdrantindex"),
	}, nil
}

// NewIndex returns an empty index bound to embedder.
func (f *Factory) NewIndex(embedder driven.EmbeddingService) (driven.VectorIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: an embedding service is required", domain.ErrConfiguration)
	}
	return &Index{
		client:   f.client,
		base:     f.collection,
		embedder: embedder,
		provider: f.provider,
		logger:   f.logger,
	}, nil
}

// Backend returns "qdrant"
func (f *Factory) Backend() string {
	return Backend
}

// Ping checks the server is reachable.
func (f *Factory) Ping(ctx context.Context) error {
	if _, err := f.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: qdrant health check: %v", domain.ErrStorage, err)
	}
	return nil
}

// Close closes the shared client. Indexes created by the factory are
// unusable afterwards.
func (f *Factory) Close() error {
	return f.client.Close()
}
