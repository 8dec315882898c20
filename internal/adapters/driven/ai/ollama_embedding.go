package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Ensure OllamaEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OllamaEmbedding)(nil)

const defaultOllamaURL = "http://localhost:11434"

// Known widths for common Ollama embedding models. Others are learned from
// the first response.
var ollamaModelDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// OllamaEmbedding implements EmbeddingService against a local Ollama server.
type OllamaEmbedding struct {
	model   string
	baseURL string
	opts    Options
	client  *http.Client

	mu         sync.RWMutex
	dimensions int
}

// NewOllamaEmbedding creates a new Ollama embedding service
func NewOllamaEmbedding(baseURL, model string, opts Options) (driven.EmbeddingService, error) {
	if model == "" {
		model = "nomic-embed-text"
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	dimensions := ollamaModelDimensions[strings.SplitN(model, ":", 2)[0]]
	if opts.Dimensions > 0 {
		dimensions = opts.Dimensions
	}

	return &OllamaEmbedding{
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
		client:     &http.Client{},
		dimensions: dimensions,
	}, nil
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed generates embeddings for multiple texts in one request.
func (e *OllamaEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := withRetry(ctx, e.opts, func(ctx context.Context) (*ollamaEmbedResponse, error) {
		return e.doRequest(ctx, ollamaEmbedRequest{Model: e.model, Input: texts})
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: ollama returned %d embeddings for %d inputs",
			domain.ErrEmbeddingProvider, len(resp.Embeddings), len(texts))
	}

	want := e.Dimensions()
	for i, emb := range resp.Embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("%w: ollama returned no embedding for input %d", domain.ErrEmbeddingProvider, i)
		}
		if want == 0 {
			want = len(emb)
			e.mu.Lock()
			e.dimensions = want
			e.mu.Unlock()
		}
		if len(emb) != want {
			return nil, fmt.Errorf("%w: ollama returned %d dimensions, expected %d", domain.ErrEmbeddingProvider, len(emb), want)
		}
	}

	return resp.Embeddings, nil
}

// EmbedQuery generates an embedding for a search query
func (e *OllamaEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimensions returns the embedding width, or 0 for an unknown model that
// has not been called yet.
func (e *OllamaEmbedding) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimensions
}

// Model returns the model name being used
func (e *OllamaEmbedding) Model() string {
	return e.model
}

// HealthCheck embeds a probe string, which also learns an unknown width
func (e *OllamaEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

// Close releases resources held by the embedding service
func (e *OllamaEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *OllamaEmbedding) doRequest(ctx context.Context, reqBody ollamaEmbedRequest) (*ollamaEmbedResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %v", domain.ErrEmbeddingProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", domain.ErrEmbeddingProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classify(domain.ErrEmbeddingProvider, "ollama", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(domain.ErrEmbeddingProvider, "ollama", err)
	}

	var parsed ollamaEmbedResponse
	jsonErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if jsonErr == nil && parsed.Error != "" {
			msg = parsed.Error
		}
		return nil, statusError(domain.ErrEmbeddingProvider, "ollama", resp.StatusCode, msg)
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", domain.ErrEmbeddingProvider, jsonErr)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%w: ollama: %s", domain.ErrEmbeddingProvider, parsed.Error)
	}

	return &parsed, nil
}
