package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Ensure OpenAIEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OpenAIEmbedding)(nil)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIEmbedding implements EmbeddingService using OpenAI's embedding API.
// Any OpenAI-compatible server works through baseURL.
type OpenAIEmbedding struct {
	client     *openai.Client
	httpClient *http.Client
	model      string
	baseURL    string
	dimensions int
	opts       Options
}

// Model dimensions for OpenAI embedding models
var openAIModelDimensions = map[string]int{
	string(openai.SmallEmbedding3): 1536,
	string(openai.LargeEmbedding3): 3072,
	string(openai.AdaEmbeddingV2):  1536,
}

// NewOpenAIEmbedding creates a new OpenAI embedding service
func NewOpenAIEmbedding(apiKey, model, baseURL string, opts Options) (driven.EmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrConfiguration)
	}

	if model == "" {
		model = string(openai.SmallEmbedding3)
	}

	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	dimensions, ok := openAIModelDimensions[model]
	if !ok {
		// Default to 1536 for unknown models
		dimensions = 1536
	}
	if opts.Dimensions > 0 {
		dimensions = opts.Dimensions
	}

	httpClient := &http.Client{}
	config := openai.DefaultConfig(apiKey)
	config.HTTPClient = httpClient
	config.BaseURL = baseURL

	return &OpenAIEmbedding{
		client:     openai.NewClientWithConfig(config),
		httpClient: httpClient,
		model:      model,
		baseURL:    baseURL,
		dimensions: dimensions,
		opts:       opts,
	}, nil
}

// Embed generates embeddings for multiple texts in one request.
// The result is index-aligned with texts.
func (e *OpenAIEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.opts.Dimensions > 0 {
		req.Dimensions = e.opts.Dimensions
	}

	resp, err := withRetry(ctx, e.opts, func(ctx context.Context) (openai.EmbeddingResponse, error) {
		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return resp, openAIError(domain.ErrEmbeddingProvider, err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	// The API tags each vector with its input index
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	for i, emb := range embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("%w: openai returned no embedding for input %d", domain.ErrEmbeddingProvider, i)
		}
		if len(emb) != e.dimensions {
			return nil, fmt.Errorf("%w: openai returned %d dimensions, expected %d", domain.ErrEmbeddingProvider, len(emb), e.dimensions)
		}
	}

	return embeddings, nil
}

// EmbedQuery generates an embedding for a search query
func (e *OpenAIEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimensions returns the embedding dimension size
func (e *OpenAIEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *OpenAIEmbedding) Model() string {
	return e.model
}

// HealthCheck embeds a short string to verify connectivity
func (e *OpenAIEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

// Close releases resources held by the embedding service
func (e *OpenAIEmbedding) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}
