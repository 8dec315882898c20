package ai

import (
	"fmt"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI services based on configuration
type Factory struct{}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateEmbeddingService creates an embedding service from settings
func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	opts := Options{
		Timeout:    settings.Timeout,
		MaxRetries: settings.MaxRetries,
		Dimensions: settings.Dimensions,
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL, opts)
	case domain.AIProviderOllama:
		return NewOllamaEmbedding(settings.BaseURL, settings.Model, opts)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrConfiguration, settings.Provider)
	}
}

// CreateLLMService creates an LLM service from settings
func (f *Factory) CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	opts := Options{
		Timeout:    settings.Timeout,
		MaxRetries: settings.MaxRetries,
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAILLM(settings.APIKey, settings.Model, settings.BaseURL, settings.Temperature, opts)
	case domain.AIProviderOllama:
		return NewOllamaLLM(settings.BaseURL, settings.Model, settings.Temperature, opts)
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", domain.ErrConfiguration, settings.Provider)
	}
}
