package ai

import (
	"errors"
	"testing"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

func TestNewFactory(t *testing.T) {
	factory := NewFactory()
	if factory == nil {
		t.Fatal("expected non-nil factory")
	}
}

func TestFactory_CreateEmbeddingService_NilSettings(t *testing.T) {
	factory := NewFactory()

	svc, err := factory.CreateEmbeddingService(nil)
	if err != nil {
		t.Errorf("expected no error for nil settings, got %v", err)
	}
	if svc != nil {
		t.Error("expected nil service for nil settings")
	}
}

func TestFactory_CreateEmbeddingService_NotConfigured(t *testing.T) {
	factory := NewFactory()

	// OpenAI without a key is not configured
	settings := &domain.EmbeddingSettings{
		Provider: domain.AIProviderOpenAI,
		Model:    "text-embedding-3-small",
	}

	svc, err := factory.CreateEmbeddingService(settings)
	if err != nil {
		t.Errorf("expected no error for unconfigured settings, got %v", err)
	}
	if svc != nil {
		t.Error("expected nil service for unconfigured settings")
	}
}

func TestFactory_CreateEmbeddingService_OpenAI(t *testing.T) {
	factory := NewFactory()

	svc, err := factory.CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider:   domain.AIProviderOpenAI,
		Model:      "text-embedding-3-large",
		APIKey:     "sk-test",
		Dimensions: 512,
	})
	if err != nil {
		t.Fatalf("expected no error for OpenAI, got %v", err)
	}
	if _, ok := svc.(*OpenAIEmbedding); !ok {
		t.Fatalf("expected *OpenAIEmbedding, got %T", svc)
	}
	if svc.Dimensions() != 512 {
		t.Errorf("expected dimension override 512, got %d", svc.Dimensions())
	}
}

func TestFactory_CreateEmbeddingService_Ollama(t *testing.T) {
	factory := NewFactory()

	svc, err := factory.CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		Model:    "nomic-embed-text",
	})
	if err != nil {
		t.Fatalf("expected no error for Ollama, got %v", err)
	}
	if _, ok := svc.(*OllamaEmbedding); !ok {
		t.Fatalf("expected *OllamaEmbedding, got %T", svc)
	}
	if svc.Dimensions() != 768 {
		t.Errorf("expected 768 dimensions, got %d", svc.Dimensions())
	}
}

func TestFactory_CreateEmbeddingService_InvalidProvider(t *testing.T) {
	factory := NewFactory()

	_, err := factory.CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider: "voyage",
		APIKey:   "key",
	})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestFactory_CreateLLMService_NilSettings(t *testing.T) {
	factory := NewFactory()

	svc, err := factory.CreateLLMService(nil)
	if err != nil {
		t.Errorf("expected no error for nil settings, got %v", err)
	}
	if svc != nil {
		t.Error("expected nil service for nil settings")
	}
}

func TestFactory_CreateLLMService_OpenAI(t *testing.T) {
	factory := NewFactory()

	svc, err := factory.CreateLLMService(&domain.LLMSettings{
		Provider: domain.AIProviderOpenAI,
		APIKey:   "sk-test",
	})
	if err != nil {
		t.Fatalf("expected no error for OpenAI, got %v", err)
	}
	if svc.Model() != "gpt-3.5-turbo" {
		t.Errorf("expected default model gpt-3.5-turbo, got %s", svc.Model())
	}
}

func TestFactory_CreateLLMService_Ollama(t *testing.T) {
	factory := NewFactory()

	svc, err := factory.CreateLLMService(&domain.LLMSettings{
		Provider: domain.AIProviderOllama,
		Model:    "llama3.1",
	})
	if err != nil {
		t.Fatalf("expected no error for Ollama, got %v", err)
	}
	if _, ok := svc.(*OllamaLLM); !ok {
		t.Fatalf("expected *OllamaLLM, got %T", svc)
	}
}

func TestFactory_CreateLLMService_InvalidProvider(t *testing.T) {
	factory := NewFactory()

	_, err := factory.CreateLLMService(&domain.LLMSettings{
		Provider: "anthropic",
		APIKey:   "key",
	})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestFactory_ImplementsInterface(t *testing.T) {
	var _ driven.AIServiceFactory = NewFactory()
}
