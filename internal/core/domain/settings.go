package domain

import (
	"fmt"
	"time"
)

// AIProvider identifies an embedding or language model backend
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderOllama AIProvider = "ollama"
)

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama:
		return false // Self-hosted, no API key needed
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderOllama:
		return true
	default:
		return false
	}
}

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Provider   AIProvider    `json:"provider"`
	Model      string        `json:"model"`
	APIKey     string        `json:"-"` // Never serialize to JSON
	BaseURL    string        `json:"base_url,omitempty"`
	Dimensions int           `json:"dimensions,omitempty"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	if e.Provider == "" {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// Validate rejects providers outside the supported set.
func (e *EmbeddingSettings) Validate() error {
	if !e.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrConfiguration, e.Provider)
	}
	if e.Dimensions < 0 {
		return fmt.Errorf("%w: embedding dimensions must not be negative", ErrConfiguration)
	}
	return nil
}

// LLMSettings configures the LLM service
type LLMSettings struct {
	Provider    AIProvider    `json:"provider"`
	Model       string        `json:"model"`
	APIKey      string        `json:"-"` // Never serialize to JSON
	BaseURL     string        `json:"base_url,omitempty"`
	Temperature float32       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
	MaxRetries  int           `json:"max_retries"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// Validate rejects providers outside the supported set.
func (l *LLMSettings) Validate() error {
	if !l.Provider.IsValid() {
		return fmt.Errorf("%w: unknown llm provider %q", ErrConfiguration, l.Provider)
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be within [0, 2]", ErrConfiguration)
	}
	return nil
}
