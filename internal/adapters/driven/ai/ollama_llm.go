package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Ensure OllamaLLM implements LLMService
var _ driven.LLMService = (*OllamaLLM)(nil)

// OllamaLLM implements LLMService with Ollama's non-streaming chat endpoint.
type OllamaLLM struct {
	model       string
	baseURL     string
	temperature float32
	opts        Options
	client      *http.Client
}

// NewOllamaLLM creates a new Ollama chat service
func NewOllamaLLM(baseURL, model string, temperature float32, opts Options) (driven.LLMService, error) {
	if model == "" {
		model = "llama3"
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	return &OllamaLLM{
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: temperature,
		opts:        opts,
		client:      &http.Client{},
	}, nil
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// Complete sends the system instruction and user prompt as one chat turn.
func (l *OllamaLLM) Complete(ctx context.Context, systemInstruction, userPrompt string) (string, error) {
	reqBody := ollamaChatRequest{
		Model: l.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: userPrompt},
		},
		Stream:  false,
		Options: map[string]any{"temperature": l.temperature},
	}

	return withRetry(ctx, l.opts, func(ctx context.Context) (string, error) {
		return l.chat(ctx, reqBody)
	})
}

// Model returns the model name being used
func (l *OllamaLLM) Model() string {
	return l.model
}

// Ping checks the server answers its version endpoint
func (l *OllamaLLM) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.opts.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", domain.ErrGeneration, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return classify(domain.ErrGeneration, "ollama", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return statusError(domain.ErrGeneration, "ollama", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *OllamaLLM) Close() error {
	l.client.CloseIdleConnections()
	return nil
}

func (l *OllamaLLM) chat(ctx context.Context, reqBody ollamaChatRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %v", domain.ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", domain.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", classify(domain.ErrGeneration, "ollama", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(domain.ErrGeneration, "ollama", err)
	}

	var parsed ollamaChatResponse
	jsonErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if jsonErr == nil && parsed.Error != "" {
			msg = parsed.Error
		}
		return "", statusError(domain.ErrGeneration, "ollama", resp.StatusCode, msg)
	}
	if jsonErr != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", domain.ErrGeneration, jsonErr)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%w: ollama: %s", domain.ErrGeneration, parsed.Error)
	}

	return parsed.Message.Content, nil
}
