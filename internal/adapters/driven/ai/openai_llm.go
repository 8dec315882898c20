package ai

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

// Ensure OpenAILLM implements LLMService
var _ driven.LLMService = (*OpenAILLM)(nil)

// OpenAILLM implements LLMService with the chat completions API.
// Any OpenAI-compatible server works through baseURL.
type OpenAILLM struct {
	client      *openai.Client
	httpClient  *http.Client
	model       string
	temperature float32
	opts        Options
}

// NewOpenAILLM creates a new OpenAI chat service
func NewOpenAILLM(apiKey, model, baseURL string, temperature float32, opts Options) (driven.LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrConfiguration)
	}
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}

	httpClient := &http.Client{}
	config := openai.DefaultConfig(apiKey)
	config.HTTPClient = httpClient
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAILLM{
		client:      openai.NewClientWithConfig(config),
		httpClient:  httpClient,
		model:       model,
		temperature: temperature,
		opts:        opts,
	}, nil
}

// Complete sends the system instruction and user prompt as one chat turn.
func (l *OpenAILLM) Complete(ctx context.Context, systemInstruction, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: l.requestTemperature(),
	}

	return withRetry(ctx, l.opts, func(ctx context.Context) (string, error) {
		resp, err := l.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", openAIError(domain.ErrGeneration, err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%w: openai returned no choices", domain.ErrGeneration)
		}
		return resp.Choices[0].Message.Content, nil
	})
}

// requestTemperature works around omitempty dropping an explicit zero,
// which the API would otherwise replace with its default of 1.
func (l *OpenAILLM) requestTemperature() float32 {
	if l.temperature == 0 {
		return math.SmallestNonzeroFloat32
	}
	return l.temperature
}

// Model returns the model name being used
func (l *OpenAILLM) Model() string {
	return l.model
}

// Ping lists models, which is free and checks the credentials
func (l *OpenAILLM) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.opts.timeout())
	defer cancel()

	if _, err := l.client.ListModels(ctx); err != nil {
		return openAIError(domain.ErrGeneration, err)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *OpenAILLM) Close() error {
	l.httpClient.CloseIdleConnections()
	return nil
}
