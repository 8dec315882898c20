package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

var _ driven.LLMService = (*MockLLMService)(nil)

// MockLLMService is a mock implementation of LLMService for testing
type MockLLMService struct {
	mu sync.Mutex

	// CompleteFn overrides the canned response when set
	CompleteFn func(systemInstruction, userPrompt string) (string, error)
	PingFn     func() error

	Response string

	calls          int
	lastSystem     string
	lastUserPrompt string
}

// NewMockLLMService creates a mock that always answers with response
func NewMockLLMService(response string) *MockLLMService {
	return &MockLLMService{Response: response}
}

func (m *MockLLMService) Complete(ctx context.Context, systemInstruction, userPrompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastSystem = systemInstruction
	m.lastUserPrompt = userPrompt
	fn := m.CompleteFn
	resp := m.Response
	m.mu.Unlock()

	if fn != nil {
		return fn(systemInstruction, userPrompt)
	}
	return resp, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Calls returns how many completions were requested
func (m *MockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompts returns the most recent system instruction and user prompt
func (m *MockLLMService) LastPrompts() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSystem, m.lastUserPrompt
}
