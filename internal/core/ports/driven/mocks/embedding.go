package mocks

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*MockEmbeddingService)(nil)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Vectors are deterministic per text unless overridden with SetVector.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	failNext   error
	vectors    map[string][]float32

	embedCalls int
	queryCalls int
	embedded   []string
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 8,
		model:      "mock-embedding-model",
		vectors:    make(map[string][]float32),
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.embedCalls++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.vectorFor(text)
	}
	m.embedded = append(m.embedded, texts...)
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queryCalls++
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	return m.vectorFor(query), nil
}

func (m *MockEmbeddingService) Dimensions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

func (m *MockEmbeddingService) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *MockEmbeddingService) vectorFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	return m.generateEmbedding(text)
}

// generateEmbedding generates a deterministic embedding based on text hash
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000)/1000.0 + 0.001
	}
	return embedding
}

// Helper methods for testing

// SetFailNext makes the next call fail with a provider error.
func (m *MockEmbeddingService) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fail {
		m.failNext = fmt.Errorf("%w: mock failure", domain.ErrEmbeddingProvider)
	} else {
		m.failNext = nil
	}
}

// SetFailNextWith makes the next call fail with err.
func (m *MockEmbeddingService) SetFailNextWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}

// SetVector pins the vector returned for text.
func (m *MockEmbeddingService) SetVector(text string, vector []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = vector
}

// EmbedCalls returns how many batch calls were made.
func (m *MockEmbeddingService) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// QueryCalls returns how many query calls were made.
func (m *MockEmbeddingService) QueryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryCalls
}

// Embedded returns every text passed to Embed, in order.
func (m *MockEmbeddingService) Embedded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.embedded))
	copy(out, m.embedded)
	return out
}
