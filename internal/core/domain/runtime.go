package domain

import "sync"

// RuntimeConfig tracks which services are available at runtime.
// Backends are fixed at startup; capability flags change as providers and
// the live index are swapped. Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	IndexBackend    string // "flat" or "qdrant"
	QueueBackend    string // "memory", "redis" or "postgres"
	LockBackend     string // "memory", "redis" or "postgres"
	RegistryBackend string // "sqlite" or "postgres"

	// Dynamic capability flags
	embeddingAvailable bool
	llmAvailable       bool
	indexReady         bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(indexBackend, queueBackend, lockBackend, registryBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		IndexBackend:    indexBackend,
		QueueBackend:    queueBackend,
		LockBackend:     lockBackend,
		RegistryBackend: registryBackend,
	}
}

// EmbeddingAvailable returns whether embedding service is available
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// LLMAvailable returns whether LLM service is available
func (c *RuntimeConfig) LLMAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.llmAvailable
}

// IndexReady returns whether a built or loaded index is being served
func (c *RuntimeConfig) IndexReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexReady
}

// SetEmbeddingAvailable updates the embedding availability flag
func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
}

// SetLLMAvailable updates the LLM availability flag
func (c *RuntimeConfig) SetLLMAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.llmAvailable = available
}

// SetIndexReady updates the index readiness flag
func (c *RuntimeConfig) SetIndexReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexReady = ready
}

// CanAnswer returns true if questions can be answered end to end
func (c *RuntimeConfig) CanAnswer() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable && c.llmAvailable && c.indexReady
}

// CanIndex returns true if documents can be embedded and indexed
func (c *RuntimeConfig) CanIndex() bool {
	return c.EmbeddingAvailable()
}
