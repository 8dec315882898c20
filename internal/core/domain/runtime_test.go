package domain

import (
	"sync"
	"testing"
)

func TestNewRuntimeConfig(t *testing.T) {
	config := NewRuntimeConfig("flat", "memory", "memory", "sqlite")

	if config == nil {
		t.Fatal("expected non-nil config")
	}
	if config.IndexBackend != "flat" || config.QueueBackend != "memory" ||
		config.LockBackend != "memory" || config.RegistryBackend != "sqlite" {
		t.Errorf("unexpected backends: %+v", config)
	}
	if config.EmbeddingAvailable() || config.LLMAvailable() || config.IndexReady() {
		t.Error("expected all capabilities to be unavailable initially")
	}
}

func TestRuntimeConfig_CanAnswer(t *testing.T) {
	config := NewRuntimeConfig("flat", "memory", "memory", "sqlite")

	config.SetEmbeddingAvailable(true)
	if config.CanAnswer() {
		t.Error("should not answer without llm and index")
	}
	if !config.CanIndex() {
		t.Error("should index once embedding is available")
	}

	config.SetLLMAvailable(true)
	if config.CanAnswer() {
		t.Error("should not answer without an index")
	}

	config.SetIndexReady(true)
	if !config.CanAnswer() {
		t.Error("expected CanAnswer with all capabilities")
	}

	config.SetIndexReady(false)
	if config.CanAnswer() {
		t.Error("expected CanAnswer false after index cleared")
	}
}

func TestRuntimeConfig_Concurrency(t *testing.T) {
	config := NewRuntimeConfig("flat", "memory", "memory", "sqlite")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(v bool) {
			defer wg.Done()
			config.SetIndexReady(v)
			config.SetLLMAvailable(v)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			_ = config.CanAnswer()
			_ = config.IndexReady()
		}()
	}
	wg.Wait()
}
