package services

import (
	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/askmydocs/internal/runtime"
)

type fixture struct {
	services  *runtime.Services
	embedding *mocks.MockEmbeddingService
	llm       *mocks.MockLLMService
}

func newFixture() *fixture {
	config := domain.NewRuntimeConfig("mock", "memory", "memory", "memory")
	services := runtime.NewServices(config)

	embedding := mocks.NewMockEmbeddingService()
	llm := mocks.NewMockLLMService("Trip cancellation is covered.")
	services.SetEmbeddingService(embedding)
	services.SetLLMService(llm)

	return &fixture{services: services, embedding: embedding, llm: llm}
}

func (f *fixture) withIndex(passages ...domain.Passage) *mocks.MockVectorIndex {
	idx := mocks.NewMockVectorIndexWith(passages...)
	f.services.SetIndex(idx)
	return idx
}

func (f *fixture) retriever(minScore float64) *Retriever {
	return NewRetriever(RetrieverConfig{Services: f.services, MinScore: minScore})
}

func (f *fixture) generator() *AnswerGenerator {
	return NewAnswerGenerator(AnswerGeneratorConfig{
		Retriever: f.retriever(0),
		Services:  f.services,
	})
}

func passage(text, source, section string) domain.Passage {
	return domain.NewPassage(text, map[string]string{
		domain.MetaSource:  source,
		domain.MetaSection: section,
	})
}
