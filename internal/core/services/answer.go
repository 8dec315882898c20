package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driving"
	"github.com/custodia-labs/askmydocs/internal/runtime"
)

// Ensure AnswerGenerator implements QuestionService
var _ driving.QuestionService = (*AnswerGenerator)(nil)

// AnswerGenerator answers questions from retrieved passages only.
type AnswerGenerator struct {
	retriever      *Retriever
	services       *runtime.Services
	logger         *slog.Logger
	defaultTopK    int
	maxTopK        int
	minQueryLength int

	mu           sync.RWMutex
	systemPrompt string
}

// AnswerGeneratorConfig holds configuration for the answer generator.
type AnswerGeneratorConfig struct {
	Retriever      *Retriever
	Services       *runtime.Services
	Logger         *slog.Logger
	SystemPrompt   string // default: domain.DefaultSystemPrompt
	DefaultTopK    int    // default: 3
	MaxTopK        int    // default: 20
	MinQueryLength int    // default: 3
}

// NewAnswerGenerator creates a new AnswerGenerator.
func NewAnswerGenerator(cfg AnswerGeneratorConfig) *AnswerGenerator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prompt := strings.TrimSpace(cfg.SystemPrompt)
	if prompt == "" {
		prompt = domain.DefaultSystemPrompt
	}

	g := &AnswerGenerator{
		retriever:      cfg.Retriever,
		services:       cfg.Services,
		logger:         logger,
		defaultTopK:    cfg.DefaultTopK,
		maxTopK:        cfg.MaxTopK,
		minQueryLength: cfg.MinQueryLength,
		systemPrompt:   prompt,
	}
	if g.defaultTopK <= 0 {
		g.defaultTopK = domain.DefaultTopK
	}
	if g.maxTopK <= 0 {
		g.maxTopK = domain.MaxTopK
	}
	if g.minQueryLength <= 0 {
		g.minQueryLength = domain.MinQueryLength
	}
	return g
}

// Ask validates the query, retrieves context and asks the language model.
// When retrieval finds nothing the model is not called and the fixed
// insufficient-information answer is returned.
func (g *AnswerGenerator) Ask(ctx context.Context, query string, topK int) (*domain.Answer, error) {
	start := time.Now()

	q, err := domain.NormalizeQuery(query, g.minQueryLength)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = g.defaultTopK
	}
	if topK > g.maxTopK {
		return nil, fmt.Errorf("%w: top_k must be at most %d, got %d", domain.ErrInvalidQuery, g.maxTopK, topK)
	}

	passages, err := g.retriever.Retrieve(ctx, q, topK)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		g.logger.Info("no passages retrieved", "top_k", topK)
		return domain.NewInsufficientAnswer(), nil
	}

	llm := g.services.LLMService()
	if llm == nil {
		return nil, fmt.Errorf("%w: no language model configured", domain.ErrConfiguration)
	}

	contextText := FormatContext(passages)
	userPrompt := BuildUserPrompt(contextText, q)

	text, err := llm.Complete(ctx, g.SystemPrompt(), userPrompt)
	if err != nil {
		g.logger.Error("answer generation failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	g.logger.Info("question answered",
		"passages", len(passages),
		"duration", time.Since(start),
	)

	return &domain.Answer{
		Text:    strings.TrimSpace(text),
		Sources: domain.SourcesFor(passages),
		Context: contextText,
	}, nil
}

// SystemPrompt returns the current system instruction.
func (g *AnswerGenerator) SystemPrompt() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.systemPrompt
}

// SetSystemPrompt replaces the system instruction for subsequent questions.
func (g *AnswerGenerator) SetSystemPrompt(prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("%w: system prompt must not be empty", domain.ErrConfiguration)
	}
	g.mu.Lock()
	g.systemPrompt = prompt
	g.mu.Unlock()
	return nil
}

// BuildUserPrompt lays out retrieved context and the question for the model.
func BuildUserPrompt(contextText, question string) string {
	return "Context:\n" + contextText + "\n\nQuestion: " + question + "\n\nAnswer:"
}
