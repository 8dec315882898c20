package domain

import (
	"fmt"
	"strings"
)

const (
	// DefaultTopK is the number of passages retrieved when the caller does not say
	DefaultTopK = 3

	// MaxTopK bounds the number of passages a single question may pull into context
	MaxTopK = 20

	// MinQueryLength is the minimum trimmed query length in characters
	MinQueryLength = 3
)

// InsufficientInformationMessage is returned without calling the language
// model when retrieval finds nothing to ground an answer on.
const InsufficientInformationMessage = "I don't have enough information to answer this question."

// NoDocumentsMessage is returned when nothing has been indexed yet.
const NoDocumentsMessage = "No documents have been indexed yet. Upload a document and try again once it has been processed."

// DefaultSystemPrompt constrains the model to the supplied context.
const DefaultSystemPrompt = `You are an AI assistant specializing in travel insurance policies.
Your task is to provide accurate information based solely on the provided context.
If the answer is not in the context, say "` + InsufficientInformationMessage + `"
Do not make up or infer information that is not explicitly stated in the context.
Format your responses clearly and concisely.`

// SourceRef attributes an answer to a retrieved passage.
type SourceRef struct {
	Source  string `json:"source" example:"policy.pdf"`
	Section string `json:"section" example:"COVERAGE"`
}

// Answer is a generated response plus its grounding.
type Answer struct {
	// Text is the model output, or a canned message when nothing was retrieved
	Text string `json:"answer"`

	// Sources follows the rank order of the retrieval that produced Context
	Sources []SourceRef `json:"sources"`

	// Context is the exact text handed to the language model
	Context string `json:"-"`
}

// NewInsufficientAnswer returns the answer used when retrieval is empty.
func NewInsufficientAnswer() *Answer {
	return &Answer{
		Text:    InsufficientInformationMessage,
		Sources: []SourceRef{},
		Context: "",
	}
}

// NewNoDocumentsAnswer returns the answer used before any document is indexed.
func NewNoDocumentsAnswer() *Answer {
	return &Answer{
		Text:    NoDocumentsMessage,
		Sources: []SourceRef{},
	}
}

// SourcesFor builds attribution in passage order.
func SourcesFor(passages []Passage) []SourceRef {
	sources := make([]SourceRef, len(passages))
	for i, p := range passages {
		sources[i] = SourceRef{Source: p.Source(), Section: p.Section()}
	}
	return sources
}

// NormalizeQuery trims a query and checks it against the minimum length.
func NormalizeQuery(query string, minLength int) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", fmt.Errorf("%w: query is required", ErrInvalidQuery)
	}
	if minLength < 1 {
		minLength = 1
	}
	if len([]rune(q)) < minLength {
		return "", fmt.Errorf("%w: query must be at least %d characters", ErrInvalidQuery, minLength)
	}
	return q, nil
}
