package chunker

import (
	"sort"
	"strings"
	"sync"
)

// Span is a piece of document text and its rune offsets in the source.
type Span struct {
	Text    string
	Section string

	// Position is the span's index in the output
	Position int

	// Start and End are rune offsets into the source text, End exclusive
	Start int
	End   int
}

// Processor transforms spans. Splitters run first (Order 0), cleanup after.
type Processor interface {
	Process(spans []Span) []Span
	Name() string
	Order() int
}

// Pipeline chains processors in Order.
type Pipeline struct {
	mu         sync.RWMutex
	processors []Processor
	sorted     bool
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]Processor, 0),
	}
}

// Add adds a processor. Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor Processor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process applies all processors to a single span holding the whole text.
func (p *Pipeline) Process(content string) []Span {
	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	processors := make([]Processor, len(p.processors))
	copy(processors, p.processors)
	p.mu.Unlock()

	spans := []Span{
		{
			Text:  content,
			Start: 0,
			End:   len([]rune(content)),
		},
	}

	for _, proc := range processors {
		spans = proc.Process(spans)
	}

	for i := range spans {
		spans[i].Position = i
	}
	return spans
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// Trimmer trims surrounding whitespace and drops spans left empty.
// Offsets are left pointing at the untrimmed window.
type Trimmer struct{}

var _ Processor = (*Trimmer)(nil)

// NewTrimmer creates a new trimmer.
func NewTrimmer() *Trimmer {
	return &Trimmer{}
}

func (t *Trimmer) Process(spans []Span) []Span {
	result := make([]Span, 0, len(spans))
	for _, s := range spans {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		s.Text = text
		result = append(result, s)
	}
	return result
}

func (t *Trimmer) Name() string {
	return "trimmer"
}

// Order returns 10 - runs after splitting.
func (t *Trimmer) Order() int {
	return 10
}
