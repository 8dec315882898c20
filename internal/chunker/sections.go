package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

// headingPattern matches an ALL-CAPS heading such as "COVERAGE:" at line start.
var headingPattern = regexp.MustCompile(`(?m)^[A-Z][A-Z \t]+:`)

// SectionSplitter starts a new span at every heading line. Text before the
// first heading becomes a GENERAL span.
type SectionSplitter struct{}

var _ Processor = (*SectionSplitter)(nil)

// NewSectionSplitter creates a new section splitter.
func NewSectionSplitter() *SectionSplitter {
	return &SectionSplitter{}
}

func (s *SectionSplitter) Process(spans []Span) []Span {
	var result []Span
	for _, span := range spans {
		result = append(result, s.split(span)...)
	}
	return result
}

func (s *SectionSplitter) Name() string {
	return "sections"
}

// Order returns 0 - splitting comes first.
func (s *SectionSplitter) Order() int {
	return 0
}

func (s *SectionSplitter) split(span Span) []Span {
	text := span.Text
	if text == "" {
		return nil
	}

	matches := headingPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		span.Section = domain.DefaultSection
		return []Span{span}
	}

	var spans []Span
	add := func(from, to int, section string) {
		spans = append(spans, Span{
			Text:    text[from:to],
			Section: section,
			Start:   span.Start + utf8.RuneCountInString(text[:from]),
			End:     span.Start + utf8.RuneCountInString(text[:to]),
		})
	}

	if matches[0][0] > 0 {
		add(0, matches[0][0], domain.DefaultSection)
	}
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		add(m[0], end, headingName(text[m[0]:m[1]]))
	}
	return spans
}

// headingName turns "COVERAGE:" into "COVERAGE".
func headingName(heading string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(heading), ":"))
}
