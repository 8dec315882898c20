package chunker

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

// stitch rebuilds the source from overlapping spans using their offsets.
func stitch(spans []Span) string {
	var b strings.Builder
	covered := 0
	for _, s := range spans {
		runes := []rune(s.Text)
		if s.End <= covered {
			continue
		}
		skip := covered - s.Start
		if skip < 0 {
			skip = 0
		}
		b.WriteString(string(runes[skip:]))
		covered = s.End
	}
	return b.String()
}

func TestWindowSplitter_Reconstructs(t *testing.T) {
	paragraph := "Trip cancellation is covered when the insured cancels for a covered reason. " +
		"Medical emergencies abroad are reimbursed up to the policy limit!\n\n" +
		"Baggage delays over twelve hours qualify? Yes, with receipts.\n"
	texts := map[string]string{
		"ascii":      strings.Repeat(paragraph, 12),
		"no breaks":  strings.Repeat("x", 2500),
		"multi-byte": strings.Repeat("Versicherungsschutz für Gepäck: äöü ß 保险 ", 80),
		"short":      "Coverage includes trip cancellation.",
	}
	configs := []struct{ size, overlap int }{
		{1000, 200},
		{120, 30},
		{50, 0},
		{10, 9},
	}

	for name, text := range texts {
		for _, cfg := range configs {
			p := NewPipeline()
			p.Add(NewWindowSplitter(cfg.size, cfg.overlap))
			spans := p.Process(text)

			require.NotEmpty(t, spans, name)
			assert.Equal(t, text, stitch(spans), "%s size=%d overlap=%d", name, cfg.size, cfg.overlap)
			for i, s := range spans {
				assert.LessOrEqual(t, len([]rune(s.Text)), cfg.size)
				assert.True(t, strings.ToValidUTF8(s.Text, "?") == s.Text, "span %d split a rune", i)
				if i > 0 {
					assert.Greater(t, s.Start, spans[i-1].Start, "window must advance")
				}
			}
		}
	}
}

func TestWindowSplitter_PrefersParagraphBreak(t *testing.T) {
	text := strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 60)
	spans := NewWindowSplitter(100, 0).Process([]Span{{Text: text, End: len([]rune(text))}})

	require.Len(t, spans, 2)
	assert.Equal(t, strings.Repeat("a", 60)+"\n\n", spans[0].Text)
	assert.Equal(t, strings.Repeat("b", 60), spans[1].Text)
}

func TestWindowSplitter_PrefersSentenceOverWord(t *testing.T) {
	text := strings.Repeat("word ", 10) + "End. " + strings.Repeat("more ", 20)
	spans := NewWindowSplitter(80, 0).Process([]Span{{Text: text, End: len([]rune(text))}})

	require.NotEmpty(t, spans)
	assert.True(t, strings.HasSuffix(spans[0].Text, "End. "), "got %q", spans[0].Text)
}

func TestWindowSplitter_HardCut(t *testing.T) {
	text := strings.Repeat("x", 250)
	spans := NewWindowSplitter(100, 20).Process([]Span{{Text: text, End: 250}})

	require.Len(t, spans, 3)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, 100, spans[0].End)
	assert.Equal(t, 80, spans[1].Start)
}

func TestSectionSplitter_Headings(t *testing.T) {
	text := "Policy summary for members.\nCOVERAGE:\nTrip cancellation is included.\nEXCLUSIONS:\nPre-existing conditions."
	c, err := New(domain.ChunkStrategySectionAware, domain.DefaultChunkOptions())
	require.NoError(t, err)

	passages := c.Chunk(text, map[string]string{domain.MetaSource: "policy.pdf"})
	require.Len(t, passages, 3)

	assert.Equal(t, "GENERAL", passages[0].Section())
	assert.Equal(t, "Policy summary for members.", passages[0].Text)

	assert.Equal(t, "COVERAGE", passages[1].Section())
	assert.True(t, strings.HasPrefix(passages[1].Text, "COVERAGE:"))
	assert.Contains(t, passages[1].Text, "Trip cancellation is included.")

	assert.Equal(t, "EXCLUSIONS", passages[2].Section())
	for _, p := range passages {
		assert.Equal(t, "policy.pdf", p.Source())
	}
}

func TestSectionSplitter_NoHeadings(t *testing.T) {
	text := "  Plain text with no headings at all.\nJust two lines.  "
	passages, err := Chunk(text, nil, domain.ChunkStrategySectionAware, domain.DefaultChunkOptions())
	require.NoError(t, err)

	require.Len(t, passages, 1)
	assert.Equal(t, domain.DefaultSection, passages[0].Metadata[domain.MetaSection])
	assert.Equal(t, strings.TrimSpace(text), passages[0].Text)
}

func TestSectionSplitter_IgnoresLowercaseAndMidLine(t *testing.T) {
	text := "Coverage: lowercase heading\nsee COVERAGE: mid line"
	spans := NewSectionSplitter().Process([]Span{{Text: text, End: len([]rune(text))}})

	require.Len(t, spans, 1)
	assert.Equal(t, domain.DefaultSection, spans[0].Section)
}

func TestChunk_EmptyInput(t *testing.T) {
	for _, strategy := range []domain.ChunkStrategy{domain.ChunkStrategyDefault, domain.ChunkStrategySectionAware} {
		passages, err := Chunk("", nil, strategy, domain.DefaultChunkOptions())
		require.NoError(t, err)
		assert.Empty(t, passages, strategy)

		passages, err = Chunk("   \n\n  ", nil, strategy, domain.DefaultChunkOptions())
		require.NoError(t, err)
		assert.Empty(t, passages, strategy)
	}
}

func TestChunk_MetadataCopiedPerPassage(t *testing.T) {
	meta := map[string]string{domain.MetaSource: "a.pdf", domain.MetaDocumentID: "doc-1"}
	text := strings.Repeat("Sentence number one. ", 200)

	passages, err := Chunk(text, meta, domain.ChunkStrategyDefault, domain.ChunkOptions{ChunkSize: 300, Overlap: 50})
	require.NoError(t, err)
	require.Greater(t, len(passages), 1)

	ids := map[string]bool{}
	for _, p := range passages {
		assert.Equal(t, "a.pdf", p.Source())
		assert.Equal(t, "doc-1", p.DocumentID())
		assert.Equal(t, domain.DefaultSection, p.Metadata[domain.MetaSection])
		assert.NotEmpty(t, p.ChunkID())
		assert.False(t, ids[p.ChunkID()], "chunk ids must be unique")
		ids[p.ChunkID()] = true
		assert.False(t, p.IsEmpty())
	}

	passages[0].Metadata["source"] = "changed"
	assert.Equal(t, "a.pdf", meta[domain.MetaSource])
	assert.Equal(t, "a.pdf", passages[1].Source())
}

func TestNew_InvalidConfiguration(t *testing.T) {
	_, err := New(domain.ChunkStrategy("semantic"), domain.DefaultChunkOptions())
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = New(domain.ChunkStrategyDefault, domain.ChunkOptions{ChunkSize: 100, Overlap: 100})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestPipeline_ListAndOrder(t *testing.T) {
	p := NewPipeline()
	p.Add(NewTrimmer())
	p.Add(NewWindowSplitter(10, 2))

	spans := p.Process("  hello world, this is long  ")
	assert.Equal(t, []string{"window", "trimmer"}, p.List())
	for i, s := range spans {
		assert.Equal(t, i, s.Position)
		assert.Equal(t, strings.TrimSpace(s.Text), s.Text)
	}
}
