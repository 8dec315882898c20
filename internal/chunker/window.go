package chunker

// breakSearchWindow is how far back from the window end a break is looked for.
const breakSearchWindow = 100

var sentenceEnders = [][]rune{
	[]rune(". "), []rune("! "), []rune("? "),
	[]rune(".\n"), []rune("!\n"), []rune("?\n"),
}

// WindowSplitter splits text into overlapping windows of at most Size
// runes, preferring to break at a paragraph, then a sentence end, then a
// space within the last 100 runes of the window.
type WindowSplitter struct {
	Size    int
	Overlap int
}

var _ Processor = (*WindowSplitter)(nil)

// NewWindowSplitter creates a splitter. Callers validate size and overlap.
func NewWindowSplitter(size, overlap int) *WindowSplitter {
	return &WindowSplitter{Size: size, Overlap: overlap}
}

func (w *WindowSplitter) Process(spans []Span) []Span {
	var result []Span
	for _, s := range spans {
		result = append(result, w.split(s)...)
	}
	return result
}

func (w *WindowSplitter) Name() string {
	return "window"
}

// Order returns 0 - splitting comes first.
func (w *WindowSplitter) Order() int {
	return 0
}

func (w *WindowSplitter) split(s Span) []Span {
	content := []rune(s.Text)
	if len(content) == 0 {
		return nil
	}
	if len(content) <= w.Size {
		return []Span{s}
	}

	var spans []Span
	start := 0
	for start < len(content) {
		end := start + w.Size
		if end > len(content) {
			end = len(content)
		}

		if end < len(content) {
			if bp := findBreakPoint(content, start, end); bp > start {
				end = bp
			}
		}

		spans = append(spans, Span{
			Text:    string(content[start:end]),
			Section: s.Section,
			Start:   s.Start + start,
			End:     s.Start + end,
		})

		if end >= len(content) {
			break
		}

		next := end - w.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return spans
}

// findBreakPoint returns the rune index just after the best break inside
// content[maxEnd-100:maxEnd], or maxEnd for a hard cut.
func findBreakPoint(content []rune, start, maxEnd int) int {
	searchStart := maxEnd - breakSearchWindow
	if searchStart < start {
		searchStart = start
	}
	window := content[searchStart:maxEnd]

	if idx := lastIndex(window, []rune("\n\n")); idx != -1 {
		return searchStart + idx + 2
	}

	best := -1
	for _, ender := range sentenceEnders {
		if idx := lastIndex(window, ender); idx != -1 {
			if end := idx + len(ender); end > best {
				best = end
			}
		}
	}
	if best > 0 {
		return searchStart + best
	}

	if idx := lastIndex(window, []rune(" ")); idx != -1 {
		return searchStart + idx + 1
	}
	return maxEnd
}

func lastIndex(s, sep []rune) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		match := true
		for j := range sep {
			if s[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
