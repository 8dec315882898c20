package extractors

import (
	"regexp"
	"strings"
)

var (
	pageNumberLine = regexp.MustCompile(`(?m)^[ \t]*(?:[Pp]age[ \t]+)?\d+(?:[ \t]+of[ \t]+\d+)?[ \t]*$`)
	runningHeader  = regexp.MustCompile(`(?m)^Travel Insurance Policy\s*\|.*$`)
	spaceRun       = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines     = regexp.MustCompile(`\n{3,}`)
)

// Clean normalises extracted text: unified line endings, no standalone page
// number lines or running headers, single spaces, at most one blank line in
// a row. Newlines are kept so headings stay at line start.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = pageNumberLine.ReplaceAllString(text, "")
	text = runningHeader.ReplaceAllString(text, "")
	text = spaceRun.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
