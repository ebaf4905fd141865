package news

import (
	"regexp"
	"strings"
)

var reTerminators = regexp.MustCompile(`[.!?]+`)

// Truncate cuts text right after its nth sentence terminator run (one or
// more of . ! ?), keeping the terminator. Text with fewer than n sentences
// comes back trimmed but otherwise unchanged.
func Truncate(text string, n int) string {
	text = strings.TrimSpace(text)
	if text == "" || n <= 0 {
		return text
	}

	runs := reTerminators.FindAllStringIndex(text, n)
	if len(runs) < n {
		return text
	}
	return strings.TrimSpace(text[:runs[n-1][1]])
}

// Summary strips markup from an HTML excerpt and truncates it to n
// sentences.
func Summary(html string, n int) string {
	return Truncate(StripTags(html), n)
}
