// Package translate turns foreign-language news into Bulgarian titles,
// summaries and body text.
package translate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/deusflow/technews/internal/news"
)

var ErrUnparsable = errors.New("could not parse model response")

// Result is one translated and summarized story.
type Result struct {
	Title   string
	Summary string
	Content string
}

// Enricher translates and summarizes a single story.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, title, content string) (*Result, error)
}

const maxPromptChars = 6000

// PrepareContent collapses whitespace and cuts content to a prompt-sized
// chunk, ending at a sentence when one is close enough.
func PrepareContent(content string) string {
	content = strings.ReplaceAll(content, "\r", "")
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) <= maxPromptChars {
		return content
	}

	runes := []rune(content)
	trimmed := string(runes[:maxPromptChars])
	if idx := strings.LastIndex(trimmed, ". "); idx > 1200 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed + "\n[TRUNCATED]"
}

// Prompt asks the model for a Bulgarian translation in a fixed labelled
// format that ParseResponse understands.
func Prompt(title, content string) string {
	return fmt.Sprintf(`Преведи и обобщи следната новина на български език.

НОВИНА:
Заглавие: %s
Съдържание: %s

ИЗИСКВАНИЯ:
Не превеждай имена на марки, продукти и организации.
Резюмето е едно или две изречения без встъпителни фрази.
Запази журналистическия стил на оригинала.

Отговори строго по шаблона:

ЗАГЛАВИЕ: <преведено заглавие>
РЕЗЮМЕ: <кратко резюме>
ТЕКСТ: <пълен превод>
`, title, PrepareContent(content))
}

var labelPatterns = []struct {
	name  string
	regex *regexp.Regexp
}{
	{"title", regexp.MustCompile(`(?i)^\**\s*(ЗАГЛАВИЕ|TITLE)\s*\**\s*:\s*\**\s*`)},
	{"summary", regexp.MustCompile(`(?i)^\**\s*(РЕЗЮМЕ|SUMMARY)\s*\**\s*:\s*\**\s*`)},
	{"content", regexp.MustCompile(`(?i)^\**\s*(ТЕКСТ|СЪДЪРЖАНИЕ|TEXT|CONTENT)\s*\**\s*:\s*\**\s*`)},
}

// ParseResponse reads the labelled sections of a model reply. Lines without
// a label continue the previous section. A missing summary is derived from
// the text.
func ParseResponse(response string) (*Result, error) {
	sections := map[string]*strings.Builder{}
	current := ""

	appendText := func(section, text string) {
		if text == "" {
			return
		}
		b, ok := sections[section]
		if !ok {
			b = &strings.Builder{}
			sections[section] = b
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}

	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		matched := false
		for _, lp := range labelPatterns {
			if lp.regex.MatchString(line) {
				current = lp.name
				appendText(current, strings.TrimSpace(lp.regex.ReplaceAllString(line, "")))
				matched = true
				break
			}
		}
		if !matched && current != "" {
			appendText(current, line)
		}
	}

	get := func(name string) string {
		if b, ok := sections[name]; ok {
			return SanitizeAIText(b.String())
		}
		return ""
	}

	res := &Result{Title: get("title"), Summary: get("summary"), Content: get("content")}
	if res.Title == "" || res.Content == "" {
		return nil, fmt.Errorf("%w: title=%t text=%t", ErrUnparsable, res.Title != "", res.Content != "")
	}
	if res.Summary == "" {
		res.Summary = news.Truncate(res.Content, news.CardSentences)
	}
	return res, nil
}

var (
	reInlineNote = regexp.MustCompile(`(?i)[\(\[]\s*(note|забележка)\s*:[^\)\]]*[\)\]]`)
	reNoteLine   = regexp.MustCompile(`(?i)^(note|забележка)\s*:`)
)

// SanitizeAIText removes machine-translation disclaimers that models add to
// their output.
func SanitizeAIText(s string) string {
	s = reInlineNote.ReplaceAllString(s, "")

	var kept []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || reNoteLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
