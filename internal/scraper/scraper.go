package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ArticleContent is full article content
type ArticleContent struct {
	Title   string
	Content string
	URL     string
}

const (
	maxContentChars = 4000
	minParagraph    = 20
)

// siteSelectors are tried before the generic ones for known hosts.
var siteSelectors = map[string][]string{
	"bleepingcomputer.com": {".articleBody p"},
	"thehackernews.com":    {"#articlebody p", ".articlebody p"},
	"krebsonsecurity.com":  {".entry-content p"},
	"searchengineland.com": {".post-body p", ".entry-content p"},
	"seroundtable.com":     {".post-body p", ".entry p"},
	"techcrunch.com":       {".wp-block-post-content p", ".article-content p"},
}

var genericSelectors = []string{
	"article p",
	".article p",
	".entry-content p",
	".post-content p",
	".content p",
	"main p",
	"#content p",
	"p",
}

var junkIndicators = []string{
	"cookie", "gdpr", "subscribe to", "sign up for", "newsletter",
	"read more", "related:", "advertisement", "all rights reserved",
	"абонирай", "бисквитки", "прочетете още",
}

type Scraper struct {
	http *http.Client
	log  *slog.Logger
}

func New(hc *http.Client, log *slog.Logger) *Scraper {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scraper{http: hc, log: log}
}

// ExtractFullArticle gets full text of article by URL
func (s *Scraper) ExtractFullArticle(ctx context.Context, rawURL string) (*ArticleContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; technews/1.0)")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	doc.Find("script, style, nav, footer, aside, form").Remove()

	content := cleanContent(extractParagraphs(doc, selectorsFor(rawURL)))
	if content == "" {
		return nil, fmt.Errorf("can't get content from %s", rawURL)
	}

	return &ArticleContent{
		Title:   extractTitle(doc),
		Content: content,
		URL:     rawURL,
	}, nil
}

func selectorsFor(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return genericSelectors
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if site, ok := siteSelectors[host]; ok {
		return append(append([]string{}, site...), genericSelectors...)
	}
	return genericSelectors
}

// extractParagraphs returns the paragraphs of the first selector that finds
// at least one usable paragraph.
func extractParagraphs(doc *goquery.Document, selectors []string) []string {
	for _, selector := range selectors {
		var paragraphs []string
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.Join(strings.Fields(s.Text()), " ")
			if len([]rune(text)) >= minParagraph {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			return paragraphs
		}
	}
	return nil
}

// extractTitle gets article title
func extractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	for _, selector := range []string{"h1", ".entry-title", ".headline", "title"} {
		if title := strings.TrimSpace(doc.Find(selector).First().Text()); title != "" {
			return title
		}
	}
	return ""
}

// cleanContent drops junk paragraphs and keeps whole paragraphs up to the
// length limit.
func cleanContent(paragraphs []string) string {
	var kept []string
	total := 0
	for _, p := range paragraphs {
		lower := strings.ToLower(p)
		junk := false
		for _, indicator := range junkIndicators {
			if strings.Contains(lower, indicator) {
				junk = true
				break
			}
		}
		if junk {
			continue
		}
		if total > 0 && total+len(p) > maxContentChars {
			break
		}
		kept = append(kept, p)
		total += len(p) + 2
	}
	return strings.Join(kept, "\n\n")
}
