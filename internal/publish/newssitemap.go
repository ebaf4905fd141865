package publish

import (
	"encoding/xml"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/deusflow/technews/internal/news"
)

const (
	defaultNewsCategory = "Technology"
	newsKeywords        = "технологии, киберсигурност, SEO, изкуствен интелект, новини"
	newsGenres          = "Blog, OpEd"
)

// newsCategories is checked in order; the first key that contains or is
// contained in the upstream name wins. Word keys only match a whole word.
var newsCategories = []struct {
	key   string
	value string
	word  bool
}{
	{"технологии", "Technology", false},
	{"киберсигурност", "Technology", false},
	{"сигурност", "Technology", false},
	{"изкуствен интелект", "Technology", false},
	{"seo", "Business", true},
	{"маркетинг", "Business", false},
	{"бизнес", "Business", false},
	{"финанси", "Business", false},
	{"ai", "Technology", true},
	{"софтуер", "Technology", false},
	{"наука", "Science", false},
	{"здраве", "Health", false},
}

// MapNewsCategory maps an upstream category name to a Google News category.
func MapNewsCategory(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return defaultNewsCategory
	}
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, c := range newsCategories {
		if c.word {
			if slices.Contains(words, c.key) {
				return c.value
			}
			continue
		}
		if strings.Contains(name, c.key) || strings.Contains(c.key, name) {
			return c.value
		}
	}
	return defaultNewsCategory
}

type newsURLSet struct {
	XMLName xml.Name  `xml:"urlset"`
	Xmlns   string    `xml:"xmlns,attr"`
	News    string    `xml:"xmlns:news,attr"`
	URLs    []newsURL `xml:"url"`
}

type newsURL struct {
	Loc  string    `xml:"loc"`
	News newsEntry `xml:"news:news"`
}

type newsEntry struct {
	Publication     newsPublication `xml:"news:publication"`
	PublicationDate string          `xml:"news:publication_date"`
	Title           cdata           `xml:"news:title"`
	Keywords        string          `xml:"news:keywords"`
	Genres          string          `xml:"news:genres"`
}

type newsPublication struct {
	Name     string `xml:"news:name"`
	Language string `xml:"news:language"`
}

// NewsSitemap renders the Google News sitemap for published articles.
func NewsSitemap(site Site, articles []news.Article, now time.Time) ([]byte, error) {
	set := newsURLSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		News:  "http://www.google.com/schemas/sitemap-news/0.9",
		URLs:  make([]newsURL, 0, len(articles)),
	}
	for _, a := range articles {
		set.URLs = append(set.URLs, newsURL{
			Loc: site.ArticleURL(a.Slug),
			News: newsEntry{
				Publication:     newsPublication{Name: xmlText(site.Name), Language: "bg"},
				PublicationDate: articleTime(a.PublishedAt, now).Format(time.RFC3339),
				Title:           newCDATA(a.Title),
				Keywords:        MapNewsCategory(a.Category) + ", " + newsKeywords,
				Genres:          newsGenres,
			},
		})
	}
	return encode(set)
}
