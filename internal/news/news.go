package news

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/technews/internal/wordpress"
)

// Fallback values for fields the upstream record does not carry.
const (
	DefaultTitle       = "Без заглавие"
	DefaultDescription = "Няма описание."
	DefaultCategory    = "Без категория"
	DefaultAuthor      = "Неизвестен автор"
	DefaultImage       = "/placeholder.jpg"
	ArticlePathPrefix  = "/article/"

	SourceID   = "techbg"
	SourceName = "TechBG Новини"
)

// Category labels used for the home page buckets. Matching is exact.
const (
	CategoryCybersecurity = "Киберсигурност"
	CategorySEO           = "SEO"
	CategoryAI            = "AI"
)

type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Article is the canonical, fully defaulted form of a post. Every field is
// always set.
type Article struct {
	ID                    string `json:"id"`
	Slug                  string `json:"slug"`
	Title                 string `json:"title"`
	TranslatedTitle       string `json:"translatedTitle"`
	Description           string `json:"description"`
	TranslatedDescription string `json:"translatedDescription"`
	Summary               string `json:"summary"`
	Category              string `json:"category"`
	PublishedAt           string `json:"publishedAt"`
	ModifiedAt            string `json:"modifiedAt"`
	URLToImage            string `json:"urlToImage"`
	URL                   string `json:"url"`
	Author                string `json:"author"`
	Source                Source `json:"source"`
}

var reTags = regexp.MustCompile(`<[^>]*>`)

// StripTags removes every <...> tag in a single pass and trims the result.
func StripTags(s string) string {
	return strings.TrimSpace(reTags.ReplaceAllString(s, ""))
}

// Normalizer turns raw posts into articles. Now and NewID are injectable so
// normalization stays deterministic in tests.
type Normalizer struct {
	Now   func() time.Time
	NewID func() string
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

// Normalize maps one post to an Article, filling defaults for whatever is
// missing. It never fails.
func (n *Normalizer) Normalize(p wordpress.Post) Article {
	slug, _ := p.SlugValue()

	id, ok := p.IDString()
	if !ok {
		if slug != "" {
			id = "slug-" + slug
		} else {
			id = n.newID()
		}
	}

	title, ok := p.TitleHTML()
	if !ok {
		title = DefaultTitle
	}

	description := DefaultDescription
	if excerpt, ok := p.ExcerptHTML(); ok {
		if stripped := StripTags(excerpt); stripped != "" {
			description = stripped
		}
	}

	category, ok := p.PrimaryTerm()
	if !ok {
		category = DefaultCategory
	}

	publishedAt, ok := p.DateValue()
	if !ok {
		publishedAt = n.now().UTC().Format(time.RFC3339)
	}
	modifiedAt, ok := p.ModifiedValue()
	if !ok {
		modifiedAt = publishedAt
	}

	image, ok := p.FeaturedImage()
	if !ok {
		image = DefaultImage
	}

	author, ok := p.AuthorName()
	if !ok {
		author = DefaultAuthor
	}

	return Article{
		ID:                    id,
		Slug:                  slug,
		Title:                 title,
		TranslatedTitle:       title,
		Description:           description,
		TranslatedDescription: description,
		Summary:               description,
		Category:              category,
		PublishedAt:           publishedAt,
		ModifiedAt:            modifiedAt,
		URLToImage:            image,
		URL:                   ArticlePathPrefix + slug,
		Author:                author,
		Source:                Source{ID: SourceID, Name: SourceName},
	}
}

// NormalizeAll keeps input order.
func (n *Normalizer) NormalizeAll(posts []wordpress.Post) []Article {
	out := make([]Article, 0, len(posts))
	for _, p := range posts {
		out = append(out, n.Normalize(p))
	}
	return out
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

func (n *Normalizer) newID() string {
	if n.NewID == nil {
		return uuid.NewString()
	}
	return n.NewID()
}

// Published drops posts whose status is set to anything but "publish". The
// public endpoint omits status for sparse field sets, so absent counts as
// published.
func Published(posts []wordpress.Post) []wordpress.Post {
	out := make([]wordpress.Post, 0, len(posts))
	for _, p := range posts {
		if status, ok := p.StatusValue(); ok && status != wordpress.StatusPublish {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ParseTime accepts RFC 3339 and WordPress' zone-less local format, which is
// read as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}
