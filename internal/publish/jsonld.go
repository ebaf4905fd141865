package publish

import (
	"strings"

	"github.com/deusflow/technews/internal/news"
)

// StructuredData builds the schema.org NewsArticle JSON-LD object for an
// article page.
func StructuredData(site Site, a news.Article) map[string]any {
	image := a.URLToImage
	if strings.HasPrefix(image, "/") {
		image = site.URL + image
	}
	return map[string]any{
		"@context":         "https://schema.org",
		"@type":            "NewsArticle",
		"headline":         news.StripTags(a.Title),
		"description":      a.Summary,
		"image":            []string{image},
		"datePublished":    a.PublishedAt,
		"dateModified":     a.ModifiedAt,
		"articleSection":   a.Category,
		"inLanguage":       "bg",
		"mainEntityOfPage": site.ArticleURL(a.Slug),
		"author": map[string]any{
			"@type": "Person",
			"name":  a.Author,
		},
		"publisher": map[string]any{
			"@type": "Organization",
			"name":  site.Name,
			"logo": map[string]any{
				"@type": "ImageObject",
				"url":   site.URL + "/logo.png",
			},
		},
	}
}
