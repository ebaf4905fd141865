package publish

import (
	"encoding/xml"
	"sort"
	"strconv"
	"time"

	"github.com/deusflow/technews/internal/news"
)

const day = 24 * time.Hour

type SitemapEntry struct {
	URL             string    `json:"url"`
	LastModified    time.Time `json:"lastModified"`
	ChangeFrequency string    `json:"changeFrequency"`
	Priority        float64   `json:"priority"`
}

type staticRoute struct {
	path       string
	changeFreq string
	priority   float64
}

var staticRoutes = []staticRoute{
	{"", "daily", 1.0},
	{"/category/cybersecurity", "daily", 0.8},
	{"/category/seo", "daily", 0.8},
	{"/category/ai", "daily", 0.8},
	{"/category/technology", "daily", 0.8},
	{"/tools/seo-checker", "monthly", 0.7},
	{"/tools/text-analyzer", "monthly", 0.7},
	{"/tools/url-shortener", "monthly", 0.7},
	{"/tools/password-generator", "monthly", 0.7},
	{"/saved", "monthly", 0.5},
	{"/about", "yearly", 0.5},
	{"/contact", "yearly", 0.5},
}

// Sitemap lists the static routes and one entry per article, highest
// priority first. Article priority decays with age.
func Sitemap(site Site, articles []news.Article, now time.Time) []SitemapEntry {
	entries := make([]SitemapEntry, 0, len(staticRoutes)+len(articles))
	for _, r := range staticRoutes {
		entries = append(entries, SitemapEntry{
			URL:             site.URL + r.path,
			LastModified:    now,
			ChangeFrequency: r.changeFreq,
			Priority:        r.priority,
		})
	}

	for _, a := range articles {
		published := articleTime(a.PublishedAt, now)
		age := now.Sub(published)
		entries = append(entries, SitemapEntry{
			URL:             site.ArticleURL(a.Slug),
			LastModified:    articleTime(a.ModifiedAt, published),
			ChangeFrequency: articleChangeFreq(age),
			Priority:        articlePriority(age),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Priority > entries[j].Priority
	})
	return entries
}

func articlePriority(age time.Duration) float64 {
	switch {
	case age <= 7*day:
		return 0.9
	case age <= 30*day:
		return 0.8
	case age <= 90*day:
		return 0.7
	default:
		return 0.6
	}
}

func articleChangeFreq(age time.Duration) string {
	if age <= 30*day {
		return "weekly"
	}
	return "monthly"
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// MarshalSitemap writes entries as a sitemaps.org urlset.
func MarshalSitemap(entries []SitemapEntry) ([]byte, error) {
	set := urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]sitemapURL, 0, len(entries)),
	}
	for _, e := range entries {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        e.URL,
			LastMod:    e.LastModified.UTC().Format(time.RFC3339),
			ChangeFreq: e.ChangeFrequency,
			Priority:   strconv.FormatFloat(e.Priority, 'f', 1, 64),
		})
	}
	return encode(set)
}
