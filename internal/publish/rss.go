package publish

import (
	"encoding/xml"
	"time"

	"github.com/deusflow/technews/internal/news"
)

// FeedCategories are repeated on every item regardless of its own category.
var FeedCategories = []string{"Технологии", "Киберсигурност", "SEO", "Technology", "Cybersecurity"}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	AtomLink      atomLink  `xml:"atom:link"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       cdata    `xml:"title"`
	Description cdata    `xml:"description"`
	Link        string   `xml:"link"`
	GUID        rssGUID  `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Categories  []string `xml:"category"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink string `xml:"isPermaLink,attr"`
}

// RSS renders the articles as an RSS 2.0 channel. Callers pass only
// published articles. lastBuildDate is the newest modification time, or now
// for an empty list.
func RSS(site Site, articles []news.Article, now time.Time) ([]byte, error) {
	doc := rssDoc{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:       xmlText(site.Name),
			Link:        site.URL,
			Description: xmlText(site.Description),
			Language:    "bg",
			AtomLink: atomLink{
				Href: site.URL + "/feed.xml",
				Rel:  "self",
				Type: "application/rss+xml",
			},
			LastBuildDate: lastBuildDate(articles, now).Format(time.RFC1123Z),
			Items:         make([]rssItem, 0, len(articles)),
		},
	}

	for _, a := range articles {
		link := site.ArticleURL(a.Slug)
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       newCDATA(a.Title),
			Description: newCDATA(a.Description),
			Link:        link,
			GUID:        rssGUID{Value: link, IsPermaLink: "true"},
			PubDate:     articleTime(a.PublishedAt, now).Format(time.RFC1123Z),
			Categories:  FeedCategories,
		})
	}
	return encode(doc)
}

func lastBuildDate(articles []news.Article, now time.Time) time.Time {
	var newest time.Time
	for _, a := range articles {
		t, ok := news.ParseTime(a.ModifiedAt)
		if !ok {
			continue
		}
		if t.After(newest) {
			newest = t
		}
	}
	if newest.IsZero() {
		return now
	}
	return newest
}
