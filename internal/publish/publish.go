// Package publish serializes the canonical article list into the site's
// machine-readable formats: RSS 2.0, Google News sitemap, URL sitemap,
// robots rules and JSON-LD.
package publish

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/deusflow/technews/internal/news"
)

// Site is the static channel metadata shared by every serializer.
type Site struct {
	URL         string // absolute, no trailing slash
	Name        string
	Description string
}

// ArticleURL is the absolute link of an article.
func (s Site) ArticleURL(slug string) string {
	return s.URL + news.ArticlePathPrefix + slug
}

type cdata struct {
	Value string `xml:",cdata"`
}

// newCDATA wraps s for a CDATA section. encoding/xml does not filter CDATA
// content, so characters XML cannot carry are dropped here.
func newCDATA(s string) cdata {
	return cdata{Value: xmlText(s)}
}

// xmlText removes runes outside the XML 1.0 Char production.
func xmlText(s string) string {
	return strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return -1
	}, s)
}

func isXMLChar(r rune) bool {
	switch {
	case r == 0x09 || r == 0x0A || r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode xml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// articleTime parses an article timestamp, using fallback when it is not a
// recognised format.
func articleTime(s string, fallback time.Time) time.Time {
	if t, ok := news.ParseTime(s); ok {
		return t
	}
	return fallback
}
