package publish

import (
	"fmt"
	"strings"
)

// Robots returns robots.txt: everything but the JSON API is crawlable.
func Robots(site Site) string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	b.WriteString("Disallow: /api/\n\n")
	fmt.Fprintf(&b, "Sitemap: %s/sitemap.xml\n", site.URL)
	fmt.Fprintf(&b, "Sitemap: %s/news-sitemap.xml\n", site.URL)
	return b.String()
}
