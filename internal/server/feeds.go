package server

import (
	"net/http"

	"github.com/deusflow/technews/internal/news"
	"github.com/deusflow/technews/internal/publish"
	"github.com/deusflow/technews/internal/wordpress"
)

const (
	feedItems        = 20
	sitemapArticles  = 100
	cacheLong        = "public, max-age=3600, s-maxage=3600"
	cacheShort       = "public, max-age=300"
	xmlContentType   = "application/xml; charset=utf-8"
	robotsCacheValue = "public, max-age=86400"
)

func (s *Server) latest(r *http.Request, n int) ([]news.Article, bool) {
	page, ok := s.articles.Articles(r.Context(), wordpress.ListParams{PerPage: n, Embed: true}, news.FeedWindow)
	return page.Articles, ok
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	articles, ok := s.latest(r, feedItems)
	body, err := publish.RSS(s.site, articles, s.now())
	s.writeXML(w, body, err, ok)
}

func (s *Server) handleNewsSitemap(w http.ResponseWriter, r *http.Request) {
	articles, ok := s.latest(r, sitemapArticles)
	body, err := publish.NewsSitemap(s.site, articles, s.now())
	s.writeXML(w, body, err, ok)
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	articles, ok := s.latest(r, sitemapArticles)
	body, err := publish.MarshalSitemap(publish.Sitemap(s.site, articles, s.now()))
	s.writeXML(w, body, err, ok)
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", robotsCacheValue)
	_, _ = w.Write([]byte(publish.Robots(s.site)))
}

// writeXML sends an XML document. A document built from a failed upstream
// read is still sent, with a short cache lifetime.
func (s *Server) writeXML(w http.ResponseWriter, body []byte, err error, upstreamOK bool) {
	if err != nil {
		s.log.Error("failed to encode xml", "error", err)
		http.Error(w, "failed to encode document", http.StatusInternalServerError)
		return
	}
	cacheControl := cacheLong
	if !upstreamOK {
		cacheControl = cacheShort
	}
	w.Header().Set("Content-Type", xmlContentType)
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
