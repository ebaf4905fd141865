package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/deusflow/technews/internal/news"
	"github.com/deusflow/technews/internal/publish"
	"github.com/deusflow/technews/internal/wordpress"
)

const (
	homeArticles     = 20
	defaultPerPage   = 12
	maxPerPage       = 100
	jsonCacheOK      = "public, max-age=300, s-maxage=300"
	jsonCacheDegrade = "no-store"
)

var errBadPaging = errors.New("page and per_page must be positive integers, per_page at most 100")

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	page, ok := s.articles.Articles(r.Context(), wordpress.ListParams{PerPage: homeArticles, Embed: true}, news.PageWindow)
	setJSONCache(w, ok)
	writeJSON(w, http.StatusOK, news.Assemble(page.Articles))
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	pageNum, err := queryInt(r, "page", 1, 1, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadPaging.Error())
		return
	}
	perPage, err := queryInt(r, "per_page", defaultPerPage, 1, maxPerPage)
	if err != nil {
		writeError(w, http.StatusBadRequest, errBadPaging.Error())
		return
	}

	page, ok := s.articles.Articles(r.Context(), wordpress.ListParams{
		Page:    pageNum,
		PerPage: perPage,
		Embed:   true,
	}, news.PageWindow)
	setJSONCache(w, ok)
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		writeError(w, http.StatusBadRequest, "slug is required")
		return
	}

	a, err := s.articles.Article(r.Context(), slug)
	switch {
	case errors.Is(err, wordpress.ErrNotFound):
		writeError(w, http.StatusNotFound, "article not found")
		return
	case err != nil:
		s.log.Warn("article lookup failed", "slug", slug, "error", err)
		writeError(w, http.StatusBadGateway, "article source unavailable")
		return
	}

	setJSONCache(w, true)
	writeJSON(w, http.StatusOK, map[string]any{
		"article":        a,
		"structuredData": publish.StructuredData(s.site, *a),
		"saved":          s.saved.Contains(a.Slug),
	})
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPerPage, 1, maxPerPage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	page, ok := s.articles.Category(r.Context(), chi.URLParam(r, "slug"), limit)
	setJSONCache(w, ok)
	writeJSON(w, http.StatusOK, page)
}

func setJSONCache(w http.ResponseWriter, upstreamOK bool) {
	if upstreamOK {
		w.Header().Set("Cache-Control", jsonCacheOK)
		return
	}
	w.Header().Set("Cache-Control", jsonCacheDegrade)
}

// queryInt reads an integer query parameter. hi <= 0 means no upper bound.
func queryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < lo || (hi > 0 && n > hi) {
		return 0, strconv.ErrRange
	}
	return n, nil
}
