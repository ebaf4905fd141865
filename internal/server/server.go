// Package server exposes the site's HTTP surface: the JSON API, the XML
// feeds and the content pipeline triggers.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deusflow/technews/internal/config"
	"github.com/deusflow/technews/internal/metrics"
	"github.com/deusflow/technews/internal/news"
	"github.com/deusflow/technews/internal/processor"
	"github.com/deusflow/technews/internal/publish"
	"github.com/deusflow/technews/internal/ratelimit"
	"github.com/deusflow/technews/internal/saved"
	"github.com/deusflow/technews/internal/source"
	"github.com/deusflow/technews/internal/urlscan"
)

// Pipeline is the content-processing side used by the trigger endpoints.
type Pipeline interface {
	FetchNews(ctx context.Context, limit int) ([]source.Item, error)
	Run(ctx context.Context) ([]processor.Result, error)
	Process(ctx context.Context, items []source.Item) []processor.Result
}

type LinkChecker interface {
	Check(ctx context.Context, raw string) (*urlscan.Report, error)
}

type Deps struct {
	Config    *config.Config
	Articles  *news.Service
	Pipeline  Pipeline
	Links     LinkChecker
	Saved     *saved.Set
	SavedPath string // empty keeps saved articles in memory only
	Limiter   *ratelimit.AIRateLimiter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

type Server struct {
	cfg      *config.Config
	site     publish.Site
	articles *news.Service
	pipeline Pipeline
	links    LinkChecker
	saved    *saved.Set
	savedTo  string
	limiter  *ratelimit.AIRateLimiter
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
	router   chi.Router
}

func New(d Deps) *Server {
	s := &Server{
		cfg:      d.Config,
		articles: d.Articles,
		pipeline: d.Pipeline,
		links:    d.Links,
		saved:    d.Saved,
		savedTo:  d.SavedPath,
		limiter:  d.Limiter,
		metrics:  d.Metrics,
		log:      d.Logger,
		now:      d.Now,
	}
	if s.saved == nil {
		s.saved = saved.New()
	}
	if s.metrics == nil {
		s.metrics = metrics.Global
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.site = publish.Site{
		URL:         d.Config.SiteURL,
		Name:        d.Config.SiteName,
		Description: "Новини за технологии, киберсигурност, SEO и изкуствен интелект",
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/feed.xml", s.handleFeed)
	r.Get("/news-sitemap.xml", s.handleNewsSitemap)
	r.Get("/sitemap.xml", s.handleSitemap)
	r.Get("/robots.txt", s.handleRobots)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/home", s.handleHome)
		r.Get("/articles", s.handleArticles)
		r.Get("/articles/{slug}", s.handleArticle)
		r.Get("/categories/{slug}", s.handleCategory)

		r.Get("/fetch-news", s.handleFetchNews)
		r.Post("/fetch-news", s.handleFetchNews)
		r.Post("/process-content", s.handleProcessContent)
		r.Post("/check-url", s.handleCheckURL)

		r.Get("/saved", s.handleListSaved)
		r.Post("/saved", s.handleAddSaved)
		r.Delete("/saved/{slug}", s.handleRemoveSaved)
	})

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.metrics.GetStats()

	status := "ok"
	code := http.StatusOK
	if healthy, _ := stats["is_healthy"].(bool); !healthy {
		status = "error"
		code = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
		"stats":      stats,
	}
	if s.limiter != nil {
		resp["ai_usage"] = s.limiter.GetStats()
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
