package news

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/deusflow/technews/internal/cache"
	"github.com/deusflow/technews/internal/metrics"
	"github.com/deusflow/technews/internal/wordpress"
)

// Revalidation windows for upstream reads.
const (
	PageWindow = 5 * time.Minute
	FeedWindow = time.Hour
)

// Upstream is the part of the WordPress client the service reads through.
type Upstream interface {
	Endpoint(resource string, q url.Values) string
	ListPosts(ctx context.Context, p wordpress.ListParams) (*wordpress.PostPage, error)
	PostBySlug(ctx context.Context, slug string) (*wordpress.Post, error)
	CategoryBySlug(ctx context.Context, slug string) (*wordpress.Category, error)
}

type ArticlePage struct {
	Articles   []Article `json:"articles"`
	Total      int       `json:"total"`
	TotalPages int       `json:"totalPages"`
}

type CategoryPage struct {
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	Articles []Article `json:"articles"`
}

// Service is the single way handlers get at the current article list. Reads
// are memoized per (endpoint, query, window); failed reads are not.
type Service struct {
	wp      Upstream
	cache   *cache.Cache
	norm    *Normalizer
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewService(wp Upstream, c *cache.Cache, norm *Normalizer, m *metrics.Metrics, log *slog.Logger) *Service {
	if norm == nil {
		norm = NewNormalizer()
	}
	if m == nil {
		m = metrics.Global
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{wp: wp, cache: c, norm: norm, metrics: m, log: log}
}

// Posts fetches one page of raw posts through the memo.
func (s *Service) Posts(ctx context.Context, p wordpress.ListParams, window time.Duration) (*wordpress.PostPage, error) {
	key := cache.Key(s.wp.Endpoint("posts", p.Values()), window.String())
	return cache.Remember(s.cache, key, window, func() (*wordpress.PostPage, error) {
		page, err := s.wp.ListPosts(ctx, p)
		s.metrics.RecordUpstreamFetch(err)
		return page, err
	})
}

// Articles returns the published, normalized articles of one page. An
// upstream failure yields an empty page and ok == false; it is logged here
// and never returned.
func (s *Service) Articles(ctx context.Context, p wordpress.ListParams, window time.Duration) (ArticlePage, bool) {
	page, err := s.Posts(ctx, p, window)
	if err != nil {
		s.log.Warn("article fetch failed, serving empty list", "error", err, "page", p.Page, "per_page", p.PerPage)
		return ArticlePage{Articles: []Article{}}, false
	}

	articles := s.norm.NormalizeAll(Published(page.Posts))
	s.metrics.AddArticlesNormalized(len(articles))
	return ArticlePage{
		Articles:   articles,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}, true
}

// Article looks up a single published article by slug. A missing or
// unpublished post is wordpress.ErrNotFound.
func (s *Service) Article(ctx context.Context, slug string) (*Article, error) {
	q := wordpress.ListParams{Slug: slug, Embed: true, PerPage: 1}.Values()
	key := cache.Key(s.wp.Endpoint("posts", q), PageWindow.String())
	post, err := cache.Remember(s.cache, key, PageWindow, func() (*wordpress.Post, error) {
		p, err := s.wp.PostBySlug(ctx, slug)
		if errors.Is(err, wordpress.ErrNotFound) {
			s.metrics.RecordUpstreamFetch(nil)
		} else {
			s.metrics.RecordUpstreamFetch(err)
		}
		return p, err
	})
	if err != nil {
		return nil, err
	}
	if len(Published([]wordpress.Post{*post})) == 0 {
		return nil, wordpress.ErrNotFound
	}
	a := s.norm.Normalize(*post)
	return &a, nil
}

// Category resolves a category slug and lists its latest articles. An
// unknown slug or an upstream failure gives an empty list.
func (s *Service) Category(ctx context.Context, slug string, limit int) (CategoryPage, bool) {
	out := CategoryPage{Name: slug, Slug: slug, Articles: []Article{}}

	q := url.Values{}
	q.Set("slug", slug)
	cat, err := cache.Remember(s.cache, cache.Key(s.wp.Endpoint("categories", q), FeedWindow.String()), FeedWindow,
		func() (*wordpress.Category, error) {
			return s.wp.CategoryBySlug(ctx, slug)
		})
	if err != nil {
		if errors.Is(err, wordpress.ErrNotFound) {
			return out, true
		}
		s.log.Warn("category lookup failed", "slug", slug, "error", err)
		return out, false
	}
	out.Name = cat.Name

	page, ok := s.Articles(ctx, wordpress.ListParams{
		PerPage:    limit,
		Categories: []int64{cat.ID},
		Embed:      true,
	}, PageWindow)
	out.Articles = page.Articles
	return out, ok
}
