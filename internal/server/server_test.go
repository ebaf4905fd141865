package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/technews/internal/cache"
	"github.com/deusflow/technews/internal/config"
	"github.com/deusflow/technews/internal/metrics"
	"github.com/deusflow/technews/internal/news"
	"github.com/deusflow/technews/internal/processor"
	"github.com/deusflow/technews/internal/saved"
	"github.com/deusflow/technews/internal/source"
	"github.com/deusflow/technews/internal/urlscan"
	"github.com/deusflow/technews/internal/wordpress"
)

const wpPosts = `[
  {
    "id": 11,
    "title": {"rendered": "Нова уязвимост в рутери"},
    "excerpt": {"rendered": "<p>Първо изречение. Второ изречение.</p>"},
    "slug": "nova-uyazvimost",
    "date": "2024-06-02T09:00:00",
    "modified": "2024-06-02T10:00:00",
    "status": "publish",
    "_embedded": {"wp:term": [[{"id": 4, "name": "Киберсигурност", "slug": "kibersigurnost", "taxonomy": "category"}]]}
  },
  {
    "id": 12,
    "title": {"rendered": "Промени в алгоритъма"},
    "excerpt": {"rendered": "<p>SEO новини.</p>"},
    "slug": "promeni-algoritam",
    "date": "2024-06-01T09:00:00",
    "status": "publish",
    "_embedded": {"wp:term": [[{"id": 5, "name": "SEO", "slug": "seo", "taxonomy": "category"}]]}
  },
  {
    "id": 13,
    "title": {"rendered": "Чернова"},
    "slug": "chernova",
    "status": "draft"
  }
]`

var testNow = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

type fakePipeline struct {
	items   []source.Item
	err     error
	got     []source.Item
	ran     bool
	limitIn int
}

func (f *fakePipeline) FetchNews(_ context.Context, limit int) ([]source.Item, error) {
	f.limitIn = limit
	return f.items, f.err
}

func (f *fakePipeline) Run(_ context.Context) ([]processor.Result, error) {
	f.ran = true
	if f.err != nil {
		return nil, f.err
	}
	return []processor.Result{{Title: "БГ", Status: processor.StatusPublished}}, nil
}

func (f *fakePipeline) Process(_ context.Context, items []source.Item) []processor.Result {
	f.got = items
	out := make([]processor.Result, len(items))
	for i, it := range items {
		out[i] = processor.Result{OriginalTitle: it.Title, Status: processor.StatusPublished}
	}
	return out
}

type fakeLinks struct{}

func (fakeLinks) Check(_ context.Context, raw string) (*urlscan.Report, error) {
	if _, err := urlscan.ParseTarget(raw); err != nil {
		return nil, err
	}
	return &urlscan.Report{URL: raw, Verdict: urlscan.VerdictSafe, Reputation: urlscan.Reputation{Simulated: true}}, nil
}

type fixture struct {
	cfg      *config.Config
	pipeline *fakePipeline
	metrics  *metrics.Metrics
	handler  http.Handler
}

func newFixture(t *testing.T, wp http.HandlerFunc, mutate func(*Deps)) *fixture {
	t.Helper()
	upstream := httptest.NewServer(wp)
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.SiteURL = "https://techbg.test"
	cfg.WordPressURL = upstream.URL + "/wp-json/wp/v2"

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	c := cache.New(0)
	t.Cleanup(c.Close)

	client := wordpress.NewClient(wordpress.Options{BaseURL: cfg.WordPressURL, Logger: log})
	svc := news.NewService(client, c, news.NewNormalizer(), m, log)

	f := &fixture{cfg: cfg, pipeline: &fakePipeline{}, metrics: m}
	deps := Deps{
		Config:   cfg,
		Articles: svc,
		Pipeline: f.pipeline,
		Links:    fakeLinks{},
		Metrics:  m,
		Logger:   log,
		Now:      func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&deps)
	}
	f.handler = New(deps).Handler()
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func wordPressOK(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wp-json/wp/v2/posts":
			if slug := r.URL.Query().Get("slug"); slug != "" {
				if slug == "nova-uyazvimost" {
					var posts []json.RawMessage
					assert.NoError(t, json.Unmarshal([]byte(wpPosts), &posts))
					_, _ = w.Write([]byte("[" + string(posts[0]) + "]"))
					return
				}
				_, _ = w.Write([]byte("[]"))
				return
			}
			w.Header().Set("X-WP-Total", "3")
			w.Header().Set("X-WP-TotalPages", "1")
			_, _ = w.Write([]byte(wpPosts))
		case "/wp-json/wp/v2/categories":
			if r.URL.Query().Get("slug") == "seo" {
				_, _ = w.Write([]byte(`[{"id": 5, "name": "SEO", "slug": "seo", "count": 1}]`))
				return
			}
			_, _ = w.Write([]byte("[]"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func wordPressDown(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusInternalServerError)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestFeed_UpstreamFailureServesEmptyChannel(t *testing.T) {
	f := newFixture(t, wordPressDown, nil)

	rec := f.do(http.MethodGet, "/feed.xml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

	feed, err := gofeed.NewParser().ParseString(rec.Body.String())
	require.NoError(t, err)
	assert.Empty(t, feed.Items)
	assert.Equal(t, "https://techbg.test", feed.Link)

	assert.EqualValues(t, 1, f.metrics.GetStats()["upstream_failures"])
}

func TestFeed_OK(t *testing.T) {
	f := newFixture(t, wordPressOK(t), nil)

	rec := f.do(http.MethodGet, "/feed.xml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600, s-maxage=3600", rec.Header().Get("Cache-Control"))

	feed, err := gofeed.NewParser().ParseString(rec.Body.String())
	require.NoError(t, err)
	require.Len(t, feed.Items, 2)
	assert.Equal(t, "Нова уязвимост в рутери", feed.Items[0].Title)
	assert.Equal(t, "https://techbg.test/article/nova-uyazvimost", feed.Items[0].Link)
}

func TestSitemaps(t *testing.T) {
	f := newFixture(t, wordPressOK(t), nil)

	for _, path := range []string{"/sitemap.xml", "/news-sitemap.xml"} {
		rec := f.do(http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/xml; charset=utf-8", rec.Header().Get("Content-Type"), path)
		assert.Equal(t, cacheLong, rec.Header().Get("Cache-Control"), path)
		assert.Contains(t, rec.Body.String(), "https://techbg.test/article/promeni-algoritam", path)
		assert.NotContains(t, rec.Body.String(), "chernova", path)
	}

	down := newFixture(t, wordPressDown, nil)
	rec := down.do(http.MethodGet, "/sitemap.xml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cacheShort, rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "<urlset")
}

func TestRobots(t *testing.T) {
	f := newFixture(t, wordPressOK(t), nil)
	rec := f.do(http.MethodGet, "/robots.txt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sitemap: https://techbg.test/sitemap.xml")
}

func TestHome(t *testing.T) {
	f := newFixture(t, wordPressOK(t), nil)

	rec := f.do(http.MethodGet, "/api/home", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)

	latest := body["latestArticle"].(map[string]any)
	assert.Equal(t, "nova-uyazvimost", latest["slug"])
	assert.Equal(t, "Първо изречение. Второ изречение.", body["latestSummary"])
	assert.Len(t, body["seo"], 1)
	assert.Len(t, body["trendingItems"], 2)
}

func TestArticles(t *testing.T) {
	f := newFixture(t, wordPressOK(t), nil)

	rec := f.do(http.MethodGet, "/api/articles?page=1&per_page=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["articles"], 2)
	assert.EqualValues(t, 3, body["total"])

	for _, q := range []string{"page=0", "per_page=500", "page=abc"} {
		rec := f.do(http.MethodGet, "/api/articles?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Contains(t, decode(t, rec), "error")
	}

	down := newFixture(t, wordPressDown, nil)
	rec = down.do(http.MethodGet, "/api/articles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, decode(t, rec)["articles"])
}

func TestArticle(t *testing.T) {
	f := newFixture(t, wordPressOK(t), nil)

	rec := f.do(http.MethodGet, "/api/articles/nova-uyazvimost", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Нова уязвимост в рутери", body["article"].(map[string]any)["title"])
	assert.Equal(t, "NewsArticle", body["structuredData"].(map[string]any)["@type"])
	assert.Equal(t, false, body["saved"])

	rec = f.do(http.MethodGet, "/api/articles/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	down := newFixture(t, wordPressDown, nil)
	rec = down.do(http.MethodGet, "/api/articles/nova-uyazvimost", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCategory(t *testing.T) {
	f := newFixture(t, wordPressOK(t), nil)

	rec := f.do(http.MethodGet, "/api/categories/seo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SEO", decode(t, rec)["name"])

	rec = f.do(http.MethodGet, "/api/categories/unknown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "unknown", body["name"])
	assert.Empty(t, body["articles"])

	rec = f.do(http.MethodGet, "/api/categories/seo?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFetchNews(t *testing.T) {
	f := newFixture(t, wordPressOK(t), nil)

	rec := f.do(http.MethodGet, "/api/fetch-news", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "NEWS_API_KEY")

	f.cfg.NewsAPIKey = "key"
	f.pipeline.items = []source.Item{{Title: "A", URL: "https://src.example/a"}}

	rec = f.do(http.MethodGet, "/api/fetch-news?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.EqualValues(t, 1, body["count"])
	assert.Equal(t, 5, f.pipeline.limitIn)

	rec = f.do(http.MethodPost, "/api/fetch-news", `{"limit": 7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, f.pipeline.limitIn)

	rec = f.do(http.MethodPost, "/api/fetch-news", `{"limit": 1000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/fetch-news", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessContent(t *testing.T) {
	f := newFixture(t, wordPressOK(t), nil)

	rec := f.do(http.MethodPost, "/api/process-content", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "WORDPRESS_USERNAME")

	f.cfg.WordPressUsername = "editor"
	f.cfg.WordPressPassword = "secret"
	f.cfg.OpenAIAPIKey = "sk-test"

	rec = f.do(http.MethodPost, "/api/process-content", `{"items":[{"title":" A ","url":"https://src.example/a"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["count"])
	require.Len(t, f.pipeline.got, 1)
	assert.Equal(t, "A", f.pipeline.got[0].Title)

	rec = f.do(http.MethodPost, "/api/process-content", `{"items":[{"title":"no url"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/process-content", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "NEWS_API_KEY")

	f.cfg.NewsAPIKey = "key"
	rec = f.do(http.MethodPost, "/api/process-content", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.pipeline.ran)
	assert.EqualValues(t, 1, decode(t, rec)["count"])
}

func TestCheckURL(t *testing.T) {
	f := newFixture(t, wordPressOK(t), nil)

	rec := f.do(http.MethodPost, "/api/check-url", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode(t, rec)["result"].(map[string]any)
	assert.Equal(t, "safe", result["verdict"])
	assert.Equal(t, true, result["reputation"].(map[string]any)["simulated"])

	rec = f.do(http.MethodPost, "/api/check-url", `{"url":"ftp://example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/check-url", ``)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.json")
	f := newFixture(t, wordPressOK(t), func(d *Deps) { d.SavedPath = path })

	item := `{"slug":"nova-uyazvimost","title":"Нова уязвимост","category":"Киберсигурност"}`
	rec := f.do(http.MethodPost, "/api/saved", item)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPost, "/api/saved", item)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["added"])

	rec = f.do(http.MethodPost, "/api/saved", `{"title":"no slug"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/saved", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = f.do(http.MethodGet, "/api/articles/nova-uyazvimost", "")
	assert.Equal(t, true, decode(t, rec)["saved"])

	onDisk, err := saved.Load(path)
	require.NoError(t, err)
	assert.True(t, onDisk.Contains("nova-uyazvimost"))

	rec = f.do(http.MethodDelete, "/api/saved/nova-uyazvimost", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(http.MethodDelete, "/api/saved/nova-uyazvimost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	onDisk, err = saved.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, onDisk.Len())

	rec = f.do(http.MethodPost, "/api/saved", `{"slug":" spaced","title":"S"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(http.MethodDelete, "/api/saved/%20spaced", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, wordPressOK(t), nil)

	rec := f.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	f.do(http.MethodGet, "/feed.xml", "")
	rec = f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `technews_upstream_fetches_total{result="ok"} 1`)

	f.metrics.SetError("boom")
	rec = f.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "boom", decode(t, rec)["last_error"])
}
