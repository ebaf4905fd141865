// Package processor runs the content pipeline: pull external stories,
// translate and summarize them into Bulgarian, and write them back to
// WordPress as new posts.
package processor

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/technews/internal/cache"
	"github.com/deusflow/technews/internal/metrics"
	"github.com/deusflow/technews/internal/news"
	"github.com/deusflow/technews/internal/ratelimit"
	"github.com/deusflow/technews/internal/scraper"
	"github.com/deusflow/technews/internal/source"
	"github.com/deusflow/technews/internal/storage"
	"github.com/deusflow/technews/internal/translate"
	"github.com/deusflow/technews/internal/wordpress"
)

// MaxBatch bounds the number of stories enriched in one run.
const MaxBatch = 5

// translations are reused for a day, so a rerun after a failed write-back
// does not pay for the same model call twice
const memoTTL = 24 * time.Hour

var ErrNoSource = errors.New("no news source configured")

// Result statuses.
const (
	StatusPublished = "published"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

type Publisher interface {
	CreatePost(ctx context.Context, np wordpress.NewPost) (*wordpress.Post, error)
}

// PublishedStore remembers which stories were already posted.
type PublishedStore interface {
	Seen(hash string) bool
	Mark(hash, title, link, postSlug string) error
	Save() error
}

// Notifier is told about every run that published something.
type Notifier interface {
	Notify(ctx context.Context, results []Result) error
}

type Extractor interface {
	ExtractFullArticle(ctx context.Context, url string) (*scraper.ArticleContent, error)
}

// Enriched is a story after the translation step. Translated is false when
// the original text was kept.
type Enriched struct {
	Item       source.Item `json:"item"`
	Title      string      `json:"title"`
	Summary    string      `json:"summary"`
	Content    string      `json:"content"`
	Translated bool        `json:"translated"`
}

// Result reports what happened to one story of a run.
type Result struct {
	Title         string `json:"title"`
	OriginalTitle string `json:"originalTitle"`
	Summary       string `json:"summary"`
	SourceURL     string `json:"sourceUrl"`
	Translated    bool   `json:"translated"`
	Status        string `json:"status"`
	PostID        string `json:"postId,omitempty"`
	PostSlug      string `json:"postSlug,omitempty"`
	Error         string `json:"error,omitempty"`
}

type Options struct {
	Source     source.Source
	Enricher   translate.Enricher
	Limiter    *ratelimit.AIRateLimiter
	Scraper    Extractor    // optional
	Memo       *cache.Cache // optional
	Publisher  Publisher
	Published  PublishedStore // optional
	Notifier   Notifier       // optional
	BatchSize  int
	PostStatus string
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

type Processor struct {
	source     source.Source
	enricher   translate.Enricher
	limiter    *ratelimit.AIRateLimiter
	scraper    Extractor
	memo       *cache.Cache
	publisher  Publisher
	published  PublishedStore
	notifier   Notifier
	batchSize  int
	postStatus string
	metrics    *metrics.Metrics
	log        *slog.Logger

	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
}

func New(opts Options) *Processor {
	batch := opts.BatchSize
	if batch < 1 || batch > MaxBatch {
		batch = MaxBatch
	}
	status := opts.PostStatus
	if status == "" {
		status = "draft"
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Global
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		source:     opts.Source,
		enricher:   opts.Enricher,
		limiter:    opts.Limiter,
		scraper:    opts.Scraper,
		memo:       opts.Memo,
		publisher:  opts.Publisher,
		published:  opts.Published,
		notifier:   opts.Notifier,
		batchSize:  batch,
		postStatus: status,
		metrics:    m,
		log:        log,
		strict:     bluemonday.StrictPolicy(),
		ugc:        bluemonday.UGCPolicy(),
	}
}

// FetchNews returns up to limit stories from the configured source.
func (p *Processor) FetchNews(ctx context.Context, limit int) ([]source.Item, error) {
	if p.source == nil {
		return nil, ErrNoSource
	}
	items, err := p.source.Fetch(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}
	return items, nil
}

// Run fetches one batch from the source and processes it.
func (p *Processor) Run(ctx context.Context) ([]Result, error) {
	items, err := p.FetchNews(ctx, p.batchSize)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, items), nil
}

// Process enriches and publishes at most one batch of items. Every item gets
// a result; no item can fail the batch.
func (p *Processor) Process(ctx context.Context, items []source.Item) []Result {
	start := time.Now()
	defer func() {
		p.metrics.RecordProcessingTime(time.Since(start))
		p.metrics.SetLastRun()
	}()

	if len(items) > p.batchSize {
		items = items[:p.batchSize]
	}

	results := make([]Result, len(items))
	var g errgroup.Group
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			results[i] = p.processOne(ctx, it)
			return nil
		})
	}
	_ = g.Wait()

	if p.published != nil {
		if err := p.published.Save(); err != nil {
			p.log.Error("failed to save published log", "error", err)
		}
	}
	if p.notifier != nil && countStatus(results, StatusPublished) > 0 {
		if err := p.notifier.Notify(ctx, results); err != nil {
			p.log.Warn("editor notification failed", "error", err)
		}
	}

	p.log.Info("content processing finished", "items", len(items), "duration", time.Since(start))
	return results
}

func (p *Processor) processOne(ctx context.Context, it source.Item) Result {
	res := Result{OriginalTitle: it.Title, SourceURL: it.URL}

	hash := storage.Hash(it.Title, it.URL)
	if p.published != nil && p.published.Seen(hash) {
		res.Title = it.Title
		res.Status = StatusSkipped
		return res
	}

	e := p.enrichOne(ctx, it)
	res.Title = e.Title
	res.Summary = e.Summary
	res.Translated = e.Translated

	post, err := p.publisher.CreatePost(ctx, p.newPost(e))
	p.metrics.RecordPublish(err)
	if err != nil {
		p.log.Warn("write-back failed", "title", it.Title, "error", err)
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}

	res.Status = StatusPublished
	res.PostID, _ = post.IDString()
	res.PostSlug, _ = post.SlugValue()
	if p.published != nil {
		if err := p.published.Mark(hash, it.Title, it.URL, res.PostSlug); err != nil {
			p.log.Warn("failed to record published story", "title", it.Title, "error", err)
		}
	}
	return res
}

func (p *Processor) enrichOne(ctx context.Context, it source.Item) Enriched {
	content := p.fullText(ctx, it)
	fallback := Enriched{
		Item:    it,
		Title:   it.Title,
		Summary: news.Summary(firstNonEmpty(it.Description, content), news.CardSentences),
		Content: content,
	}
	if p.enricher == nil {
		return fallback
	}

	key := cache.Key("enrich", p.enricher.Name(), storage.Hash(it.Title, it.URL))
	if p.memo != nil {
		if v, ok := p.memo.Get(key); ok {
			if r, ok := v.(*translate.Result); ok {
				if p.limiter != nil {
					p.limiter.RecordCacheHit()
				}
				return enriched(it, r)
			}
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Use(ctx, p.enricher.Name()); err != nil {
			p.log.Warn("AI request not allowed, keeping original", "title", it.Title, "error", err)
			p.metrics.IncrementFailedEnrichment()
			return fallback
		}
	}

	r, err := p.enricher.Enrich(ctx, it.Title, content)
	if err != nil {
		p.log.Warn("enrichment failed, keeping original", "title", it.Title, "provider", p.enricher.Name(), "error", err)
		p.metrics.IncrementFailedEnrichment()
		return fallback
	}

	p.metrics.IncrementSuccessfulEnrichment()
	if p.memo != nil {
		p.memo.Set(key, r, memoTTL)
	}
	return enriched(it, r)
}

func enriched(it source.Item, r *translate.Result) Enriched {
	return Enriched{
		Item:       it,
		Title:      r.Title,
		Summary:    r.Summary,
		Content:    r.Content,
		Translated: true,
	}
}

// fullText prefers the scraped article body over the feed's snippet.
func (p *Processor) fullText(ctx context.Context, it source.Item) string {
	text := news.StripTags(firstNonEmpty(it.Content, it.Description))
	if p.scraper == nil || it.URL == "" {
		return text
	}
	full, err := p.scraper.ExtractFullArticle(ctx, it.URL)
	if err != nil {
		p.log.Debug("full text extraction failed", "url", it.URL, "error", err)
		return text
	}
	if len(full.Content) > len(text) {
		return full.Content
	}
	return text
}

func (p *Processor) newPost(e Enriched) wordpress.NewPost {
	return wordpress.NewPost{
		Title:   p.strict.Sanitize(e.Title),
		Content: p.ugc.Sanitize(postHTML(e)),
		Excerpt: p.strict.Sanitize(e.Summary),
		Status:  p.postStatus,
	}
}

func postHTML(e Enriched) string {
	var b strings.Builder
	if e.Item.ImageURL != "" {
		fmt.Fprintf(&b, "<figure><img src=\"%s\" alt=\"%s\"></figure>\n", html.EscapeString(e.Item.ImageURL), html.EscapeString(e.Title))
	}
	for _, para := range strings.Split(e.Content, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(para))
	}
	if e.Item.URL != "" {
		name := firstNonEmpty(e.Item.SourceName, e.Item.URL)
		fmt.Fprintf(&b, "<p>Източник: <a href=\"%s\">%s</a></p>\n", html.EscapeString(e.Item.URL), html.EscapeString(name))
	}
	return b.String()
}

func countStatus(results []Result, status string) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
