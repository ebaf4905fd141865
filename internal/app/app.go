// Package app wires the service together and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/technews/internal/cache"
	"github.com/deusflow/technews/internal/config"
	"github.com/deusflow/technews/internal/gemini"
	"github.com/deusflow/technews/internal/logger"
	"github.com/deusflow/technews/internal/metrics"
	"github.com/deusflow/technews/internal/news"
	"github.com/deusflow/technews/internal/newsapi"
	"github.com/deusflow/technews/internal/processor"
	"github.com/deusflow/technews/internal/ratelimit"
	"github.com/deusflow/technews/internal/retry"
	"github.com/deusflow/technews/internal/rss"
	"github.com/deusflow/technews/internal/saved"
	"github.com/deusflow/technews/internal/scraper"
	"github.com/deusflow/technews/internal/server"
	"github.com/deusflow/technews/internal/source"
	"github.com/deusflow/technews/internal/telegram"
	"github.com/deusflow/technews/internal/translate"
	"github.com/deusflow/technews/internal/urlscan"
	"github.com/deusflow/technews/internal/wordpress"
)

const shutdownTimeout = 15 * time.Second

// Run loads the configuration, builds every component and serves HTTP until
// ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Init(cfg.LogLevel)
	log := logger.Logger
	log.Info("starting technews", "config", cfg.String())

	hc := &http.Client{Timeout: cfg.RequestTimeout}
	retryCfg := retry.Config{MaxAttempts: cfg.RetryAttempts, Delay: cfg.RetryDelay, Backoff: true}

	wp := wordpress.NewClient(wordpress.Options{
		BaseURL:    cfg.WordPressURL,
		Username:   cfg.WordPressUsername,
		Password:   cfg.WordPressPassword,
		HTTPClient: hc,
		Retry:      retryCfg,
		Logger:     log,
	})

	pages := cache.New(time.Minute)
	defer pages.Close()
	articles := news.NewService(wp, pages, news.NewNormalizer(), metrics.Global, log)

	src, err := newSource(cfg, hc, log)
	if err != nil {
		return err
	}

	enricher, closeEnricher, err := newEnricher(ctx, cfg, hc)
	if err != nil {
		return err
	}
	defer closeEnricher()

	ledger, closeLedger, err := openLedger(cfg, log)
	if err != nil {
		return err
	}
	defer closeLedger()

	translations := cache.New(10 * time.Minute)
	defer translations.Close()

	limiter := ratelimit.NewAIRateLimiter(cfg.MaxAIRequests, cfg.AIRequestsPerMinute, log)

	opts := processor.Options{
		Source:     src,
		Enricher:   enricher,
		Limiter:    limiter,
		Memo:       translations,
		Publisher:  wp,
		Published:  ledger,
		BatchSize:  cfg.ProcessBatchSize,
		PostStatus: cfg.WordPressPostStatus,
		Metrics:    metrics.Global,
		Logger:     log,
	}
	if cfg.ScrapeFullText {
		opts.Scraper = scraper.New(hc, log)
	}
	if cfg.NotifyEnabled() {
		opts.Notifier = telegram.New(telegram.Options{
			Token:  cfg.TelegramToken,
			ChatID: cfg.TelegramChatID,
			Logger: log,
		})
	}

	savedSet, err := saved.Load(cfg.SavedPath)
	if err != nil {
		return err
	}

	srv := server.New(server.Deps{
		Config:   cfg,
		Articles: articles,
		Pipeline: processor.New(opts),
		Links: urlscan.New(urlscan.Options{
			VirusTotalKey: cfg.VirusTotalAPIKey,
			VirusTotalURL: cfg.VirusTotalURL,
			RDAPURL:       cfg.RDAPURL,
			Metrics:       metrics.Global,
			Logger:        log,
		}),
		Saved:     savedSet,
		SavedPath: cfg.SavedPath,
		Limiter:   limiter,
		Metrics:   metrics.Global,
		Logger:    log,
	})

	return serve(ctx, &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// processing a batch waits on model calls and WordPress writes
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}, log)
}

func serve(ctx context.Context, hs *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", hs.Addr)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newSource(cfg *config.Config, hc *http.Client, log *slog.Logger) (source.Source, error) {
	switch cfg.NewsSource {
	case "rss":
		feeds, err := rss.LoadFeeds(cfg.FeedsConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load feeds: %w", err)
		}
		log.Info("using RSS news source", "feeds", len(feeds))
		return rss.NewSource(feeds, log), nil
	default:
		return newsapi.New(cfg.NewsAPIURL, cfg.NewsAPIKey, cfg.NewsQuery, hc), nil
	}
}

// newEnricher builds the configured translation provider. A provider whose
// key is missing yields nil; the processing endpoint reports that as a
// configuration error before it runs.
func newEnricher(ctx context.Context, cfg *config.Config, hc *http.Client) (translate.Enricher, func(), error) {
	noop := func() {}
	if cfg.RequireLLM() != nil {
		return nil, noop, nil
	}

	switch cfg.LLMProvider {
	case "gemini":
		c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	case "google":
		return translate.NewGoogle("", hc), noop, nil
	default:
		return translate.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, ""), noop, nil
	}
}
