package app

import (
	"fmt"
	"log/slog"

	"github.com/deusflow/technews/internal/config"
	"github.com/deusflow/technews/internal/processor"
	"github.com/deusflow/technews/internal/storage"
)

// openLedger returns the store of already published stories: the SQL
// database when DATABASE_URL is set, the JSON file otherwise.
func openLedger(cfg *config.Config, log *slog.Logger) (processor.PublishedStore, func(), error) {
	if cfg.DatabaseURL != "" {
		l, err := storage.OpenSQLLog(cfg.DatabaseURL, cfg.PublishedTTL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("open published ledger: %w", err)
		}
		if _, err := l.Cleanup(); err != nil {
			log.Warn("published ledger cleanup failed", "error", err)
		}
		log.Info("using SQL published ledger", "dialect", l.Dialect())
		return l, func() { _ = l.Close() }, nil
	}

	pl := storage.NewPublishedLog(cfg.PublishedLogPath, cfg.PublishedTTL)
	if err := pl.Load(); err != nil {
		return nil, nil, fmt.Errorf("load published log: %w", err)
	}
	pl.Cleanup()
	log.Info("using file published ledger", "path", cfg.PublishedLogPath, "entries", pl.Len())
	return pl, func() {}, nil
}
