package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported SQL dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// SQLLog is the published-story ledger kept in a SQL database, for
// deployments that run more than one instance or have no writable disk.
type SQLLog struct {
	db      *sql.DB
	dialect string
	ttl     time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// OpenSQLLog picks the driver from dsn: postgres:// and postgresql:// URLs
// go to PostgreSQL, sqlite:// paths to SQLite.
func OpenSQLLog(dsn string, ttl time.Duration, log *slog.Logger) (*SQLLog, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresLog(dsn, ttl, log)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLiteLog(strings.TrimPrefix(dsn, "sqlite://"), ttl, log)
	}
	return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", dsn)
}

func NewPostgresLog(connStr string, ttl time.Duration, log *slog.Logger) (*SQLLog, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	return newSQLLog(db, DialectPostgres, ttl, log)
}

func NewSQLiteLog(path string, ttl time.Duration, log *slog.Logger) (*SQLLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; an in-memory database also lives only on its connection
	db.SetMaxOpenConns(1)
	return newSQLLog(db, DialectSQLite, ttl, log)
}

func newSQLLog(db *sql.DB, dialect string, ttl time.Duration, log *slog.Logger) (*SQLLog, error) {
	if log == nil {
		log = slog.Default()
	}
	l := &SQLLog{db: db, dialect: dialect, ttl: ttl, now: time.Now, log: log}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return l, nil
}

func (l *SQLLog) migrate() error {
	_, err := l.db.Exec(`
	CREATE TABLE IF NOT EXISTS published_posts (
		hash VARCHAR(64) PRIMARY KEY,
		title TEXT NOT NULL,
		link TEXT NOT NULL,
		post_slug TEXT NOT NULL DEFAULT '',
		published_at BIGINT NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(`CREATE INDEX IF NOT EXISTS idx_published_posts_published_at ON published_posts(published_at)`)
	return err
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (l *SQLLog) rebind(query string) string {
	if l.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (l *SQLLog) cutoff() int64 {
	return l.now().Add(-l.ttl).Unix()
}

// Seen reports whether hash was published within the TTL. Query errors are
// logged and count as not seen.
func (l *SQLLog) Seen(hash string) bool {
	var count int
	err := l.db.QueryRow(l.rebind(`SELECT COUNT(*) FROM published_posts WHERE hash = ? AND published_at > ?`),
		hash, l.cutoff()).Scan(&count)
	if err != nil {
		l.log.Warn("published lookup failed", "hash", hash, "error", err)
		return false
	}
	return count > 0
}

func (l *SQLLog) Mark(hash, title, link, postSlug string) error {
	_, err := l.db.Exec(l.rebind(`
		INSERT INTO published_posts (hash, title, link, post_slug, published_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (hash) DO UPDATE SET post_slug = excluded.post_slug, published_at = excluded.published_at`),
		hash, title, link, postSlug, l.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to mark as published: %w", err)
	}
	return nil
}

// Save is a no-op; every Mark is written immediately.
func (l *SQLLog) Save() error { return nil }

// Cleanup deletes expired rows and returns how many were removed.
func (l *SQLLog) Cleanup() (int64, error) {
	res, err := l.db.Exec(l.rebind(`DELETE FROM published_posts WHERE published_at <= ?`), l.cutoff())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		l.log.Info("cleaned up published ledger", "rows", rows)
	}
	return rows, nil
}

// Len counts entries still within the TTL.
func (l *SQLLog) Len() (int, error) {
	var n int
	err := l.db.QueryRow(l.rebind(`SELECT COUNT(*) FROM published_posts WHERE published_at > ?`), l.cutoff()).Scan(&n)
	return n, err
}

func (l *SQLLog) Dialect() string { return l.dialect }

func (l *SQLLog) Close() error {
	return l.db.Close()
}
