package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PublishedItem is a story that was already written back to WordPress.
type PublishedItem struct {
	Hash        string    `json:"hash"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PostSlug    string    `json:"post_slug"`
	PublishedAt time.Time `json:"published_at"`
}

// PublishedLog remembers published stories for ttl so the pipeline does not
// post the same story twice. It is persisted as a JSON file.
type PublishedLog struct {
	filePath string
	ttl      time.Duration
	items    map[string]PublishedItem
	mu       sync.RWMutex
	now      func() time.Time
}

func NewPublishedLog(filePath string, ttl time.Duration) *PublishedLog {
	return &PublishedLog{
		filePath: filePath,
		ttl:      ttl,
		items:    make(map[string]PublishedItem),
		now:      time.Now,
	}
}

// Load reads the log file. A missing or empty file is an empty log; expired
// entries are dropped.
func (pl *PublishedLog) Load() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	data, err := os.ReadFile(pl.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read published log: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []PublishedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to unmarshal published log: %w", err)
	}

	cutoff := pl.cutoff()
	for _, item := range items {
		if item.PublishedAt.After(cutoff) {
			pl.items[item.Hash] = item
		}
	}
	return nil
}

// Save writes the log atomically.
func (pl *PublishedLog) Save() error {
	pl.mu.RLock()
	items := make([]PublishedItem, 0, len(pl.items))
	for _, item := range pl.items {
		items = append(items, item)
	}
	pl.mu.RUnlock()

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal published log: %w", err)
	}
	return WriteFileAtomic(pl.filePath, data)
}

// Hash creates a stable key for a story from its normalized title and the
// link's domain.
func Hash(title, link string) string {
	normalizedTitle := strings.Join(strings.Fields(strings.ToLower(title)), " ")

	h := sha256.New()
	h.Write([]byte(normalizedTitle + "|" + extractDomain(link)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Seen reports whether hash was published within the TTL.
func (pl *PublishedLog) Seen(hash string) bool {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	item, exists := pl.items[hash]
	return exists && item.PublishedAt.After(pl.cutoff())
}

// Mark records hash as published now. It only touches memory; Save writes
// the file.
func (pl *PublishedLog) Mark(hash, title, link, postSlug string) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	pl.items[hash] = PublishedItem{
		Hash:        hash,
		Title:       title,
		Link:        link,
		PostSlug:    postSlug,
		PublishedAt: pl.now(),
	}
	return nil
}

// Cleanup removes expired items from memory
func (pl *PublishedLog) Cleanup() {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	cutoff := pl.cutoff()
	for hash, item := range pl.items {
		if !item.PublishedAt.After(cutoff) {
			delete(pl.items, hash)
		}
	}
}

func (pl *PublishedLog) Len() int {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return len(pl.items)
}

func (pl *PublishedLog) cutoff() time.Time {
	return pl.now().Add(-pl.ttl)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// extractDomain extracts domain from URL
func extractDomain(url string) string {
	if url == "" {
		return "unknown"
	}

	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "https://")

	domain := strings.Split(url, "/")[0]
	domain = strings.TrimPrefix(domain, "www.")
	return strings.ToLower(domain)
}
