package rss

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/technews/internal/source"
)

// FeedsConfig is YAML config structure
// feeds:
//   - https://...
type FeedsConfig struct {
	Feeds []string `yaml:"feeds"`
}

// LoadFeeds reads RSS feeds list from YAML file
func LoadFeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FeedsConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse feeds config %s: %w", path, err)
	}
	return cfg.Feeds, nil
}

// Source reads a fixed list of RSS/Atom feeds.
type Source struct {
	urls   []string
	parser *gofeed.Parser
	log    *slog.Logger
}

func NewSource(urls []string, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{urls: urls, parser: gofeed.NewParser(), log: log}
}

// Fetch downloads every feed, newest items first. A feed that fails to load
// is logged and skipped.
func (s *Source) Fetch(ctx context.Context, limit int) ([]source.Item, error) {
	var all []source.Item
	successCount := 0

	for _, url := range s.urls {
		feed, err := s.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			s.log.Warn("error parsing RSS", "url", url, "error", err)
			continue
		}
		for _, it := range feed.Items {
			all = append(all, toItem(feed, it))
		}
		successCount++
		s.log.Debug("loaded feed", "url", url, "items", len(feed.Items))
	}
	if len(s.urls) > 0 && successCount == 0 {
		return nil, fmt.Errorf("all %d feeds failed", len(s.urls))
	}
	s.log.Info("processed RSS feeds", "ok", successCount, "total", len(s.urls))

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func toItem(feed *gofeed.Feed, it *gofeed.Item) source.Item {
	item := source.Item{
		Title:       strings.TrimSpace(it.Title),
		Description: strings.TrimSpace(it.Description),
		Content:     it.Content,
		URL:         it.Link,
		SourceName:  feed.Title,
	}
	if it.PublishedParsed != nil {
		item.PublishedAt = *it.PublishedParsed
	} else if it.UpdatedParsed != nil {
		item.PublishedAt = *it.UpdatedParsed
	}
	if it.Image != nil {
		item.ImageURL = it.Image.URL
	}
	if len(it.Authors) > 0 && it.Authors[0] != nil {
		item.Author = it.Authors[0].Name
	}
	return item
}
