// Package source defines what the content pipeline pulls from external news
// providers.
package source

import (
	"context"
	"time"
)

// Item is one external news story before translation.
type Item struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content,omitempty"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"urlToImage,omitempty"`
	SourceName  string    `json:"sourceName"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

type Source interface {
	// Fetch returns at most limit items, newest first.
	Fetch(ctx context.Context, limit int) ([]Item, error)
}
