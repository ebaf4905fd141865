// Package newsapi reads the /everything endpoint of a NewsAPI-compatible
// service.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/technews/internal/source"
)

var (
	ErrNotConfigured = errors.New("news API key is not configured")
	ErrAPI           = errors.New("news API error")
)

type Client struct {
	baseURL string
	apiKey  string
	query   string
	http    *http.Client
}

func New(baseURL, apiKey, query string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		query:   query,
		http:    hc,
	}
}

type response struct {
	Status   string    `json:"status"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Articles []article `json:"articles"`
}

type article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// Fetch searches for the configured query, newest first.
func (c *Client) Fetch(ctx context.Context, limit int) ([]source.Item, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("q", c.query)
	q.Set("sortBy", "publishedAt")
	q.Set("language", "en")
	if limit > 0 {
		q.Set("pageSize", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/everything?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news API request: %w", err)
	}
	defer resp.Body.Close()

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode news API response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		return nil, fmt.Errorf("%w: %d %s: %s", ErrAPI, resp.StatusCode, body.Code, body.Message)
	}

	items := make([]source.Item, 0, len(body.Articles))
	for _, a := range body.Articles {
		if a.Title == "" || a.Title == "[Removed]" || a.URL == "" {
			continue
		}
		published, _ := time.Parse(time.RFC3339, a.PublishedAt)
		items = append(items, source.Item{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			SourceName:  a.Source.Name,
			Author:      a.Author,
			PublishedAt: published,
		})
		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items, nil
}
