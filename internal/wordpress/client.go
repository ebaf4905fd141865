// Package wordpress talks to the WordPress REST API (wp/v2) that stores the
// site's articles.
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/technews/internal/retry"
)

var (
	ErrUpstreamStatus = errors.New("wordpress returned non-2xx status")
	ErrNotFound       = errors.New("wordpress resource not found")
	ErrNotConfigured  = errors.New("wordpress write credentials are not configured")
)

const userAgent = "technews/1.0 (+https://techbg.news)"

// ListParams mirrors the query parameters of GET /posts that the site uses.
type ListParams struct {
	Page       int
	PerPage    int
	Categories []int64
	Slug       string
	Status     string
	Embed      bool
	Fields     []string
}

// Values encodes the params the way WordPress expects them.
func (p ListParams) Values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(p.PerPage))
	}
	if len(p.Categories) > 0 {
		ids := make([]string, 0, len(p.Categories))
		for _, id := range p.Categories {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		q.Set("categories", strings.Join(ids, ","))
	}
	if p.Slug != "" {
		q.Set("slug", p.Slug)
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Embed {
		q.Set("_embed", "1")
	}
	if len(p.Fields) > 0 {
		q.Set("_fields", strings.Join(p.Fields, ","))
	}
	return q
}

// PostPage is one page of posts plus the totals from the response headers.
type PostPage struct {
	Posts      []Post
	Total      int
	TotalPages int
}

// NewPost is the body of a post creation request.
type NewPost struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Excerpt    string  `json:"excerpt,omitempty"`
	Status     string  `json:"status"`
	Slug       string  `json:"slug,omitempty"`
	Categories []int64 `json:"categories,omitempty"`
}

type Options struct {
	BaseURL    string
	Username   string
	Password   string
	HTTPClient *http.Client
	Retry      retry.Config
	Logger     *slog.Logger
}

type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	retry    retry.Config
	log      *slog.Logger
}

func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry.MaxAttempts = 1
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		username: opts.Username,
		password: opts.Password,
		http:     hc,
		retry:    opts.Retry,
		log:      log,
	}
}

// Endpoint returns the absolute URL for a resource path and query; it also
// serves as the memoization key for read requests.
func (c *Client) Endpoint(resource string, q url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(resource, "/")
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// ListPosts fetches one page of posts.
func (c *Client) ListPosts(ctx context.Context, p ListParams) (*PostPage, error) {
	resp, err := c.get(ctx, c.Endpoint("posts", p.Values()))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var posts []Post
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	return &PostPage{
		Posts:      posts,
		Total:      headerInt(resp.Header, "X-WP-Total", len(posts)),
		TotalPages: headerInt(resp.Header, "X-WP-TotalPages", 1),
	}, nil
}

// PostBySlug returns the single embedded post with the given slug.
func (c *Client) PostBySlug(ctx context.Context, slug string) (*Post, error) {
	page, err := c.ListPosts(ctx, ListParams{Slug: slug, Embed: true, PerPage: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Posts) == 0 {
		return nil, fmt.Errorf("%w: post %q", ErrNotFound, slug)
	}
	return &page.Posts[0], nil
}

// CategoryBySlug resolves a category slug to its record.
func (c *Client) CategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	q := url.Values{}
	q.Set("slug", slug)
	resp, err := c.get(ctx, c.Endpoint("categories", q))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var cats []Category
	if err := json.NewDecoder(resp.Body).Decode(&cats); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("%w: category %q", ErrNotFound, slug)
	}
	return &cats[0], nil
}

// CreatePost creates a post using basic (application password) auth.
func (c *Client) CreatePost(ctx context.Context, np NewPost) (*Post, error) {
	if c.username == "" || c.password == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(np)
	if err != nil {
		return nil, fmt.Errorf("encode post: %w", err)
	}

	var created Post
	err = retry.WithRetry(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint("posts", nil), bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)
		req.SetBasicAuth(c.username, c.password)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("%w: %d %s", ErrUpstreamStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
			if resp.StatusCode < 500 {
				return retry.Permanent(err)
			}
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return retry.Permanent(fmt.Errorf("decode created post: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("wordpress post created", "slug", deref(created.Slug), "status", deref(created.Status))
	return &created, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wordpress request: %w", err)
	}
	c.log.Debug("wordpress request", "url", endpoint, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}
	return resp, nil
}

func headerInt(h http.Header, key string, fallback int) int {
	if v := h.Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
