// Package telegram tells editors in a Telegram chat which stories the
// content pipeline turned into WordPress posts.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deusflow/technews/internal/processor"
	"github.com/deusflow/technews/internal/retry"
)

var ErrAPI = errors.New("telegram API error")

// maxMessage stays under Telegram's 4096 character limit.
const maxMessage = 4000

type Options struct {
	Token      string
	ChatID     string
	BaseURL    string
	HTTPClient *http.Client
	Retry      retry.Config
	Logger     *slog.Logger
}

type Client struct {
	token   string
	chatID  string
	baseURL string
	http    *http.Client
	retry   retry.Config
	log     *slog.Logger
}

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	base := opts.BaseURL
	if base == "" {
		base = "https://api.telegram.org"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	r := opts.Retry
	if r.MaxAttempts < 1 {
		r = retry.Config{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true}
	}
	return &Client{
		token:   opts.Token,
		chatID:  opts.ChatID,
		baseURL: strings.TrimRight(base, "/"),
		http:    hc,
		retry:   r,
		log:     log,
	}
}

// SendMessage sends an HTML message without link previews.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":                  c.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	return retry.WithRetry(ctx, c.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			c.log.Warn("telegram request failed", "error", err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("%w: status %d %s", ErrAPI, resp.StatusCode, strings.TrimSpace(string(msg)))
			// 429 is worth another try, other client errors are not
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Permanent(err)
			}
			return err
		}
		return nil
	})
}

// Notify sends the summary of one processing run.
func (c *Client) Notify(ctx context.Context, results []processor.Result) error {
	return c.SendMessage(ctx, FormatRun(results))
}

// FormatRun lists the published stories of a run and counts the rest.
func FormatRun(results []processor.Result) string {
	var b strings.Builder
	b.WriteString("📰 <b>Нови публикации в WordPress</b>\n\n")

	failed, skipped := 0, 0
	for _, r := range results {
		switch r.Status {
		case processor.StatusFailed:
			failed++
			continue
		case processor.StatusSkipped:
			skipped++
			continue
		}

		line := fmt.Sprintf("• <a href=\"%s\">%s</a>", html.EscapeString(r.SourceURL), html.EscapeString(r.Title))
		if r.PostSlug != "" {
			line += " → <code>" + html.EscapeString(r.PostSlug) + "</code>"
		}
		if !r.Translated {
			line += " ⚠️ без превод"
		}
		line += "\n"

		if b.Len()+len(line) > maxMessage {
			b.WriteString("…\n")
			break
		}
		b.WriteString(line)
	}

	if failed > 0 || skipped > 0 {
		fmt.Fprintf(&b, "\nНеуспешни: %d, пропуснати: %d", failed, skipped)
	}
	return b.String()
}
