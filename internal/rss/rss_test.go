package rss

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Sec Wire</title>
  <link>https://sec.example</link>
  <description>security</description>
  <item>
    <title>Older story</title>
    <link>https://sec.example/older</link>
    <description>old</description>
    <pubDate>Mon, 01 Apr 2024 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title> Newer story </title>
    <link>https://sec.example/newer</link>
    <description>new</description>
    <pubDate>Tue, 02 Apr 2024 10:00:00 +0000</pubDate>
  </item>
</channel>
</rss>`

func TestLoadFeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feeds:\n  - https://a.example/rss\n  - https://b.example/atom\n"), 0o644))

	feeds, err := LoadFeeds(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/rss", "https://b.example/atom"}, feeds)

	_, err = LoadFeeds(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSource_Fetch(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
	defer ok.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := NewSource([]string{broken.URL, ok.URL}, log)

	items, err := src.Fetch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Newer story", items[0].Title)
	assert.Equal(t, "Sec Wire", items[0].SourceName)
	assert.Equal(t, "https://sec.example/newer", items[0].URL)

	items, err = src.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSource_FetchAllFail(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	src := NewSource([]string{broken.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := src.Fetch(context.Background(), 5)
	assert.Error(t, err)
}
