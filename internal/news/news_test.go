package news

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/technews/internal/wordpress"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testNormalizer() *Normalizer {
	return &Normalizer{
		Now:   func() time.Time { return fixedNow },
		NewID: func() string { return "random-id" },
	}
}

func ptr[T any](v T) *T { return &v }

func TestNormalize_EmptyPostGetsAllDefaults(t *testing.T) {
	a := testNormalizer().Normalize(wordpress.Post{})

	assert.Equal(t, "random-id", a.ID)
	assert.Equal(t, "", a.Slug)
	assert.Equal(t, DefaultTitle, a.Title)
	assert.Equal(t, DefaultTitle, a.TranslatedTitle)
	assert.Equal(t, "Няма описание.", a.Description)
	assert.Equal(t, a.Description, a.TranslatedDescription)
	assert.Equal(t, a.Description, a.Summary)
	assert.Equal(t, "Без категория", a.Category)
	assert.Equal(t, "2024-06-01T12:00:00Z", a.PublishedAt)
	assert.Equal(t, a.PublishedAt, a.ModifiedAt)
	assert.Equal(t, "/placeholder.jpg", a.URLToImage)
	assert.Equal(t, "/article/", a.URL)
	assert.Equal(t, "Неизвестен автор", a.Author)
	assert.Equal(t, Source{ID: "techbg", Name: "TechBG Новини"}, a.Source)
}

func TestNormalize_NoFieldMissingInJSON(t *testing.T) {
	cases := []wordpress.Post{
		{},
		{Slug: ptr("only-slug")},
		{Excerpt: &wordpress.Rendered{Rendered: "<p></p>"}},
		{Embedded: &wordpress.Embedded{Terms: [][]wordpress.Term{{}}}},
		{Embedded: &wordpress.Embedded{Author: []wordpress.Author{{Name: ""}}}},
	}
	for _, p := range cases {
		data, err := json.Marshal(testNormalizer().Normalize(p))
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, json.Unmarshal(data, &fields))
		for _, k := range []string{"id", "title", "translatedTitle", "description", "translatedDescription",
			"summary", "category", "publishedAt", "urlToImage", "url", "author", "source"} {
			v, ok := fields[k]
			require.True(t, ok, k)
			if k != "url" {
				assert.NotEmpty(t, v, k)
			}
		}
	}
}

func TestNormalize_FullPost(t *testing.T) {
	p := wordpress.Post{
		ID:       ptr(int64(42)),
		Title:    &wordpress.Rendered{Rendered: "Нов <em>AI</em> модел"},
		Excerpt:  &wordpress.Rendered{Rendered: "<p>Първо изречение. <strong>Второ</strong>.</p>\n"},
		Slug:     ptr("nov-ai-model"),
		Date:     ptr("2024-05-01T10:00:00"),
		Modified: ptr("2024-05-02T11:00:00"),
		Embedded: &wordpress.Embedded{
			Author:        []wordpress.Author{{Name: "Мария"}},
			FeaturedMedia: []wordpress.Media{{SourceURL: "https://cdn.example/a.jpg"}},
			Terms:         [][]wordpress.Term{{{Name: "AI"}}, {{Name: "tag"}}},
		},
	}
	a := testNormalizer().Normalize(p)

	assert.Equal(t, "42", a.ID)
	assert.Equal(t, "Нов <em>AI</em> модел", a.Title, "title is used verbatim")
	assert.Equal(t, "Първо изречение. Второ.", a.Description)
	assert.Equal(t, "AI", a.Category)
	assert.Equal(t, "2024-05-01T10:00:00", a.PublishedAt)
	assert.Equal(t, "2024-05-02T11:00:00", a.ModifiedAt)
	assert.Equal(t, "https://cdn.example/a.jpg", a.URLToImage)
	assert.Equal(t, "/article/nov-ai-model", a.URL)
	assert.Equal(t, "Мария", a.Author)
}

func TestNormalize_IDFallsBackToSlug(t *testing.T) {
	n := testNormalizer()
	a1 := n.Normalize(wordpress.Post{Slug: ptr("stable")})
	a2 := n.Normalize(wordpress.Post{Slug: ptr("stable")})
	assert.Equal(t, "slug-stable", a1.ID)
	assert.Equal(t, a1.ID, a2.ID)
}

func TestPublished(t *testing.T) {
	posts := []wordpress.Post{
		{Slug: ptr("a"), Status: ptr("publish")},
		{Slug: ptr("b"), Status: ptr("draft")},
		{Slug: ptr("c")},
		{Slug: ptr("d"), Status: ptr("future")},
	}
	got := Published(posts)
	require.Len(t, got, 2)
	assert.Equal(t, "a", *got[0].Slug)
	assert.Equal(t, "c", *got[1].Slug)
}

func TestParseTime(t *testing.T) {
	got, ok := ParseTime("2024-05-01T10:00:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), got)

	got, ok = ParseTime("2024-05-01T10:00:00+03:00")
	require.True(t, ok)
	assert.Equal(t, 7, got.UTC().Hour())

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
	_, ok = ParseTime("")
	assert.False(t, ok)
}
