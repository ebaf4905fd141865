package news

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleArticles(categories ...string) []Article {
	out := make([]Article, 0, len(categories))
	for i, c := range categories {
		slug := fmt.Sprintf("a%d", i)
		out = append(out, Article{
			ID:       fmt.Sprint(i),
			Slug:     slug,
			Title:    "Title " + slug,
			Summary:  "Първо. Второ. Трето.",
			Category: c,
			URL:      "/article/" + slug,
		})
	}
	return out
}

func slugs(articles []Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.Slug)
	}
	return out
}

func TestAssemble_Buckets(t *testing.T) {
	articles := sampleArticles(
		"Киберсигурност", "SEO", "AI", "Киберсигурност", "Други",
		"AI", "Киберсигурност", "киберсигурност", "Киберсигурност", "SEO",
		"Киберсигурност ", "AI",
	)
	home := Assemble(articles)

	assert.Equal(t, []string{"a0", "a3", "a6"}, slugs(home.Cybersecurity))
	for _, a := range home.Cybersecurity {
		assert.Equal(t, CategoryCybersecurity, a.Category)
	}
	assert.Equal(t, []string{"a1", "a9"}, slugs(home.SEO))
	assert.Equal(t, []string{"a2", "a5", "a11"}, slugs(home.AI))
}

func TestAssemble_Subsets(t *testing.T) {
	articles := sampleArticles(make([]string, 12)...)
	home := Assemble(articles)

	require.NotNil(t, home.Latest)
	assert.Equal(t, "a0", home.Latest.Slug)
	assert.Equal(t, "Първо. Второ.", home.LatestSummary)
	assert.Equal(t, []string{"a1", "a2", "a3"}, slugs(home.LatestThree))
	assert.Equal(t, []string{"a0"}, slugs(home.Breaking))

	require.Len(t, home.Trending, 10)
	for i, item := range home.Trending {
		assert.Equal(t, i+1, item.Rank)
		assert.Positive(t, item.Views)
	}

	require.Len(t, home.Ticker, 5)
	assert.Equal(t, TickerItem{Title: "Title a0", URL: "/article/a0", Category: ""}, home.Ticker[0])
}

func TestAssemble_Deterministic(t *testing.T) {
	articles := sampleArticles("AI", "SEO", "AI", "Киберсигурност")
	before := append([]Article(nil), articles...)

	assert.Equal(t, Assemble(articles), Assemble(articles))
	assert.Equal(t, before, articles, "input must not be modified")
}

func TestAssemble_Empty(t *testing.T) {
	home := Assemble(nil)
	assert.Nil(t, home.Latest)
	assert.Empty(t, home.LatestThree)
	assert.NotNil(t, home.Breaking)
	assert.Empty(t, home.Breaking)
	assert.Empty(t, home.Trending)
	assert.Empty(t, home.Ticker)
}

func TestAssemble_ShortList(t *testing.T) {
	home := Assemble(sampleArticles("AI", "SEO"))
	assert.Equal(t, []string{"a1"}, slugs(home.LatestThree))
	assert.Len(t, home.Trending, 2)
	assert.Len(t, home.Ticker, 2)
}
