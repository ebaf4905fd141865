package news

import "hash/fnv"

const (
	latestCount   = 3
	bucketLimit   = 3
	trendingCount = 10
	tickerCount   = 5

	// Sentence limits for display summaries.
	HeroSentences = 2
	CardSentences = 1
)

// TrendingItem carries a synthetic view count. There is no analytics
// pipeline behind it.
type TrendingItem struct {
	Article
	Rank  int `json:"rank"`
	Views int `json:"views"`
}

type TickerItem struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

// Home holds the presentation subsets of one article list.
type Home struct {
	Latest        *Article       `json:"latestArticle"`
	LatestSummary string         `json:"latestSummary"`
	LatestThree   []Article      `json:"latestThree"`
	Cybersecurity []Article      `json:"cybersecurity"`
	SEO           []Article      `json:"seo"`
	AI            []Article      `json:"ai"`
	Trending      []TrendingItem `json:"trendingItems"`
	Breaking      []Article      `json:"breakingNews"`
	Ticker        []TickerItem   `json:"newsTicker"`
}

// Assemble derives the home page subsets. The input is expected to be newest
// first already; order is never changed and the input is not modified.
func Assemble(articles []Article) Home {
	home := Home{
		LatestThree:   window(articles, 1, 1+latestCount),
		Cybersecurity: ByCategory(articles, CategoryCybersecurity, bucketLimit),
		SEO:           ByCategory(articles, CategorySEO, bucketLimit),
		AI:            ByCategory(articles, CategoryAI, bucketLimit),
		Trending:      trending(articles),
		Breaking:      []Article{},
		Ticker:        ticker(articles),
	}

	if len(articles) > 0 {
		latest := articles[0]
		home.Latest = &latest
		home.LatestSummary = Truncate(latest.Summary, HeroSentences)
		home.Breaking = []Article{latest}
	}
	return home
}

// ByCategory returns up to limit articles whose category equals name
// exactly. A limit <= 0 means no cap.
func ByCategory(articles []Article, name string, limit int) []Article {
	out := []Article{}
	for _, a := range articles {
		if a.Category != name {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func window(articles []Article, from, to int) []Article {
	if from >= len(articles) {
		return []Article{}
	}
	if to > len(articles) {
		to = len(articles)
	}
	out := make([]Article, to-from)
	copy(out, articles[from:to])
	return out
}

func trending(articles []Article) []TrendingItem {
	top := window(articles, 0, trendingCount)
	out := make([]TrendingItem, 0, len(top))
	for i, a := range top {
		rank := i + 1
		out = append(out, TrendingItem{
			Article: a,
			Rank:    rank,
			Views:   syntheticViews(a, rank),
		})
	}
	return out
}

// syntheticViews decays with rank and is jittered by a hash of the slug, so
// the same list always renders the same numbers.
func syntheticViews(a Article, rank int) int {
	h := fnv.New32a()
	h.Write([]byte(a.ID + "/" + a.Slug))
	return 5000/rank + int(h.Sum32()%500)
}

func ticker(articles []Article) []TickerItem {
	top := window(articles, 0, tickerCount)
	out := make([]TickerItem, 0, len(top))
	for _, a := range top {
		out = append(out, TickerItem{Title: a.Title, URL: a.URL, Category: a.Category})
	}
	return out
}
