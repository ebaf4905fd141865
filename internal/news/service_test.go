package news

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/technews/internal/cache"
	"github.com/deusflow/technews/internal/metrics"
	"github.com/deusflow/technews/internal/wordpress"
)

type fakeUpstream struct {
	posts      []wordpress.Post
	categories map[string]wordpress.Category
	err        error
	listCalls  int
	lastParams wordpress.ListParams
}

func (f *fakeUpstream) Endpoint(resource string, q url.Values) string {
	return "https://cms.test/" + resource + "?" + q.Encode()
}

func (f *fakeUpstream) ListPosts(_ context.Context, p wordpress.ListParams) (*wordpress.PostPage, error) {
	f.listCalls++
	f.lastParams = p
	if f.err != nil {
		return nil, f.err
	}
	return &wordpress.PostPage{Posts: f.posts, Total: len(f.posts), TotalPages: 1}, nil
}

func (f *fakeUpstream) PostBySlug(ctx context.Context, slug string) (*wordpress.Post, error) {
	page, err := f.ListPosts(ctx, wordpress.ListParams{Slug: slug, Embed: true, PerPage: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Posts) == 0 {
		return nil, wordpress.ErrNotFound
	}
	return &page.Posts[0], nil
}

func (f *fakeUpstream) CategoryBySlug(_ context.Context, slug string) (*wordpress.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.categories[slug]
	if !ok {
		return nil, wordpress.ErrNotFound
	}
	return &c, nil
}

func newTestService(up *fakeUpstream) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(up, cache.New(0), testNormalizer(), metrics.New(), log)
}

func TestService_ArticlesMemoized(t *testing.T) {
	up := &fakeUpstream{posts: []wordpress.Post{
		{Slug: ptr("one"), Status: ptr("publish")},
		{Slug: ptr("hidden"), Status: ptr("draft")},
	}}
	svc := newTestService(up)
	params := wordpress.ListParams{PerPage: 10, Embed: true}

	page, ok := svc.Articles(context.Background(), params, PageWindow)
	require.True(t, ok)
	require.Len(t, page.Articles, 1)
	assert.Equal(t, "one", page.Articles[0].Slug)

	_, ok = svc.Articles(context.Background(), params, PageWindow)
	require.True(t, ok)
	assert.Equal(t, 1, up.listCalls)

	// A different window is a different memo entry.
	_, _ = svc.Articles(context.Background(), params, FeedWindow)
	assert.Equal(t, 2, up.listCalls)
}

func TestService_ArticlesUpstreamFailure(t *testing.T) {
	up := &fakeUpstream{err: errors.New("connection refused")}
	svc := newTestService(up)

	page, ok := svc.Articles(context.Background(), wordpress.ListParams{}, PageWindow)
	assert.False(t, ok)
	assert.NotNil(t, page.Articles)
	assert.Empty(t, page.Articles)

	// Failures are not memoized.
	up.err = nil
	up.posts = []wordpress.Post{{Slug: ptr("back")}}
	page, ok = svc.Articles(context.Background(), wordpress.ListParams{}, PageWindow)
	assert.True(t, ok)
	assert.Len(t, page.Articles, 1)
}

func TestService_Article(t *testing.T) {
	up := &fakeUpstream{posts: []wordpress.Post{{ID: ptr(int64(5)), Slug: ptr("x")}}}
	svc := newTestService(up)

	a, err := svc.Article(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "5", a.ID)
	assert.Equal(t, "x", up.lastParams.Slug)

	_, err = svc.Article(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, up.listCalls)

	up2 := &fakeUpstream{}
	_, err = newTestService(up2).Article(context.Background(), "missing")
	assert.ErrorIs(t, err, wordpress.ErrNotFound)

	draft := &fakeUpstream{posts: []wordpress.Post{{ID: ptr(int64(6)), Slug: ptr("d"), Status: ptr("draft")}}}
	_, err = newTestService(draft).Article(context.Background(), "d")
	assert.ErrorIs(t, err, wordpress.ErrNotFound)

	down := &fakeUpstream{err: errors.New("connection refused")}
	_, err = newTestService(down).Article(context.Background(), "x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, wordpress.ErrNotFound)
}

func TestService_Category(t *testing.T) {
	up := &fakeUpstream{
		posts:      []wordpress.Post{{Slug: ptr("s1")}},
		categories: map[string]wordpress.Category{"seo": {ID: 9, Name: "SEO", Slug: "seo"}},
	}
	svc := newTestService(up)

	page, ok := svc.Category(context.Background(), "seo", 12)
	require.True(t, ok)
	assert.Equal(t, "SEO", page.Name)
	assert.Equal(t, []int64{9}, up.lastParams.Categories)
	assert.Equal(t, 12, up.lastParams.PerPage)
	assert.Len(t, page.Articles, 1)

	page, ok = svc.Category(context.Background(), "unknown", 12)
	assert.True(t, ok)
	assert.Equal(t, "unknown", page.Name)
	assert.Empty(t, page.Articles)
}
