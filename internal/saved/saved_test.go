package saved

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSet_AddRemoveContains(t *testing.T) {
	s := New()
	s.now = func() time.Time { return t0 }

	added, err := s.Add(Item{Slug: "a", Title: "A"})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Add(Item{Slug: "a", Title: "again"})
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, "A", s.List()[0].Title)
	assert.Equal(t, t0, s.List()[0].SavedAt)

	_, err = s.Add(Item{Slug: "  "})
	assert.ErrorIs(t, err, ErrEmptySlug)

	assert.True(t, s.Contains("a"))
	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.False(t, s.Contains("a"))
	assert.Equal(t, 0, s.Len())
}

func TestSet_SlugWhitespace(t *testing.T) {
	s := New()
	added, err := s.Add(Item{Slug: " x", Title: "X"})
	require.NoError(t, err)
	assert.True(t, added)

	assert.True(t, s.Contains(" x "))
	assert.True(t, s.Remove(" x"))
	assert.Equal(t, 0, s.Len())
}

func TestSet_ListNewestFirst(t *testing.T) {
	s := New()
	_, _ = s.Add(Item{Slug: "old", SavedAt: t0})
	_, _ = s.Add(Item{Slug: "new", SavedAt: t0.Add(time.Hour)})
	_, _ = s.Add(Item{Slug: "b-same", SavedAt: t0})
	_, _ = s.Add(Item{Slug: "a-same", SavedAt: t0})

	var slugs []string
	for _, it := range s.List() {
		slugs = append(slugs, it.Slug)
	}
	assert.Equal(t, []string{"new", "a-same", "b-same", "old"}, slugs)
}

func TestSet_JSONRoundTrip(t *testing.T) {
	s := New()
	_, _ = s.Add(Item{Slug: "a", Title: "Заглавие", Image: "/placeholder.jpg", Category: "SEO", SavedAt: t0})

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"items":[{"slug":"a","title":"Заглавие","image":"/placeholder.jpg","category":"SEO","savedAt":"2024-06-01T12:00:00Z"}]}`, string(data))

	back := New()
	require.NoError(t, json.Unmarshal(data, back))
	assert.Equal(t, s.List(), back.List())
}

func TestSet_LegacyArray(t *testing.T) {
	legacy := `[{"slug":"x","title":"X","savedAt":"2024-01-01T00:00:00Z"},{"slug":"x","title":"dup"},{"slug":""}]`
	s := New()
	require.NoError(t, json.Unmarshal([]byte(legacy), s))
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "X", s.List()[0].Title)
}

func TestSet_UnknownVersion(t *testing.T) {
	err := New().UnmarshalJSON([]byte(`{"version":7,"items":[]}`))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.json")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	_, _ = s.Add(Item{Slug: "kept", SavedAt: t0})
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.Contains("kept"))

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
