// Package saved keeps the reader's saved articles: a set keyed by slug with
// a versioned JSON encoding.
package saved

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/deusflow/technews/internal/storage"
)

// Version of the JSON document written by MarshalJSON.
const Version = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported saved articles version")
	ErrEmptySlug          = errors.New("saved article needs a slug")
)

// Item is the reduced projection of an article that gets saved.
type Item struct {
	Slug     string    `json:"slug"`
	Title    string    `json:"title"`
	Image    string    `json:"image"`
	Category string    `json:"category"`
	SavedAt  time.Time `json:"savedAt"`
}

type document struct {
	Version int    `json:"version"`
	Items   []Item `json:"items"`
}

type Set struct {
	mu    sync.RWMutex
	items map[string]Item
	now   func() time.Time
}

func New() *Set {
	return &Set{items: make(map[string]Item), now: time.Now}
}

// Add stores item unless its slug is already present. SavedAt defaults to
// now. It reports whether the item was added.
func (s *Set) Add(item Item) (bool, error) {
	item.Slug = strings.TrimSpace(item.Slug)
	if item.Slug == "" {
		return false, ErrEmptySlug
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.Slug]; ok {
		return false, nil
	}
	if item.SavedAt.IsZero() {
		item.SavedAt = s.now()
	}
	s.items[item.Slug] = item
	return true, nil
}

func (s *Set) Remove(slug string) bool {
	slug = strings.TrimSpace(slug)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[slug]; !ok {
		return false
	}
	delete(s.items, slug)
	return true
}

func (s *Set) Contains(slug string) bool {
	slug = strings.TrimSpace(slug)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[slug]
	return ok
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// List returns the items newest first; equal times are ordered by slug.
func (s *Set) List() []Item {
	s.mu.RLock()
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].SavedAt.After(out[j].SavedAt)
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(document{Version: Version, Items: s.List()})
}

// UnmarshalJSON replaces the contents of s. Besides the versioned document
// it accepts the legacy bare array of items. Duplicate slugs keep the first
// occurrence.
func (s *Set) UnmarshalJSON(data []byte) error {
	var items []Item

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("decode legacy saved articles: %w", err)
		}
	} else {
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return fmt.Errorf("decode saved articles: %w", err)
		}
		if doc.Version != Version {
			return fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
		}
		items = doc.Items
	}

	fresh := make(map[string]Item, len(items))
	for _, it := range items {
		if it.Slug == "" {
			continue
		}
		if _, dup := fresh[it.Slug]; !dup {
			fresh[it.Slug] = it
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now == nil {
		s.now = time.Now
	}
	s.items = fresh
	return nil
}

// Load reads a set from path. A missing file gives an empty set.
func Load(path string) (*Set, error) {
	s := New()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read saved articles: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode saved articles: %w", err)
	}
	return storage.WriteFileAtomic(path, data)
}
