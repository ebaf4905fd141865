package wordpress

import "strconv"

// Rendered is WordPress' {"rendered": "..."} wrapper.
type Rendered struct {
	Rendered string `json:"rendered"`
}

// Post is a raw post record from /wp/v2/posts. Every field may be absent
// depending on the _fields filter of the query that produced it.
type Post struct {
	ID       *int64    `json:"id,omitempty"`
	Title    *Rendered `json:"title,omitempty"`
	Excerpt  *Rendered `json:"excerpt,omitempty"`
	Content  *Rendered `json:"content,omitempty"`
	Slug     *string   `json:"slug,omitempty"`
	Date     *string   `json:"date,omitempty"`
	Modified *string   `json:"modified,omitempty"`
	Status   *string   `json:"status,omitempty"`
	Link     *string   `json:"link,omitempty"`
	Embedded *Embedded `json:"_embedded,omitempty"`
}

type Embedded struct {
	Author        []Author `json:"author,omitempty"`
	FeaturedMedia []Media  `json:"wp:featuredmedia,omitempty"`
	Terms         [][]Term `json:"wp:term,omitempty"`
}

type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Media struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
	AltText   string `json:"alt_text"`
}

type Term struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Taxonomy string `json:"taxonomy"`
}

// Category is a record from /wp/v2/categories.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// StatusPublish is the status value of publicly visible posts.
const StatusPublish = "publish"

func (p Post) IDString() (string, bool) {
	if p.ID == nil {
		return "", false
	}
	return strconv.FormatInt(*p.ID, 10), true
}

func (p Post) TitleHTML() (string, bool) {
	return rendered(p.Title)
}

func (p Post) ExcerptHTML() (string, bool) {
	return rendered(p.Excerpt)
}

func (p Post) ContentHTML() (string, bool) {
	return rendered(p.Content)
}

func (p Post) SlugValue() (string, bool) {
	return str(p.Slug)
}

func (p Post) DateValue() (string, bool) {
	return str(p.Date)
}

func (p Post) ModifiedValue() (string, bool) {
	return str(p.Modified)
}

func (p Post) StatusValue() (string, bool) {
	return str(p.Status)
}

// AuthorName returns the first embedded author's name.
func (p Post) AuthorName() (string, bool) {
	if p.Embedded == nil || len(p.Embedded.Author) == 0 {
		return "", false
	}
	return nonEmpty(p.Embedded.Author[0].Name)
}

// FeaturedImage returns the source URL of the first embedded featured media.
func (p Post) FeaturedImage() (string, bool) {
	if p.Embedded == nil || len(p.Embedded.FeaturedMedia) == 0 {
		return "", false
	}
	return nonEmpty(p.Embedded.FeaturedMedia[0].SourceURL)
}

// PrimaryTerm returns the name of the first term of the first embedded
// taxonomy (categories come first in wp:term).
func (p Post) PrimaryTerm() (string, bool) {
	if p.Embedded == nil || len(p.Embedded.Terms) == 0 || len(p.Embedded.Terms[0]) == 0 {
		return "", false
	}
	return nonEmpty(p.Embedded.Terms[0][0].Name)
}

func rendered(r *Rendered) (string, bool) {
	if r == nil {
		return "", false
	}
	return nonEmpty(r.Rendered)
}

func str(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return nonEmpty(*s)
}

func nonEmpty(s string) (string, bool) {
	return s, s != ""
}
