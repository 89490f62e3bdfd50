package wordpress

import (
	"encoding/json"
	"strings"
	"time"
)

// wpTimeLayout is the site-local timestamp format of the REST API (no zone).
const wpTimeLayout = "2006-01-02T15:04:05"

// Post is a WordPress post. Title, Content and Excerpt hold raw HTML.
type Post struct {
	ID         int64
	Title      string
	Content    string
	Excerpt    string
	Categories []int64
	Date       time.Time
	Modified   time.Time
	Link       string
	Slug       string
}

// Category is a WordPress post category.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

type rendered struct {
	Rendered string `json:"rendered"`
}

type apiPost struct {
	ID         int64    `json:"id"`
	Date       string   `json:"date"`
	Modified   string   `json:"modified"`
	Slug       string   `json:"slug"`
	Link       string   `json:"link"`
	Title      rendered `json:"title"`
	Content    rendered `json:"content"`
	Excerpt    rendered `json:"excerpt"`
	Categories []int64  `json:"categories"`
}

// UnmarshalJSON decodes the subset of the REST post schema we use.
func (p *Post) UnmarshalJSON(data []byte) error {
	var raw apiPost
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Post{
		ID:         raw.ID,
		Title:      raw.Title.Rendered,
		Content:    raw.Content.Rendered,
		Excerpt:    raw.Excerpt.Rendered,
		Categories: raw.Categories,
		Date:       parseTime(raw.Date),
		Modified:   parseTime(raw.Modified),
		Link:       raw.Link,
		Slug:       raw.Slug,
	}
	return nil
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(wpTimeLayout, s, time.UTC); err == nil {
		return t
	}
	return time.Time{}
}
