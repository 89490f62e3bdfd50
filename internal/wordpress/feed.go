package wordpress

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
)

// FetchFeedPosts reads {base}/feed as a fallback for sites that disable the
// REST API. Feeds are short (usually the latest 10 posts) and carry category
// names rather than IDs, so Categories is left empty.
func (c *Client) FetchFeedPosts(ctx context.Context, baseURL string) ([]Post, error) {
	base, err := normalizeBase(baseURL)
	if err != nil {
		return nil, err
	}

	parser := gofeed.NewParser()
	parser.Client = c.http
	parser.UserAgent = userAgent

	feed, err := parser.ParseURLWithContext(base+"/feed", ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	var posts []Post
	for _, item := range feed.Items {
		if p, ok := postFromItem(item); ok {
			posts = append(posts, p)
		}
	}
	log.Printf("Parsed %d posts from %s/feed", len(posts), base)
	return posts, nil
}

func postFromItem(item *gofeed.Item) (Post, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return Post{}, false
	}

	p := Post{
		ID:      feedPostID(item.GUID),
		Title:   title,
		Content: item.Content,
		Excerpt: item.Description,
		Link:    item.Link,
	}
	if p.Content == "" {
		p.Content = item.Description
	}
	if item.PublishedParsed != nil {
		p.Date = *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		p.Modified = *item.UpdatedParsed
	} else {
		p.Modified = p.Date
	}
	if u, err := url.Parse(item.Link); err == nil {
		if slug := path.Base(u.Path); slug != "." && slug != "/" {
			p.Slug = slug
		}
	}
	return p, true
}

// feedPostID extracts the numeric ID from a WordPress GUID like
// "https://example.com/?p=123". Returns 0 when there is none.
func feedPostID(guid string) int64 {
	u, err := url.Parse(guid)
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(u.Query().Get("p"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
