package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/BlogPulse/internal/keywords"
	"github.com/TobiSchelling/BlogPulse/internal/treatment"
	"github.com/TobiSchelling/BlogPulse/internal/wordpress"
)

// BlogData is everything one ingestion run produces.
type BlogData struct {
	Site             string
	Posts            []wordpress.Post
	Categories       []wordpress.Category
	Keywords         []string
	TreatmentMatches []treatment.Match
	FetchedAt        time.Time
}

// Site is the per-call input of an ingestion run. Each call carries its own
// site, so one Ingester can serve several sites concurrently.
type Site struct {
	BaseURL       string
	Treatments    []string
	LocaleSuffix  string
	LocaleMarkers []string
	// FeedFallback reads /feed when the REST API refuses to serve posts.
	FeedFallback bool
}

// Fetcher is the subset of the WordPress client used by ingestion.
type Fetcher interface {
	FetchAllPosts(ctx context.Context, baseURL string) (*wordpress.PostsResult, error)
	FetchCategories(ctx context.Context, baseURL string) ([]wordpress.Category, error)
	FetchFeedPosts(ctx context.Context, baseURL string) ([]wordpress.Post, error)
}

// Report describes how the fetch phase went.
type Report struct {
	Pages      int
	Requests   int
	Retries    int
	StopReason wordpress.StopReason
	UsedFeed   bool
}

// Ingester runs fetch → normalize → extract/match.
type Ingester struct {
	fetcher Fetcher
	now     func() time.Time
}

// New creates a new Ingester.
func New(fetcher Fetcher) *Ingester {
	return &Ingester{fetcher: fetcher, now: time.Now}
}

// Run fetches the site and derives keywords and treatment matches.
func (in *Ingester) Run(ctx context.Context, site Site) (*BlogData, *Report, error) {
	started := in.now()

	res, err := in.fetcher.FetchAllPosts(ctx, site.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching posts: %w", err)
	}
	report := &Report{
		Pages:      res.Pages,
		Requests:   res.Requests,
		Retries:    res.Retries,
		StopReason: res.StopReason,
	}
	posts := res.Posts

	if len(posts) == 0 && res.StopReason == wordpress.StopStatus && site.FeedFallback {
		log.Printf("REST API returned HTTP %d, falling back to RSS feed", res.StopStatus)
		feedPosts, err := in.fetcher.FetchFeedPosts(ctx, site.BaseURL)
		if err != nil {
			log.Printf("Feed fallback failed: %v", err)
		} else {
			posts = feedPosts
			report.UsedFeed = true
		}
	}

	categories, err := in.fetcher.FetchCategories(ctx, site.BaseURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		log.Printf("Continuing without categories: %v", err)
	}

	data := &BlogData{
		Site:       site.BaseURL,
		Posts:      posts,
		Categories: categories,
		Keywords:   keywords.Extract(posts),
		TreatmentMatches: treatment.Analyze(posts, site.Treatments, treatment.Options{
			LocaleSuffix:  site.LocaleSuffix,
			LocaleMarkers: site.LocaleMarkers,
		}),
		FetchedAt: started,
	}

	log.Printf("Ingested %s: %d posts, %d categories, %d keywords, %d treatments",
		site.BaseURL, len(data.Posts), len(data.Categories), len(data.Keywords), len(data.TreatmentMatches))
	return data, report, nil
}
