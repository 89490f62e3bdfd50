package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/BlogPulse/internal/config"
	"github.com/TobiSchelling/BlogPulse/internal/database"
	"github.com/TobiSchelling/BlogPulse/internal/wordpress"
)

type fakeFetcher struct {
	posts []wordpress.Post
	err   error
}

func (f *fakeFetcher) FetchAllPosts(_ context.Context, _ string) (*wordpress.PostsResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &wordpress.PostsResult{Posts: f.posts, Pages: 1, Requests: 1, StopReason: wordpress.StopShortPage}, nil
}

func (f *fakeFetcher) FetchCategories(_ context.Context, _ string) ([]wordpress.Category, error) {
	return []wordpress.Category{{ID: 1, Name: "Hair"}}, nil
}

func (f *fakeFetcher) FetchFeedPosts(_ context.Context, _ string) ([]wordpress.Post, error) {
	return nil, nil
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Site: config.Site{
			BaseURL:       "https://clinic.example",
			Treatments:    []string{"Hair Transplant in Turkey", "Rhinoplasty in Turkey"},
			LocaleSuffix:  "in Turkey",
			LocaleMarkers: []string{"turkey", "istanbul"},
		},
		Ingest: config.Ingest{PageSize: 50},
	}
}

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func samplePosts() []wordpress.Post {
	return []wordpress.Post{
		{ID: 1, Title: "Hair Transplant in Istanbul", Content: "<p>Hair transplant recovery timeline in Turkey</p>", Date: now.AddDate(0, 0, -3)},
		{ID: 2, Title: "Hair Transplant Costs", Content: "<p>What a hair transplant costs in Istanbul</p>", Date: now.AddDate(0, 0, -10)},
		{ID: 3, Title: "Dental Care Tips", Content: "<p>Brushing and flossing every day</p>", Date: now.AddDate(0, 0, -45)},
	}
}

func newTestPipeline(t *testing.T, db *database.DB, f *fakeFetcher) *Pipeline {
	t.Helper()
	p := New(testConfig(), db, f, nil)
	p.now = func() time.Time { return now }
	return p
}

func TestRunStoresRunAndReport(t *testing.T) {
	db := openTestDB(t)
	p := newTestPipeline(t, db, &fakeFetcher{posts: samplePosts()})

	r := p.Run(context.Background(), Options{Report: true})
	if err := r.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(r.Steps))
	}
	if r.Date != "2026-10-18" {
		t.Errorf("expected date from clock, got %s", r.Date)
	}
	if r.Dashboard.ContentGapRate != 50 {
		t.Errorf("expected gap rate 50, got %d", r.Dashboard.ContentGapRate)
	}

	run, _ := db.GetLatestRun("https://clinic.example")
	if run == nil || run.ID != r.RunID || run.Posts != 3 || run.StopReason != "short_page" {
		t.Errorf("unexpected stored run: %+v", run)
	}
	cov, _ := db.GetCoverage(r.RunID)
	if len(cov) != 2 || cov[0].Treatment != "Hair Transplant in Turkey" || cov[0].Frequency != 2 {
		t.Errorf("unexpected coverage: %+v", cov)
	}

	report, _ := db.GetReport("2026-10-18")
	if report == nil {
		t.Fatal("expected report to be stored")
	}
	if !strings.Contains(report.BodyMarkdown, "Rhinoplasty in Turkey") {
		t.Error("expected gap in report body")
	}
}

func TestRunWithoutReport(t *testing.T) {
	db := openTestDB(t)
	r := newTestPipeline(t, db, &fakeFetcher{posts: samplePosts()}).Run(context.Background(), Options{})
	if len(r.Steps) != 3 {
		t.Errorf("expected 3 steps, got %d", len(r.Steps))
	}
	if reports, _ := db.GetAllReports(); len(reports) != 0 {
		t.Errorf("expected no report, got %d", len(reports))
	}
}

func TestRunIngestError(t *testing.T) {
	db := openTestDB(t)
	r := newTestPipeline(t, db, &fakeFetcher{err: errors.New("invalid base URL")}).Run(context.Background(), Options{Report: true})
	if r.Err() == nil {
		t.Fatal("expected error")
	}
	if len(r.Steps) != 1 || r.Steps[0].Name != "Ingest" {
		t.Errorf("expected to stop after ingest, got %+v", r.Steps)
	}
	if stats, _ := db.GetStats(); stats.IngestionRuns != 0 {
		t.Error("no run should be recorded")
	}
}

func TestAnalyze(t *testing.T) {
	p := newTestPipeline(t, openTestDB(t), &fakeFetcher{posts: samplePosts()})
	data, report, dash, err := p.Analyze(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data.Posts) != 3 || report.Pages != 1 {
		t.Errorf("unexpected data: %d posts, %d pages", len(data.Posts), report.Pages)
	}
	if dash.PublicationTrend.Last30Days != 2 || dash.PublicationTrend.Days31To90 != 1 {
		t.Errorf("unexpected trend: %+v", dash.PublicationTrend)
	}
}

func TestDryRun(t *testing.T) {
	db := openTestDB(t)
	p := newTestPipeline(t, db, &fakeFetcher{})
	r := p.DryRun()
	if len(r.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(r.Steps))
	}
	for _, s := range r.Steps {
		if !strings.HasPrefix(s.Summary, "[dry-run]") {
			t.Errorf("expected dry-run summary, got %q", s.Summary)
		}
	}
}
