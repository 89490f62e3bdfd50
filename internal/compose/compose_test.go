package compose

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/BlogPulse/internal/advisor"
	"github.com/TobiSchelling/BlogPulse/internal/database"
	"github.com/TobiSchelling/BlogPulse/internal/keywords"
	"github.com/TobiSchelling/BlogPulse/internal/llm"
	"github.com/TobiSchelling/BlogPulse/internal/stats"
)

// mockProvider answers recommendation prompts with a JSON array and
// everything else with a summary.
type mockProvider struct {
	summary         string
	recommendations string
	err             error
}

func (m *mockProvider) Generate(_ context.Context, req llm.Request) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	for _, msg := range req.Messages {
		if strings.Contains(msg.Content, "JSON array") {
			return m.recommendations, nil
		}
	}
	return m.summary, nil
}

func (m *mockProvider) IsConfigured() bool { return true }

func noSleep(context.Context, time.Duration) error { return nil }

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleDashboard() stats.Dashboard {
	return stats.Dashboard{
		Site:                  "https://clinic.example",
		PostCount:             3,
		CategoryCount:         2,
		UniqueKeywords:        40,
		ContentGapRate:        50,
		Gaps:                  []string{"Rhinoplasty in Turkey"},
		KeywordDiversityIndex: 100,
		AvgWordsPerPost:       420,
		PublicationTrend:      stats.PublicationTrend{Last30Days: 2, Days31To90: 1},
		GrowthRate:            300,
		TopKeywords:           []keywords.KeywordCount{{Keyword: "hair", Count: 6}, {Keyword: "transplant", Count: 4}},
		Treatments: []stats.TreatmentCount{
			{Treatment: "Hair Transplant in Turkey", Frequency: 2},
			{Treatment: "Rhinoplasty in Turkey", Frequency: 0},
		},
		MonthlyPosts: []stats.MonthlyCount{{Label: "Oct 2026", Count: 2}},
	}
}

func TestComposeReport(t *testing.T) {
	db := openTestDB(t)
	provider := &mockProvider{
		summary:         "Coverage is uneven; rhinoplasty needs attention.",
		recommendations: `[{"title": "Rhinoplasty Recovery Week by Week", "keyword": "rhinoplasty recovery", "priority": "high"}]`,
	}
	adv := advisor.New(provider, advisor.Config{PrimaryModel: "m1"}).WithSleep(noSleep)

	report, err := NewComposer(db, adv).ComposeReport(context.Background(), "2026-10-18", sampleDashboard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report == nil {
		t.Fatal("expected report")
	}
	if report.Date != "2026-10-18" || report.PostCount != 3 || report.GapRate != 50 {
		t.Errorf("unexpected report header: %+v", report)
	}
	if report.Summary != "Coverage is uneven; rhinoplasty needs attention." {
		t.Errorf("unexpected summary %q", report.Summary)
	}
	if report.Source == nil || *report.Source != "ai" {
		t.Errorf("expected source ai, got %v", report.Source)
	}
	if !strings.Contains(report.BodyMarkdown, "Rhinoplasty Recovery Week by Week") {
		t.Error("expected AI suggestion in body")
	}
	if !strings.Contains(report.BodyMarkdown, "**Gaps:** Rhinoplasty in Turkey") {
		t.Error("expected gap list in body")
	}
}

func TestComposeFallbackWithoutAdvisor(t *testing.T) {
	db := openTestDB(t)
	report, err := NewComposer(db, nil).ComposeReport(context.Background(), "2026-10-18", sampleDashboard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Source == nil || *report.Source != "fallback" {
		t.Errorf("expected fallback source, got %v", report.Source)
	}
	if !strings.Contains(report.BodyMarkdown, "The Complete Guide to Rhinoplasty in Turkey") {
		t.Errorf("expected local suggestion, got:\n%s", report.BodyMarkdown)
	}
	if !strings.Contains(report.BodyMarkdown, "Generated locally") {
		t.Error("expected fallback note")
	}
}

func TestComposeFallbackOnProviderFailure(t *testing.T) {
	db := openTestDB(t)
	provider := &mockProvider{err: errors.New("connection refused")}
	adv := advisor.New(provider, advisor.Config{PrimaryModel: "m1"}).WithSleep(noSleep)

	report, err := NewComposer(db, adv).ComposeReport(context.Background(), "2026-10-18", sampleDashboard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(report.Summary, "The blog has 3 posts") {
		t.Errorf("expected local summary, got %q", report.Summary)
	}
}

func TestComposeUnauthorized(t *testing.T) {
	db := openTestDB(t)
	provider := &mockProvider{err: llm.ErrUnauthorized}
	adv := advisor.New(provider, advisor.Config{PrimaryModel: "m1"}).WithSleep(noSleep)

	_, err := NewComposer(db, adv).ComposeReport(context.Background(), "2026-10-18", sampleDashboard())
	if !errors.Is(err, llm.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if r, _ := db.GetReport("2026-10-18"); r != nil {
		t.Error("no report should be stored on auth failure")
	}
}

func TestAssembleBodySections(t *testing.T) {
	body := AssembleBody(stats.Dashboard{}, advisor.Recommendations{})
	for _, want := range []string{"## Overview", "## Treatment Coverage", "No treatments configured.", "No keywords extracted.", "No suggestions."} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in body", want)
		}
	}
}

func TestEscapeCell(t *testing.T) {
	if got := escapeCell("a|b"); got != `a\|b` {
		t.Errorf("got %q", got)
	}
}
