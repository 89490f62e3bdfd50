package database

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func TestUpsertCalendarEntry(t *testing.T) {
	db := openTestDB(t)
	e, err := db.UpsertCalendarEntry(CalendarEntry{
		Owner: "alice", PostID: 42, Title: "Hair Transplant Guide", ScheduledDate: "2026-11-02",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID == "" {
		t.Error("expected generated ID")
	}
	if e.Status != StatusIdea {
		t.Errorf("expected default status idea, got %q", e.Status)
	}
}

func TestUpsertCalendarEntryMoveKeepsID(t *testing.T) {
	db := openTestDB(t)
	first, _ := db.UpsertCalendarEntry(CalendarEntry{Owner: "alice", PostID: 7, Title: "A", ScheduledDate: "2026-11-02"})
	moved, err := db.UpsertCalendarEntry(CalendarEntry{
		Owner: "alice", PostID: 7, Title: "A", ScheduledDate: "2026-11-09", Status: StatusScheduled, Notes: ptr("push to monday"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.ID != first.ID {
		t.Errorf("expected ID %q to survive move, got %q", first.ID, moved.ID)
	}
	if moved.ScheduledDate != "2026-11-09" || moved.Status != StatusScheduled {
		t.Errorf("move not applied: %+v", moved)
	}
	if moved.Notes == nil || *moved.Notes != "push to monday" {
		t.Errorf("expected notes to be stored, got %v", moved.Notes)
	}

	entries, _ := db.ListCalendar("alice", "", "")
	if len(entries) != 1 {
		t.Errorf("expected 1 entry after move, got %d", len(entries))
	}
}

func TestUpsertCalendarEntryValidation(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.UpsertCalendarEntry(CalendarEntry{PostID: 1, Title: "x", ScheduledDate: "2026-11-02"}); !errors.Is(err, ErrNoOwner) {
		t.Errorf("expected ErrNoOwner, got %v", err)
	}
	if _, err := db.UpsertCalendarEntry(CalendarEntry{Owner: "a", PostID: 1, Title: "x", ScheduledDate: "11/02/2026"}); err == nil {
		t.Error("expected error for bad date")
	}
	if _, err := db.UpsertCalendarEntry(CalendarEntry{Owner: "a", PostID: 1, Title: "x", ScheduledDate: "2026-11-02", Status: "live"}); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestCalendarOwnerIsolation(t *testing.T) {
	db := openTestDB(t)
	db.UpsertCalendarEntry(CalendarEntry{Owner: "alice", PostID: 1, Title: "A", ScheduledDate: "2026-11-02"})
	db.UpsertCalendarEntry(CalendarEntry{Owner: "bob", PostID: 1, Title: "B", ScheduledDate: "2026-11-03"})

	alice, _ := db.ListCalendar("alice", "", "")
	if len(alice) != 1 || alice[0].Title != "A" {
		t.Errorf("alice should only see her entry, got %+v", alice)
	}

	deleted, err := db.DeleteCalendarEntry("bob", 1)
	if err != nil || !deleted {
		t.Fatalf("expected bob's entry deleted, got %v %v", deleted, err)
	}
	got, _ := db.GetCalendarEntry("alice", 1)
	if got == nil {
		t.Error("deleting bob's entry must not touch alice's")
	}

	deleted, _ = db.DeleteCalendarEntry("bob", 1)
	if deleted {
		t.Error("expected second delete to report nothing removed")
	}

	if _, err := db.ListCalendar("", "", ""); !errors.Is(err, ErrNoOwner) {
		t.Errorf("expected ErrNoOwner, got %v", err)
	}
}

func TestListCalendarRange(t *testing.T) {
	db := openTestDB(t)
	for i, d := range []string{"2026-10-30", "2026-11-02", "2026-11-15", "2026-12-01"} {
		db.UpsertCalendarEntry(CalendarEntry{Owner: "alice", PostID: int64(i + 1), Title: d, ScheduledDate: d})
	}

	entries, err := db.ListCalendar("alice", "2026-11-01", "2026-11-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries in November, got %d", len(entries))
	}
	if entries[0].ScheduledDate != "2026-11-02" || entries[1].ScheduledDate != "2026-11-15" {
		t.Errorf("unexpected order: %s, %s", entries[0].ScheduledDate, entries[1].ScheduledDate)
	}
}

func TestGetCalendarEntryNotFound(t *testing.T) {
	db := openTestDB(t)
	e, err := db.GetCalendarEntry("alice", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e != nil {
		t.Error("expected nil for missing entry")
	}
}

func TestPageAnalysisUpsert(t *testing.T) {
	db := openTestDB(t)
	payload := map[string]any{"checks": []string{"images", "schema"}}

	if err := db.SavePageAnalysis("alice", "https://example.com/a", 40, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.SavePageAnalysis("alice", "https://example.com/a", 75, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db.SavePageAnalysis("alice", "https://example.com/b", 20, payload)

	a, err := db.GetPageAnalysis("alice", "https://example.com/a")
	if err != nil || a == nil {
		t.Fatalf("expected analysis, got %v %v", a, err)
	}
	if a.Score != 75 {
		t.Errorf("expected score 75 after re-save, got %d", a.Score)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(a.Payload), &decoded); err != nil {
		t.Errorf("payload not JSON: %v", err)
	}

	list, _ := db.ListPageAnalyses("alice")
	if len(list) != 2 || list[0].URL != "https://example.com/b" {
		t.Errorf("expected lowest score first, got %+v", list)
	}

	other, _ := db.ListPageAnalyses("bob")
	if len(other) != 0 {
		t.Errorf("expected no analyses for bob, got %d", len(other))
	}
}

func TestKeywordRanks(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	db.UpsertKeywordRank("alice", "rhinoplasty", 0, "", now)
	db.UpsertKeywordRank("alice", "hair transplant", 7, "https://example.com/hair", now)
	db.UpsertKeywordRank("alice", "dental implants", 3, "https://example.com/teeth", now)
	db.UpsertKeywordRank("alice", "hair transplant", 4, "https://example.com/hair", now)

	ranks, err := db.ListKeywordRanks("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranks) != 3 {
		t.Fatalf("expected 3 ranks, got %d", len(ranks))
	}
	want := []string{"dental implants", "hair transplant", "rhinoplasty"}
	for i, k := range want {
		if ranks[i].Keyword != k {
			t.Errorf("rank %d: expected %q, got %q", i, k, ranks[i].Keyword)
		}
	}
	if ranks[1].Position != 4 {
		t.Errorf("expected updated position 4, got %d", ranks[1].Position)
	}
	if ranks[2].URL != nil {
		t.Errorf("expected nil URL for unranked keyword, got %q", *ranks[2].URL)
	}
}

func TestIngestionRunWithCoverage(t *testing.T) {
	db := openTestDB(t)
	run := IngestionRun{
		Site: "https://clinic.example", StartedAt: "2026-10-18T09:00:00Z",
		Posts: 120, Categories: 8, Keywords: 640, Pages: 3, Requests: 4, Retries: 1,
		StopReason: "short_page", GapRate: 50, Diversity: 533, AvgWords: 812, GrowthRate: 25,
	}
	coverage := []TreatmentCoverage{
		{Treatment: "rhinoplasty", Frequency: 1},
		{Treatment: "hair transplant", Frequency: 14},
	}

	id, err := db.InsertIngestionRun(run, coverage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(id) != 26 {
		t.Errorf("expected 26-char ULID, got %q", id)
	}

	latest, err := db.GetLatestRun("https://clinic.example")
	if err != nil || latest == nil {
		t.Fatalf("expected latest run, got %v %v", latest, err)
	}
	if latest.ID != id || latest.AvgWords != 812 || latest.StopReason != "short_page" {
		t.Errorf("unexpected run: %+v", latest)
	}

	cov, _ := db.GetCoverage(id)
	if len(cov) != 2 || cov[0].Treatment != "hair transplant" {
		t.Errorf("expected coverage ordered by frequency, got %+v", cov)
	}
}

func TestListIngestionRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	db.InsertIngestionRun(IngestionRun{Site: "s", StartedAt: "2026-10-16T09:00:00Z"}, nil)
	db.InsertIngestionRun(IngestionRun{Site: "s", StartedAt: "2026-10-18T09:00:00Z"}, nil)
	db.InsertIngestionRun(IngestionRun{Site: "s", StartedAt: "2026-10-17T09:00:00Z"}, nil)

	runs, err := db.ListIngestionRuns(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected limit 2, got %d", len(runs))
	}
	if runs[0].StartedAt != "2026-10-18T09:00:00Z" {
		t.Errorf("expected newest first, got %s", runs[0].StartedAt)
	}
}

func TestNewRunIDMonotonic(t *testing.T) {
	prev := newRunID()
	for range 100 {
		id := newRunID()
		if id <= prev {
			t.Fatalf("expected increasing IDs, got %s after %s", id, prev)
		}
		prev = id
	}
}

func TestGetLatestRunEmpty(t *testing.T) {
	db := openTestDB(t)
	r, err := db.GetLatestRun("nowhere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != nil {
		t.Error("expected nil for site with no runs")
	}
}

func TestInsertAndGetReport(t *testing.T) {
	db := openTestDB(t)
	_, err := db.InsertReport(Report{
		Date: "2026-10-18", Site: "https://clinic.example", Summary: "Solid month.",
		BodyMarkdown: "# Report", PostCount: 120, GapRate: 50, Source: ptr("ai"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := db.GetReport("2026-10-18")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r == nil || r.Summary != "Solid month." || r.Source == nil || *r.Source != "ai" {
		t.Errorf("unexpected report: %+v", r)
	}
}

func TestInsertReportReplacesSameDate(t *testing.T) {
	db := openTestDB(t)
	db.InsertReport(Report{Date: "2026-10-18", Site: "s", Summary: "first", BodyMarkdown: "a"})
	db.InsertReport(Report{Date: "2026-10-18", Site: "s", Summary: "second", BodyMarkdown: "b"})
	db.InsertReport(Report{Date: "2026-10-11", Site: "s", Summary: "older", BodyMarkdown: "c"})

	all, _ := db.GetAllReports()
	if len(all) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(all))
	}
	if all[0].Summary != "second" {
		t.Errorf("expected replaced report first, got %q", all[0].Summary)
	}

	latest, _ := db.GetLatestReport()
	if latest == nil || latest.Date != "2026-10-18" {
		t.Errorf("unexpected latest report: %+v", latest)
	}
}

func TestGetReportNotFound(t *testing.T) {
	db := openTestDB(t)
	r, err := db.GetReport("2099-01-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != nil {
		t.Error("expected nil for missing report")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	db.InsertIngestionRun(IngestionRun{Site: "s", StartedAt: "2026-10-18T09:00:00Z"}, nil)
	db.InsertReport(Report{Date: "2026-10-18", Site: "s", Summary: "x", BodyMarkdown: "y"})
	db.UpsertCalendarEntry(CalendarEntry{Owner: "alice", PostID: 1, Title: "A", ScheduledDate: "2026-11-02"})
	db.UpsertKeywordRank("alice", "botox", 2, "", time.Now())

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.IngestionRuns != 1 || stats.Reports != 1 || stats.CalendarEntries != 1 || stats.KeywordRanks != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.LastRunAt != "2026-10-18T09:00:00Z" {
		t.Errorf("unexpected last run: %q", stats.LastRunAt)
	}
}

func TestFormatDateDisplay(t *testing.T) {
	if got := FormatDateDisplay("2026-02-06"); got != "Feb 06, 2026" {
		t.Errorf("got %q", got)
	}
	if got := FormatDateDisplay("garbage"); got != "garbage" {
		t.Errorf("expected passthrough, got %q", got)
	}
}
