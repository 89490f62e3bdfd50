package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// mockSite serves total synthetic posts from the posts endpoint.
type mockSite struct {
	mu       sync.Mutex
	total    int
	requests int
	// failures maps a page number to the number of 500s to return first.
	failures map[int]int
	// status, if set, is returned for every posts request.
	status int
}

func (m *mockSite) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wp/v2/posts", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		if m.status != 0 {
			m.mu.Unlock()
			w.WriteHeader(m.status)
			return
		}
		if m.failures[page] > 0 {
			m.failures[page]--
			m.mu.Unlock()
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		m.mu.Unlock()

		if r.URL.Query().Get("orderby") != "date" || r.URL.Query().Get("order") != "desc" {
			t.Errorf("unexpected ordering params: %s", r.URL.RawQuery)
		}

		start := (page - 1) * perPage
		var posts []map[string]any
		for i := start; i < start+perPage && i < m.total; i++ {
			posts = append(posts, map[string]any{
				"id":         i + 1,
				"date":       "2026-01-02T10:00:00",
				"modified":   "2026-01-03T10:00:00",
				"title":      map[string]string{"rendered": fmt.Sprintf("Post %d", i+1)},
				"content":    map[string]string{"rendered": "<p>Body</p>"},
				"excerpt":    map[string]string{"rendered": "<p>Excerpt</p>"},
				"categories": []int{1},
			})
		}
		if posts == nil {
			posts = []map[string]any{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(posts)
	})
	mux.HandleFunc("/wp-json/wp/v2/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("per_page") != "100" {
			t.Errorf("expected per_page=100, got %q", r.URL.Query().Get("per_page"))
		}
		w.Write([]byte(`[{"id":1,"name":"Hair","slug":"hair","count":3},{"id":2,"name":"Dental","slug":"dental","count":1}]`))
	})
	return mux
}

func newTestClient(sleeps *[]time.Duration) *Client {
	return NewClient(Options{
		PageSize: 50,
		Sleep: func(_ context.Context, d time.Duration) error {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
			return nil
		},
	})
}

func TestFetchAllPostsThreePages(t *testing.T) {
	site := &mockSite{total: 112}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	var sleeps []time.Duration
	res, err := newTestClient(&sleeps).FetchAllPosts(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Posts) != 112 {
		t.Errorf("expected 112 posts, got %d", len(res.Posts))
	}
	if res.Requests != 3 || site.requests != 3 {
		t.Errorf("expected 3 requests, got %d (server saw %d)", res.Requests, site.requests)
	}
	if res.Retries != 0 {
		t.Errorf("expected no retries, got %d", res.Retries)
	}
	if res.StopReason != StopShortPage {
		t.Errorf("expected short_page stop, got %s", res.StopReason)
	}
	// Two inter-page delays, no backoff waits.
	if len(sleeps) != 2 || sleeps[0] != DefaultPageDelay || sleeps[1] != DefaultPageDelay {
		t.Errorf("unexpected sleeps: %v", sleeps)
	}
	if res.Posts[0].ID != 1 || res.Posts[111].ID != 112 {
		t.Error("posts should be appended in page order")
	}
}

func TestFetchAllPostsPaginationProperty(t *testing.T) {
	for _, n := range []int{0, 1, 49, 50, 51, 100, 149, 150, 237} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			site := &mockSite{total: n}
			srv := httptest.NewServer(site.handler(t))
			defer srv.Close()

			res, err := newTestClient(nil).FetchAllPosts(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Posts) != n {
				t.Errorf("expected %d posts, got %d", n, len(res.Posts))
			}
			wantPages := (n + 49) / 50
			if res.Pages != wantPages {
				t.Errorf("expected %d successful pages, got %d", wantPages, res.Pages)
			}
		})
	}
}

func TestFetchAllPostsRetriesSamePage(t *testing.T) {
	site := &mockSite{total: 60, failures: map[int]int{2: 2}}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	var sleeps []time.Duration
	res, err := newTestClient(&sleeps).FetchAllPosts(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Posts) != 60 {
		t.Errorf("expected 60 posts, got %d", len(res.Posts))
	}
	if res.Retries != 2 {
		t.Errorf("expected 2 retries, got %d", res.Retries)
	}
	// page delay, then backoff 2s and 4s before page 2 succeeds.
	want := []time.Duration{DefaultPageDelay, 2 * time.Second, 4 * time.Second}
	if fmt.Sprint(sleeps) != fmt.Sprint(want) {
		t.Errorf("expected sleeps %v, got %v", want, sleeps)
	}
}

func TestFetchAllPostsReturnsPartialAfterExhaustedRetries(t *testing.T) {
	site := &mockSite{total: 120, failures: map[int]int{2: 10}}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	res, err := newTestClient(nil).FetchAllPosts(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("expected partial result without error, got %v", err)
	}
	if len(res.Posts) != 50 {
		t.Errorf("expected only the first page (50 posts), got %d", len(res.Posts))
	}
	if res.StopReason != StopRetriesExhausted {
		t.Errorf("expected retries_exhausted, got %s", res.StopReason)
	}
	if res.Requests != 1+DefaultMaxAttempts {
		t.Errorf("expected %d requests, got %d", 1+DefaultMaxAttempts, res.Requests)
	}
}

func TestFetchAllPostsStopsOnClientError(t *testing.T) {
	site := &mockSite{status: http.StatusBadRequest}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	res, err := newTestClient(nil).FetchAllPosts(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Posts) != 0 {
		t.Errorf("expected no posts, got %d", len(res.Posts))
	}
	if res.StopReason != StopStatus || res.StopStatus != http.StatusBadRequest {
		t.Errorf("expected stop on 400, got %s/%d", res.StopReason, res.StopStatus)
	}
	if site.requests != 1 {
		t.Errorf("400 must not be retried, server saw %d requests", site.requests)
	}
}

func TestFetchAllPostsHonorsTotalPagesHeader(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("X-WP-TotalPages", "1")
		var posts []map[string]any
		for i := 0; i < 50; i++ {
			posts = append(posts, map[string]any{"id": i + 1, "title": map[string]string{"rendered": "x"}})
		}
		json.NewEncoder(w).Encode(posts)
	}))
	defer srv.Close()

	res, err := newTestClient(nil).FetchAllPosts(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 1 || res.StopReason != StopLastPage {
		t.Errorf("expected a single request ending at last_page, got %d/%s", requests, res.StopReason)
	}
}

func TestFetchAllPostsInvalidBaseURL(t *testing.T) {
	if _, err := newTestClient(nil).FetchAllPosts(context.Background(), "not a url"); err == nil {
		t.Error("expected error for invalid base URL")
	}
}

func TestFetchCategories(t *testing.T) {
	site := &mockSite{}
	srv := httptest.NewServer(site.handler(t))
	defer srv.Close()

	cats, err := newTestClient(nil).FetchCategories(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cats) != 2 || cats[0].Name != "Hair" || cats[1].Slug != "dental" {
		t.Errorf("unexpected categories: %+v", cats)
	}
}

func TestPostUnmarshal(t *testing.T) {
	var p Post
	data := `{"id":7,"date":"2026-03-04T05:06:07","modified":"2026-03-05T00:00:00",
		"title":{"rendered":"Hair &amp; Beard"},"content":{"rendered":"<p>x</p>"},
		"excerpt":{"rendered":"e"},"categories":[3,4],"link":"https://s.test/hair","slug":"hair"}`
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.ID != 7 || p.Title != "Hair &amp; Beard" || len(p.Categories) != 2 {
		t.Errorf("unexpected post: %+v", p)
	}
	want := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	if !p.Date.Equal(want) {
		t.Errorf("expected date %v, got %v", want, p.Date)
	}
}
