package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/BlogPulse/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// OwnerHeader carries the caller's identity.
const OwnerHeader = "X-Owner"

const signInMessage = "Your session has no user identity. Please sign in again."

// Options configures a Server.
type Options struct {
	// DefaultOwner is used when a request has no X-Owner header.
	DefaultOwner string
}

// Server is the HTTP server for the dashboard and calendar API.
type Server struct {
	db     *database.DB
	opts   Options
	pages  map[string]*template.Template
	router *mux.Router
}

// New creates a new Server.
func New(db *database.DB, opts Options) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":   renderMarkdown,
		"formatDate": database.FormatDateDisplay,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of the base so "title" and "content" do
	// not collide.
	pageNames := []string{"index.html", "report.html", "calendar.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, opts: opts, pages: pages, router: mux.NewRouter()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/reports/{date}", s.handleReport).Methods(http.MethodGet)
	s.router.HandleFunc("/calendar", s.handleCalendarPage).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.loggingMiddleware)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/calendar", s.handleListCalendar).Methods(http.MethodGet)
	api.HandleFunc("/calendar/{postID:[0-9]+}", s.handlePutCalendar).Methods(http.MethodPut)
	api.HandleFunc("/calendar/{postID:[0-9]+}", s.handleDeleteCalendar).Methods(http.MethodDelete)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

// owner returns the request identity, or "" when there is none.
func (s *Server) owner(r *http.Request) string {
	if o := strings.TrimSpace(r.Header.Get(OwnerHeader)); o != "" {
		return o
	}
	return s.opts.DefaultOwner
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	reports, err := s.db.GetAllReports()
	if err != nil {
		log.Printf("Listing reports: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var latest *database.Report
	if len(reports) > 0 {
		latest = &reports[0]
	}
	// Run history is secondary; the page still renders without it.
	runs, err := s.db.ListIngestionRuns(1)
	if err != nil {
		log.Printf("Listing ingestion runs: %v", err)
	}
	var lastRun *database.IngestionRun
	var coverage []database.TreatmentCoverage
	if len(runs) > 0 {
		lastRun = &runs[0]
		if coverage, err = s.db.GetCoverage(lastRun.ID); err != nil {
			log.Printf("Loading coverage for run %s: %v", lastRun.ID, err)
		}
	}

	s.render(w, http.StatusOK, "index.html", map[string]any{
		"Latest":   latest,
		"Reports":  reports,
		"LastRun":  lastRun,
		"Coverage": coverage,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if !database.ValidDate(date) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	report, err := s.db.GetReport(date)
	if err != nil {
		log.Printf("Loading report %s: %v", date, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	status := http.StatusOK
	if report == nil {
		status = http.StatusNotFound
	}
	s.render(w, status, "report.html", map[string]any{
		"Report": report,
		"Date":   date,
	})
}

func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(r)
	if owner == "" {
		s.render(w, http.StatusUnauthorized, "calendar.html", map[string]any{"Message": signInMessage})
		return
	}
	entries, err := s.db.ListCalendar(owner, "", "")
	if err != nil {
		log.Printf("Listing calendar for %s: %v", owner, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.render(w, http.StatusOK, "calendar.html", map[string]any{
		"Owner":   owner,
		"Entries": entries,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.db.ListIngestionRuns(limit)
	if err != nil {
		log.Printf("Listing ingestion runs: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load runs")
		return
	}
	totals, err := s.db.GetStats()
	if err != nil {
		log.Printf("Loading stats: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load stats")
		return
	}

	var coverage []database.TreatmentCoverage
	if len(runs) > 0 {
		if coverage, err = s.db.GetCoverage(runs[0].ID); err != nil {
			log.Printf("Loading coverage for run %s: %v", runs[0].ID, err)
			writeError(w, http.StatusInternalServerError, "could not load coverage")
			return
		}
	}
	if runs == nil {
		runs = []database.IngestionRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":     runs,
		"coverage": coverage,
		"totals":   totals,
	})
}

func (s *Server) handleListCalendar(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(r)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, signInMessage)
		return
	}
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	for _, d := range []string{from, to} {
		if d != "" && !database.ValidDate(d) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q (want YYYY-MM-DD)", d))
			return
		}
	}

	entries, err := s.db.ListCalendar(owner, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load calendar")
		return
	}
	if entries == nil {
		entries = []database.CalendarEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type calendarRequest struct {
	Title         string  `json:"title"`
	ScheduledDate string  `json:"scheduled_date"`
	Status        string  `json:"status"`
	Notes         *string `json:"notes"`
}

func (s *Server) handlePutCalendar(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(r)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, signInMessage)
		return
	}
	postID, _ := strconv.ParseInt(mux.Vars(r)["postID"], 10, 64)

	var req calendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if !database.ValidDate(req.ScheduledDate) {
		writeError(w, http.StatusBadRequest, "scheduled_date must be YYYY-MM-DD")
		return
	}
	if req.Status != "" && !database.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
		return
	}

	entry, err := s.db.UpsertCalendarEntry(database.CalendarEntry{
		Owner:         owner,
		PostID:        postID,
		Title:         strings.TrimSpace(req.Title),
		ScheduledDate: req.ScheduledDate,
		Status:        req.Status,
		Notes:         req.Notes,
	})
	if err != nil {
		log.Printf("Calendar upsert failed for post %d: %v", postID, err)
		writeError(w, http.StatusInternalServerError, "could not save calendar entry")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteCalendar(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(r)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, signInMessage)
		return
	}
	postID, _ := strconv.ParseInt(mux.Vars(r)["postID"], 10, 64)

	deleted, err := s.db.DeleteCalendarEntry(owner, postID)
	if err != nil {
		if errors.Is(err, database.ErrNoOwner) {
			writeError(w, http.StatusUnauthorized, signInMessage)
			return
		}
		writeError(w, http.StatusInternalServerError, "could not delete calendar entry")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "no calendar entry for that post")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port and shuts it down when ctx
// is cancelled.
func Serve(ctx context.Context, db *database.DB, opts Options, port int) error {
	srv, err := New(db, opts)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://%s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
