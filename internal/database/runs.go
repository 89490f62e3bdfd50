package database

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newRunID returns a time-ordered ULID.
func newRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

const runColumns = `id, site, started_at, posts, categories, keywords, pages, requests, retries,
	COALESCE(stop_reason, ''), used_feed, gap_rate, diversity, avg_words, growth_rate`

// InsertIngestionRun stores a run with its treatment coverage in one
// transaction and returns the new run ID.
func (db *DB) InsertIngestionRun(r IngestionRun, coverage []TreatmentCoverage) (string, error) {
	id := newRunID()

	tx, err := db.conn.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO ingestion_runs
		(id, site, started_at, posts, categories, keywords, pages, requests, retries,
		 stop_reason, used_feed, gap_rate, diversity, avg_words, growth_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Site, r.StartedAt, r.Posts, r.Categories, r.Keywords, r.Pages, r.Requests, r.Retries,
		r.StopReason, r.UsedFeed, r.GapRate, r.Diversity, r.AvgWords, r.GrowthRate,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for _, c := range coverage {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO treatment_coverage (run_id, treatment, frequency) VALUES (?, ?, ?)",
			id, c.Treatment, c.Frequency,
		); err != nil {
			return "", fmt.Errorf("inserting coverage for %q: %w", c.Treatment, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// ListIngestionRuns returns the most recent runs first.
func (db *DB) ListIngestionRuns(limit int) ([]IngestionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		"SELECT "+runColumns+" FROM ingestion_runs ORDER BY started_at DESC, id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []IngestionRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetLatestRun returns the newest run for a site, or nil.
func (db *DB) GetLatestRun(site string) (*IngestionRun, error) {
	row := db.conn.QueryRow(
		"SELECT "+runColumns+" FROM ingestion_runs WHERE site = ? ORDER BY started_at DESC, id DESC LIMIT 1", site,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetCoverage returns the treatment frequencies of a run, highest first.
func (db *DB) GetCoverage(runID string) ([]TreatmentCoverage, error) {
	rows, err := db.conn.Query(
		"SELECT run_id, treatment, frequency FROM treatment_coverage WHERE run_id = ? ORDER BY frequency DESC, treatment",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TreatmentCoverage
	for rows.Next() {
		var c TreatmentCoverage
		if err := rows.Scan(&c.RunID, &c.Treatment, &c.Frequency); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanRun(s scanner) (*IngestionRun, error) {
	var r IngestionRun
	if err := s.Scan(&r.ID, &r.Site, &r.StartedAt, &r.Posts, &r.Categories, &r.Keywords,
		&r.Pages, &r.Requests, &r.Retries, &r.StopReason, &r.UsedFeed, &r.GapRate,
		&r.Diversity, &r.AvgWords, &r.GrowthRate); err != nil {
		return nil, err
	}
	return &r, nil
}
