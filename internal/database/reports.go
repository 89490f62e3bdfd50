package database

import (
	"database/sql"
)

const reportColumns = `id, report_date, site, summary, body_markdown, post_count, gap_rate, source, generated_at`

// InsertReport inserts or replaces the report for a date.
func (db *DB) InsertReport(r Report) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT OR REPLACE INTO reports
		(report_date, site, summary, body_markdown, post_count, gap_rate, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Date, r.Site, r.Summary, r.BodyMarkdown, r.PostCount, r.GapRate, r.Source,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetReport returns the report for a date, or nil.
func (db *DB) GetReport(date string) (*Report, error) {
	row := db.conn.QueryRow("SELECT "+reportColumns+" FROM reports WHERE report_date = ?", date)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetLatestReport returns the newest report, or nil.
func (db *DB) GetLatestReport() (*Report, error) {
	row := db.conn.QueryRow("SELECT " + reportColumns + " FROM reports ORDER BY report_date DESC LIMIT 1")
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetAllReports returns all reports ordered by date DESC.
func (db *DB) GetAllReports() ([]Report, error) {
	rows, err := db.conn.Query("SELECT " + reportColumns + " FROM reports ORDER BY report_date DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

func scanReport(s scanner) (*Report, error) {
	var r Report
	if err := s.Scan(&r.ID, &r.Date, &r.Site, &r.Summary, &r.BodyMarkdown,
		&r.PostCount, &r.GapRate, &r.Source, &r.GeneratedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM ingestion_runs", &s.IngestionRuns},
		{"SELECT COUNT(*) FROM reports", &s.Reports},
		{"SELECT COUNT(*) FROM calendar_entries", &s.CalendarEntries},
		{"SELECT COUNT(*) FROM page_analyses", &s.PageAnalyses},
		{"SELECT COUNT(*) FROM keyword_ranks", &s.KeywordRanks},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	if err := db.conn.QueryRow("SELECT COALESCE(MAX(started_at), '') FROM ingestion_runs").Scan(&s.LastRunAt); err != nil {
		return nil, err
	}
	return s, nil
}
