package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS calendar_entries (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    post_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    scheduled_date TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'idea' CHECK(status IN ('idea', 'draft', 'scheduled', 'published')),
    notes TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now')),
    UNIQUE (owner, post_id)
);

CREATE TABLE IF NOT EXISTS page_analyses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner TEXT NOT NULL,
    url TEXT NOT NULL,
    score INTEGER DEFAULT 0,
    payload TEXT NOT NULL,
    analyzed_at TEXT DEFAULT (datetime('now')),
    UNIQUE (owner, url)
);

CREATE TABLE IF NOT EXISTS keyword_ranks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner TEXT NOT NULL,
    keyword TEXT NOT NULL,
    position INTEGER DEFAULT 0,
    url TEXT,
    checked_at TEXT DEFAULT (datetime('now')),
    UNIQUE (owner, keyword)
);

CREATE TABLE IF NOT EXISTS ingestion_runs (
    id TEXT PRIMARY KEY,
    site TEXT NOT NULL,
    started_at TEXT NOT NULL,
    posts INTEGER DEFAULT 0,
    categories INTEGER DEFAULT 0,
    keywords INTEGER DEFAULT 0,
    pages INTEGER DEFAULT 0,
    requests INTEGER DEFAULT 0,
    retries INTEGER DEFAULT 0,
    stop_reason TEXT,
    used_feed INTEGER DEFAULT 0,
    gap_rate INTEGER DEFAULT 0,
    diversity INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    report_date TEXT UNIQUE NOT NULL,
    site TEXT NOT NULL,
    summary TEXT NOT NULL,
    body_markdown TEXT NOT NULL,
    post_count INTEGER DEFAULT 0,
    gap_rate INTEGER DEFAULT 0,
    source TEXT,
    generated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_calendar_owner_date ON calendar_entries(owner, scheduled_date);
CREATE INDEX IF NOT EXISTS idx_runs_site ON ingestion_runs(site, started_at);
CREATE INDEX IF NOT EXISTS idx_reports_date ON reports(report_date);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "per-run treatment coverage and run statistics",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS treatment_coverage (
    run_id TEXT NOT NULL REFERENCES ingestion_runs(id) ON DELETE CASCADE,
    treatment TEXT NOT NULL,
    frequency INTEGER NOT NULL,
    PRIMARY KEY (run_id, treatment)
);
CREATE INDEX IF NOT EXISTS idx_coverage_treatment ON treatment_coverage(treatment);
`); err != nil {
				return err
			}
			for _, col := range []string{"avg_words", "growth_rate"} {
				exists, err := columnExists(tx, "ingestion_runs", col)
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				if _, err := tx.Exec("ALTER TABLE ingestion_runs ADD COLUMN " + col + " INTEGER DEFAULT 0"); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// columnExists keeps ALTER TABLE steps re-runnable.
func columnExists(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
