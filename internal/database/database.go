// Package database is the BlogPulse store: the editorial calendar, cached page
// analyses, keyword positions, ingestion run history and composed reports.
package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// connection pragmas, applied by the driver to every pooled connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// DB is a handle on the BlogPulse SQLite file.
type DB struct {
	conn *sql.DB
}

// Open creates the data directory if needed, opens the store and brings its
// schema up to date.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return &DB{conn: conn}, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SchemaVersion reports the applied migration version.
func (db *DB) SchemaVersion() (int, error) {
	return getSchemaVersion(db.conn)
}
