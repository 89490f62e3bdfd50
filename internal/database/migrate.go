package database

import (
	"database/sql"
	"fmt"
	"log"
)

func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// migrate applies every migration newer than PRAGMA user_version. A store
// written by a newer build is refused rather than downgraded.
func migrate(conn *sql.DB) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}
	latest := latestVersion()
	switch {
	case current > latest:
		return fmt.Errorf("schema v%d is newer than this build of BlogPulse (v%d)", current, latest)
	case current == latest:
		return nil
	case current == 0:
		log.Printf("Creating BlogPulse schema v%d", latest)
	default:
		log.Printf("Upgrading BlogPulse schema v%d -> v%d", current, latest)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(conn, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(conn *sql.DB, m Migration) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	// user_version is written after commit; every step is re-runnable.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("setting version %d: %w", m.Version, err)
	}
	log.Printf("  v%d: %s", m.Version, m.Description)
	return nil
}
