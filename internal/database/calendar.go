package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNoOwner is returned when an owner-scoped call has no owner.
var ErrNoOwner = errors.New("no owner identity; sign in again")

// ValidStatus reports whether s is a known calendar status.
func ValidStatus(s string) bool {
	switch s {
	case StatusIdea, StatusDraft, StatusScheduled, StatusPublished:
		return true
	}
	return false
}

const calendarColumns = `id, owner, post_id, title, scheduled_date, status, notes, created_at, updated_at`

// UpsertCalendarEntry inserts an entry or moves an existing one. Entries are
// unique per (owner, post_id); a move keeps the original ID.
func (db *DB) UpsertCalendarEntry(e CalendarEntry) (*CalendarEntry, error) {
	if e.Owner == "" {
		return nil, ErrNoOwner
	}
	if !ValidDate(e.ScheduledDate) {
		return nil, fmt.Errorf("invalid scheduled date %q (want YYYY-MM-DD)", e.ScheduledDate)
	}
	if e.Status == "" {
		e.Status = StatusIdea
	}
	if !ValidStatus(e.Status) {
		return nil, fmt.Errorf("invalid status %q", e.Status)
	}

	_, err := db.conn.Exec(
		`INSERT INTO calendar_entries (id, owner, post_id, title, scheduled_date, status, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, post_id) DO UPDATE SET
			title = excluded.title,
			scheduled_date = excluded.scheduled_date,
			status = excluded.status,
			notes = excluded.notes,
			updated_at = datetime('now')`,
		uuid.NewString(), e.Owner, e.PostID, e.Title, e.ScheduledDate, e.Status, e.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting calendar entry: %w", err)
	}
	return db.GetCalendarEntry(e.Owner, e.PostID)
}

// GetCalendarEntry returns the owner's entry for a post, or nil.
func (db *DB) GetCalendarEntry(owner string, postID int64) (*CalendarEntry, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	row := db.conn.QueryRow(
		"SELECT "+calendarColumns+" FROM calendar_entries WHERE owner = ? AND post_id = ?",
		owner, postID,
	)
	e, err := scanCalendarEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListCalendar returns the owner's entries between from and to inclusive,
// ordered by date. Empty bounds are open.
func (db *DB) ListCalendar(owner, from, to string) ([]CalendarEntry, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	query := "SELECT " + calendarColumns + " FROM calendar_entries WHERE owner = ?"
	args := []any{owner}
	if from != "" {
		query += " AND scheduled_date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND scheduled_date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY scheduled_date, post_id"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CalendarEntry
	for rows.Next() {
		e, err := scanCalendarEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// DeleteCalendarEntry removes the owner's entry for a post and reports
// whether one existed.
func (db *DB) DeleteCalendarEntry(owner string, postID int64) (bool, error) {
	if owner == "" {
		return false, ErrNoOwner
	}
	result, err := db.conn.Exec("DELETE FROM calendar_entries WHERE owner = ? AND post_id = ?", owner, postID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCalendarEntry(s scanner) (*CalendarEntry, error) {
	var e CalendarEntry
	if err := s.Scan(&e.ID, &e.Owner, &e.PostID, &e.Title, &e.ScheduledDate, &e.Status,
		&e.Notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
