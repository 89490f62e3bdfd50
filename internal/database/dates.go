package database

import (
	"time"
)

const dateLayout = "2006-01-02"

// GetToday returns today's date as YYYY-MM-DD.
func GetToday() string {
	return time.Now().Format(dateLayout)
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// FormatDateDisplay formats a YYYY-MM-DD date for humans ("Feb 06, 2026").
// Unparseable input is returned unchanged.
func FormatDateDisplay(date string) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return d.Format("Jan 02, 2006")
}
