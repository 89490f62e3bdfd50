package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SavePageAnalysis stores an audit result, replacing the previous one for the
// same (owner, url).
func (db *DB) SavePageAnalysis(owner, url string, score int, payload any) error {
	if owner == "" {
		return ErrNoOwner
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}
	_, err = db.conn.Exec(
		`INSERT INTO page_analyses (owner, url, score, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT(owner, url) DO UPDATE SET
			score = excluded.score,
			payload = excluded.payload,
			analyzed_at = datetime('now')`,
		owner, url, score, string(data),
	)
	return err
}

// GetPageAnalysis returns the stored analysis for a URL, or nil.
func (db *DB) GetPageAnalysis(owner, url string) (*PageAnalysis, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	row := db.conn.QueryRow(
		"SELECT id, owner, url, score, payload, analyzed_at FROM page_analyses WHERE owner = ? AND url = ?",
		owner, url,
	)
	var a PageAnalysis
	if err := row.Scan(&a.ID, &a.Owner, &a.URL, &a.Score, &a.Payload, &a.AnalyzedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// ListPageAnalyses returns the owner's analyses, lowest score first.
func (db *DB) ListPageAnalyses(owner string) ([]PageAnalysis, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	rows, err := db.conn.Query(
		"SELECT id, owner, url, score, payload, analyzed_at FROM page_analyses WHERE owner = ? ORDER BY score, url",
		owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PageAnalysis
	for rows.Next() {
		var a PageAnalysis
		if err := rows.Scan(&a.ID, &a.Owner, &a.URL, &a.Score, &a.Payload, &a.AnalyzedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertKeywordRank records the latest position of a keyword. Position 0
// means not ranked.
func (db *DB) UpsertKeywordRank(owner, keyword string, position int, url string, checkedAt time.Time) error {
	if owner == "" {
		return ErrNoOwner
	}
	var u *string
	if url != "" {
		u = &url
	}
	_, err := db.conn.Exec(
		`INSERT INTO keyword_ranks (owner, keyword, position, url, checked_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner, keyword) DO UPDATE SET
			position = excluded.position,
			url = excluded.url,
			checked_at = excluded.checked_at`,
		owner, keyword, position, u, checkedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// ListKeywordRanks returns the owner's tracked keywords, ranked ones first.
func (db *DB) ListKeywordRanks(owner string) ([]KeywordRank, error) {
	if owner == "" {
		return nil, ErrNoOwner
	}
	rows, err := db.conn.Query(
		`SELECT id, owner, keyword, position, url, checked_at FROM keyword_ranks
		WHERE owner = ? ORDER BY position = 0, position, keyword`,
		owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KeywordRank
	for rows.Next() {
		var k KeywordRank
		if err := rows.Scan(&k.ID, &k.Owner, &k.Keyword, &k.Position, &k.URL, &k.CheckedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
