package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// ActionRecord is one grouping decision applied to a live tab.
type ActionRecord struct {
	ID       int64
	At       time.Time
	TabID    int
	WindowID int
	URL      string
	Title    string // group title, empty for ungroup
	Outcome  string
}

// RecordAction appends an entry to the grouping history.
func RecordAction(db *sql.DB, r ActionRecord) error {
	at := r.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := db.Exec(`INSERT INTO group_actions (at, tab_id, window_id, url, title, outcome)
		VALUES (?, ?, ?, ?, ?, ?)`,
		at.UTC(), r.TabID, r.WindowID, r.URL, r.Title, r.Outcome)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// RecentActions returns up to limit history entries, newest first.
func RecentActions(db *sql.DB, limit int) ([]ActionRecord, error) {
	rows, err := db.Query(`SELECT id, at, tab_id, window_id, url, title, outcome
		FROM group_actions ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var r ActionRecord
		if err := rows.Scan(&r.ID, &r.At, &r.TabID, &r.WindowID, &r.URL, &r.Title, &r.Outcome); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneActions deletes history entries older than the cutoff and returns
// how many were removed.
func PruneActions(db *sql.DB, before time.Time) (int64, error) {
	res, err := db.Exec("DELETE FROM group_actions WHERE at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune actions: %w", err)
	}
	return res.RowsAffected()
}
