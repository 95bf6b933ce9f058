// Package ledger provides an append-only audit trail of switch transitions.
// The JSON state file holds the bounded recent history; the ledger is the
// durable record, trimmed on the same retention window.
package ledger

import (
	"database/sql"
	"time"
)

// CauseType says what drove a transition
type CauseType string

const (
	CauseSchedule CauseType = "schedule"
	CauseInput    CauseType = "input"
)

// Entry is a single recorded transition
type Entry struct {
	ID        int64
	Timestamp time.Time
	Switch    string
	State     string
	CauseType CauseType
	Cause     string
}

// Ledger records switch transitions into SQLite
type Ledger struct {
	db *sql.DB
}

// New creates a Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends a transition to the ledger
func (l *Ledger) Record(t time.Time, switchName, state string, causeType CauseType, cause string) error {
	_, err := l.db.Exec(`
		INSERT INTO switch_ledger (timestamp, switch_name, state, cause_type, cause)
		VALUES (?, ?, ?, ?, ?)
	`, t.UTC().Unix(), switchName, state, string(causeType), cause)
	return err
}

// DeleteOlderThan removes entries older than the retention period.
// Returns the number of deleted rows.
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Unix()

	result, err := l.db.Exec(`DELETE FROM switch_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Recent returns the most recent entries, newest first
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, timestamp, switch_name, state, cause_type, cause
		FROM switch_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var causeType string
		if err := rows.Scan(&e.ID, &ts, &e.Switch, &e.State, &causeType, &e.Cause); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		e.CauseType = CauseType(causeType)
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
