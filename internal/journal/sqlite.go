package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	side TEXT NOT NULL,
	session_id TEXT NOT NULL,
	reason TEXT NOT NULL,
	layers INTEGER NOT NULL,
	volume REAL NOT NULL,
	profit REAL NOT NULL,
	closed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_closed_at ON sessions(closed_at);
`

// SQLite stores session records in a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and ensures the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Record inserts one closed session. A missing ID or ClosedAt is filled in.
func (j *SQLite) Record(rec SessionRecord) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.ClosedAt.IsZero() {
		rec.ClosedAt = time.Now().UTC()
	}

	_, err := j.db.Exec(`
		INSERT INTO sessions
		(id, side, session_id, reason, layers, volume, profit, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Side, rec.SessionID, rec.Reason,
		rec.Layers, rec.Volume, rec.Profit, rec.ClosedAt.Format(time.RFC3339Nano),
	)
	return err
}

// Recent returns up to limit records, newest first. ULID primary keys sort
// chronologically, so ordering by id is ordering by time.
func (j *SQLite) Recent(limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.Query(`
		SELECT id, side, session_id, reason, layers, volume, profit, closed_at
		FROM sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var closedAt string
		if err := rows.Scan(&rec.ID, &rec.Side, &rec.SessionID, &rec.Reason,
			&rec.Layers, &rec.Volume, &rec.Profit, &closedAt); err != nil {
			return nil, err
		}
		if ts, perr := time.Parse(time.RFC3339Nano, closedAt); perr == nil {
			rec.ClosedAt = ts
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (j *SQLite) Close() error {
	return j.db.Close()
}
