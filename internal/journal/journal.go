// Package journal persists closed vector sessions for later analysis.
package journal

import "time"

// SessionRecord captures the outcome of one closed grid session.
type SessionRecord struct {
	ID        string    // ULID, time-sortable
	Side      string    // "buy" or "sell"
	SessionID string    // e.g. "buy_1a2b3c4d"
	Reason    string    // "snap_back", "manual", "external" or "emergency"
	Layers    int       // executed grid layers at close
	Volume    float64   // cumulative lots at close
	Profit    float64   // cumulative profit at close
	ClosedAt  time.Time // when the closure was confirmed
}

// Journal records closed sessions and serves them back, newest first.
type Journal interface {
	Record(SessionRecord) error
	Recent(limit int) ([]SessionRecord, error)
	Close() error
}

// Nop discards every record. Used when no journal path is configured.
type Nop struct{}

// Record implements Journal.
func (Nop) Record(SessionRecord) error { return nil }

// Recent implements Journal.
func (Nop) Recent(int) ([]SessionRecord, error) { return nil, nil }

// Close implements Journal.
func (Nop) Close() error { return nil }

// Compile-time interface checks.
var (
	_ Journal = Nop{}
	_ Journal = (*SQLite)(nil)
)
