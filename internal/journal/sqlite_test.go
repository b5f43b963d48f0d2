package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name='sessions'`)
	require.NoError(t, err)
	defer rows.Close()

	found := false
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found = name == "sessions"
	}
	require.NoError(t, rows.Err())
	assert.True(t, found, "sessions table should exist")
}

func TestSQLiteRecordAndRecent(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	closed := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	first := SessionRecord{
		Side:      "buy",
		SessionID: "buy_1a2b3c4d",
		Reason:    "snap_back",
		Layers:    3,
		Volume:    0.31,
		Profit:    12.75,
		ClosedAt:  closed,
	}
	require.NoError(t, j.Record(first))

	second := SessionRecord{
		Side:      "sell",
		SessionID: "sell_99aabbcc",
		Reason:    "manual",
		Layers:    1,
		Volume:    0.1,
		Profit:    -2.4,
		ClosedAt:  closed.Add(time.Minute),
	}
	require.NoError(t, j.Record(second))

	got, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, "sell_99aabbcc", got[0].SessionID)
	assert.Equal(t, "buy_1a2b3c4d", got[1].SessionID)

	assert.Equal(t, "snap_back", got[1].Reason)
	assert.Equal(t, 3, got[1].Layers)
	assert.InDelta(t, 0.31, got[1].Volume, 1e-9)
	assert.InDelta(t, 12.75, got[1].Profit, 1e-9)
	assert.True(t, got[1].ClosedAt.Equal(closed))

	// IDs are filled in and unique.
	assert.NotEmpty(t, got[0].ID)
	assert.NotEmpty(t, got[1].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestSQLiteRecentLimit(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(SessionRecord{
			Side:      "buy",
			SessionID: "buy_00000000",
			Reason:    "manual",
		}))
	}

	got, err := j.Recent(2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestNopJournal(t *testing.T) {
	t.Parallel()

	var j Journal = Nop{}
	assert.NoError(t, j.Record(SessionRecord{Side: "buy"}))

	got, err := j.Recent(10)
	assert.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, j.Close())
}
