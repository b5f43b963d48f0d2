package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/elastic_grid/internal/journal"
)

func TestSessionWorkbook(t *testing.T) {
	closed := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	records := []journal.SessionRecord{
		{
			Side:      "sell",
			SessionID: "sell_9f8e7d6c",
			Reason:    "manual",
			Layers:    1,
			Volume:    0.2,
			Profit:    -12.5,
			ClosedAt:  closed.Add(time.Hour),
		},
		{
			Side:      "buy",
			SessionID: "buy_1a2b3c4d",
			Reason:    "snap_back",
			Layers:    2,
			Volume:    0.3,
			Profit:    55,
			ClosedAt:  closed,
		},
	}

	fx, err := SessionWorkbook(records)
	require.NoError(t, err)
	defer fx.Close()

	rows, err := fx.GetRows(sessionsSheet)
	require.NoError(t, err)
	// Header, two sessions, totals.
	require.Len(t, rows, 4)

	assert.Equal(t, "Closed At (UTC)", rows[0][0])
	assert.Equal(t, "Profit", rows[0][6])

	assert.Equal(t, "sell_9f8e7d6c", rows[1][2])
	assert.Equal(t, "manual", rows[1][3])
	assert.Equal(t, "buy_1a2b3c4d", rows[2][2])
	assert.Equal(t, "2025-06-02 14:30:00", rows[2][0])

	total := rows[3]
	assert.Equal(t, "TOTAL", total[0])
	assert.Equal(t, "2", total[4], "session count")
	assert.Equal(t, "0.5", total[5], "volume sums exactly")
	assert.Equal(t, "42.5", total[6], "profit sums exactly")
}

func TestSessionWorkbookEmpty(t *testing.T) {
	fx, err := SessionWorkbook(nil)
	require.NoError(t, err)
	defer fx.Close()

	rows, err := fx.GetRows(sessionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2, "header and totals only")
	assert.Equal(t, "TOTAL", rows[1][0])
	assert.Equal(t, "0", rows[1][4])
}
