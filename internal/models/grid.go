package models

import "sort"

// Side identifies one direction of the grid engine.
type Side string

const (
	// SideBuy is the long accumulation direction.
	SideBuy Side = "buy"
	// SideSell is the short accumulation direction.
	SideSell Side = "sell"
)

// Valid returns true if the Side is one of the defined constants.
func (s Side) Valid() bool {
	switch s {
	case SideBuy, SideSell:
		return true
	default:
		return false
	}
}

// Opposite returns the counter direction.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType returns the broker order type emitted for this side.
func (s Side) OrderType() string {
	if s == SideBuy {
		return PositionTypeBuy
	}
	return PositionTypeSell
}

// GridRow is one strata of a side's layer table. Dollar is the price gap
// measured cumulatively from the anchor, Lots the volume opened when the
// strata's level is crossed.
type GridRow struct {
	Index  int     `json:"index"`
	Dollar float64 `json:"dollar"`
	Lots   float64 `json:"lots"`
	Alert  bool    `json:"alert"`
}

// RowExecStats is the execution record for one strata, refreshed from broker
// positions on every tick. Cumulative fields are recomputed in index order.
type RowExecStats struct {
	Index            int     `json:"index"`
	EntryPrice       float64 `json:"entry_price"`
	Lots             float64 `json:"lots"`
	Profit           float64 `json:"profit"`
	Timestamp        string  `json:"timestamp"`
	CumulativeLots   float64 `json:"cumulative_lots"`
	CumulativeProfit float64 `json:"cumulative_profit"`
}

// ExecMap maps strata index to its execution record. Go marshals the integer
// keys as JSON object keys ("0", "1", ...), matching the persisted document.
type ExecMap map[int]RowExecStats

// Indices returns the executed strata indices in ascending order.
func (m ExecMap) Indices() []int {
	out := make([]int, 0, len(m))
	for idx := range m {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// MaxIndex returns the highest executed index, or -1 when the map is empty.
func (m ExecMap) MaxIndex() int {
	max := -1
	for idx := range m {
		if idx > max {
			max = idx
		}
	}
	return max
}

// Clone returns a shallow copy of the map. Records are value types, so the
// copy is safe to mutate independently.
func (m ExecMap) Clone() ExecMap {
	out := make(ExecMap, len(m))
	for idx, rec := range m {
		out[idx] = rec
	}
	return out
}
