package models

import "strings"

const (
	// PositionTypeBuy is the broker-side label for long positions.
	PositionTypeBuy = "BUY"
	// PositionTypeSell is the broker-side label for short positions.
	PositionTypeSell = "SELL"
)

// Position is one open broker position as reported inside a tick.
type Position struct {
	Ticket  int64   `json:"ticket"`
	Symbol  string  `json:"symbol"`
	Type    string  `json:"type"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	Profit  float64 `json:"profit"`
	Comment string  `json:"comment"`
}

// TickData is one market snapshot pushed by the broker adapter.
type TickData struct {
	AccountID string     `json:"account_id"`
	Equity    float64    `json:"equity"`
	Balance   float64    `json:"balance"`
	Symbol    string     `json:"symbol"`
	Ask       float64    `json:"ask"`
	Bid       float64    `json:"bid"`
	Positions []Position `json:"positions"`
}

// Mid returns the ask/bid midpoint.
func (t *TickData) Mid() float64 {
	return (t.Ask + t.Bid) / 2
}

// SessionPositions returns the positions whose comment carries the given
// session id. An empty id matches nothing.
func (t *TickData) SessionPositions(sessionID string) []Position {
	if sessionID == "" {
		return nil
	}
	var out []Position
	for _, p := range t.Positions {
		if strings.Contains(p.Comment, sessionID) {
			out = append(out, p)
		}
	}
	return out
}

// CountSession returns how many open positions carry the given session id.
func (t *TickData) CountSession(sessionID string) int {
	if sessionID == "" {
		return 0
	}
	n := 0
	for _, p := range t.Positions {
		if strings.Contains(p.Comment, sessionID) {
			n++
		}
	}
	return n
}
