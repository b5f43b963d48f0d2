// Package mock generates synthetic market data for exercising the engine
// without a broker terminal attached. Feed plays the quote stream, Book plays
// the terminal's position list: together they close the loop the adapter
// normally provides.
package mock

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/eddiefleurent/elastic_grid/internal/models"
	"github.com/eddiefleurent/elastic_grid/internal/util"
)

// quoteTick is the grid all synthetic prices and profits are quantized to.
const quoteTick = 0.01

// PointValue is the account-currency move per lot per unit of price, matching
// the 100 oz gold contract the engine is tuned for.
const PointValue = 100.0

// secureFloat64 generates a cryptographically secure random float64 between 0 and 1
func secureFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

// Feed is a random-walk quote source shaped like the broker adapter's tick
// stream. The mid price moves by at most Step per Walk and all quotes stay on
// the two-decimal grid.
type Feed struct {
	Symbol    string
	AccountID string
	Balance   float64
	Step      float64

	spread float64
	mid    float64
}

// NewFeed returns a feed centered on start with a fixed 40-cent spread.
func NewFeed(symbol string, start float64) *Feed {
	return &Feed{
		Symbol:    symbol,
		AccountID: "paper-1",
		Balance:   10000,
		Step:      0.5,
		spread:    0.4,
		mid:       util.RoundToTick(start, quoteTick),
	}
}

// Walk moves the mid price by a random amount within ±Step.
func (f *Feed) Walk() {
	f.Move((secureFloat64() - 0.5) * 2 * f.Step)
}

// Move shifts the mid price by delta.
func (f *Feed) Move(delta float64) {
	f.mid = util.RoundToTick(f.mid+delta, quoteTick)
}

// Mid returns the current mid price.
func (f *Feed) Mid() float64 { return f.mid }

// Ask returns the current ask quote.
func (f *Feed) Ask() float64 { return util.RoundToTick(f.mid+f.spread/2, quoteTick) }

// Bid returns the current bid quote.
func (f *Feed) Bid() float64 { return util.RoundToTick(f.mid-f.spread/2, quoteTick) }

// Tick assembles a broker snapshot around the current quote. Equity is the
// balance plus the open profit of the supplied positions.
func (f *Feed) Tick(positions []models.Position) models.TickData {
	equity := f.Balance
	for _, p := range positions {
		equity += p.Profit
	}
	return models.TickData{
		AccountID: f.AccountID,
		Equity:    util.RoundToTick(equity, quoteTick),
		Balance:   f.Balance,
		Symbol:    f.Symbol,
		Ask:       f.Ask(),
		Bid:       f.Bid(),
		Positions: positions,
	}
}

// Book is a paper execution venue. It fills the engine's order actions and
// marks the resulting positions to market, so a driver loop can feed the
// engine's own output back into its next tick.
type Book struct {
	symbol     string
	positions  []models.Position
	nextTicket int64
}

// NewBook returns an empty book issuing tickets for the given symbol.
func NewBook(symbol string) *Book {
	return &Book{symbol: symbol, nextTicket: 700001}
}

// Apply executes an engine action against the book at the given quote. Orders
// fill immediately at the side's price. CLOSE_ALL removes every position
// whose comment carries the tag, or the whole book for the administrative
// "server" tag.
func (b *Book) Apply(a models.Action, ask, bid float64) {
	switch a.Action {
	case models.ActionBuy:
		b.open(models.PositionTypeBuy, a.Volume, ask, a.Comment)
	case models.ActionSell:
		b.open(models.PositionTypeSell, a.Volume, bid, a.Comment)
	case models.ActionCloseAll:
		b.closeAll(a.Comment)
	}
}

func (b *Book) open(typ string, volume, price float64, comment string) {
	b.positions = append(b.positions, models.Position{
		Ticket:  b.nextTicket,
		Symbol:  b.symbol,
		Type:    typ,
		Volume:  volume,
		Price:   price,
		Comment: comment,
	})
	b.nextTicket++
}

func (b *Book) closeAll(tag string) {
	if tag == "" {
		return
	}
	if tag == "server" {
		b.positions = b.positions[:0]
		return
	}
	kept := b.positions[:0]
	for _, p := range b.positions {
		if !strings.Contains(p.Comment, tag) {
			kept = append(kept, p)
		}
	}
	b.positions = kept
}

// MarkToMarket reprices every open position at the given quote and returns a
// copy of the book for embedding in the next tick. Longs are valued against
// the bid, shorts against the ask, profits rounded to the cent.
func (b *Book) MarkToMarket(ask, bid float64) []models.Position {
	out := make([]models.Position, len(b.positions))
	for i := range b.positions {
		p := &b.positions[i]
		if p.Type == models.PositionTypeBuy {
			p.Profit = util.RoundToTick((bid-p.Price)*p.Volume*PointValue, quoteTick)
		} else {
			p.Profit = util.RoundToTick((p.Price-ask)*p.Volume*PointValue, quoteTick)
		}
		out[i] = *p
	}
	return out
}

// Len returns the number of open positions.
func (b *Book) Len() int { return len(b.positions) }

// OpenProfit returns the summed profit of all open positions as of the last
// mark to market.
func (b *Book) OpenProfit() float64 {
	total := 0.0
	for _, p := range b.positions {
		total += p.Profit
	}
	return util.RoundToTick(total, quoteTick)
}
