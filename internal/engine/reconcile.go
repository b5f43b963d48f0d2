package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/elastic_grid/internal/models"
)

// reconcile folds the broker's open positions into the exec maps. The broker
// is the source of truth for entry price, volume and floating profit of any
// position carrying a session comment. Records of layers the broker no
// longer reports stay untouched, closed layers keep their last stats for the
// rest of the session.
//
// A well-formed comment whose session id is unknown means some other system
// is trading with our tag. That trips the identity conflict latch and halts
// the engine until an emergency close clears it.
func (e *Engine) reconcile(tick *models.TickData) {
	rt := &e.state.Runtime

	buyMap := rt.BuyExecMap.Clone()
	sellMap := rt.SellExecMap.Clone()

	for _, p := range tick.Positions {
		if !models.TradeIDPattern.MatchString(p.Comment) {
			continue
		}

		if strings.HasPrefix(p.Comment, "buy_") {
			if rt.BuyID == "" || !strings.Contains(p.Comment, rt.BuyID) {
				rt.ErrorStatus = fmt.Sprintf("CRITICAL: Identity Conflict. Unknown Buy trade %d detected.", p.Ticket)
				return
			}
		}
		if strings.HasPrefix(p.Comment, "sell_") {
			if rt.SellID == "" || !strings.Contains(p.Comment, rt.SellID) {
				rt.ErrorStatus = fmt.Sprintf("CRITICAL: Identity Conflict. Unknown Sell trade %d detected.", p.Ticket)
				return
			}
		}

		idx, ok := models.CommentIndex(p.Comment)
		if !ok {
			continue
		}

		stamp := e.now().Format(time.RFC3339Nano)
		if p.Type == models.PositionTypeBuy && rt.BuyID != "" && strings.Contains(p.Comment, rt.BuyID) {
			buyMap[idx] = models.RowExecStats{
				Index:      idx,
				EntryPrice: p.Price,
				Lots:       p.Volume,
				Profit:     p.Profit,
				Timestamp:  stamp,
			}
		}
		if p.Type == models.PositionTypeSell && rt.SellID != "" && strings.Contains(p.Comment, rt.SellID) {
			sellMap[idx] = models.RowExecStats{
				Index:      idx,
				EntryPrice: p.Price,
				Lots:       p.Volume,
				Profit:     p.Profit,
				Timestamp:  stamp,
			}
		}
	}

	recomputeCumulatives(buyMap)
	recomputeCumulatives(sellMap)

	rt.BuyExecMap = buyMap
	rt.SellExecMap = sellMap
}

// recomputeCumulatives rebuilds the running lots/profit totals in ascending
// index order. Decimal accumulation keeps the basket stats exact.
func recomputeCumulatives(m models.ExecMap) {
	cumLots := decimal.Zero
	cumProfit := decimal.Zero
	for _, idx := range m.Indices() {
		rec := m[idx]
		cumLots = cumLots.Add(decimal.NewFromFloat(rec.Lots))
		cumProfit = cumProfit.Add(decimal.NewFromFloat(rec.Profit))
		rec.CumulativeLots, _ = cumLots.Float64()
		rec.CumulativeProfit, _ = cumProfit.Float64()
		m[idx] = rec
	}
}
