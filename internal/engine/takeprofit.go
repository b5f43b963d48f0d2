package engine

import (
	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/elastic_grid/internal/models"
)

// sumProfit adds position profits exactly. Basket sums feed threshold
// comparisons, so float accumulation error is not acceptable here.
func sumProfit(positions []models.Position) float64 {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(decimal.NewFromFloat(p.Profit))
	}
	f, _ := total.Float64()
	return f
}

// sumVolume adds position volumes exactly, see sumProfit.
func sumVolume(positions []models.Position) float64 {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(decimal.NewFromFloat(p.Volume))
	}
	f, _ := total.Float64()
	return f
}

// checkTakeProfit reports whether the side's basket reached its Snap-Back
// target. The target derives from the tick's account figures, so a shrinking
// equity lowers an equity_pct target on the same tick that prices it.
func (e *Engine) checkTakeProfit(tick *models.TickData, side models.Side) bool {
	st := &e.state.Settings
	sess := e.state.Runtime.Session(side)

	tpType, tpValue := st.TP(side)
	if tpValue <= 0 || *sess.ID == "" {
		return false
	}

	positions := tick.SessionPositions(*sess.ID)
	if len(positions) == 0 {
		return false
	}
	profit := sumProfit(positions)

	target := 0.0
	switch tpType {
	case models.TPEquityPct:
		target = tick.Equity * (tpValue / 100.0)
	case models.TPBalancePct:
		target = tick.Balance * (tpValue / 100.0)
	case models.TPFixedMoney:
		target = tpValue
	}

	if target > 0 && profit >= target {
		e.logger.Printf("[ELASTIC SNAP-BACK] %s basket profit: $%.2f >= target: $%.2f",
			side, profit, target)
		return true
	}
	return false
}
