package engine

import "github.com/eddiefleurent/elastic_grid/internal/models"

// levelPrice computes the target price of one grid layer: the anchor shifted
// by the cumulative dollar gaps of all rows up to and including the layer.
// Buy layers stack below the anchor, sell layers above. Rows are addressed
// positionally, indices beyond the table contribute nothing.
func levelPrice(side models.Side, layer int, rows []models.GridRow, anchor float64) float64 {
	ref := anchor
	for i := 0; i <= layer; i++ {
		if i >= len(rows) {
			continue
		}
		if side == models.SideBuy {
			ref -= rows[i].Dollar
		} else {
			ref += rows[i].Dollar
		}
	}
	return ref
}

// sidePrice is the execution price for orders on side: longs pay the ask,
// shorts hit the bid.
func sidePrice(tick *models.TickData, side models.Side) float64 {
	if side == models.SideBuy {
		return tick.Ask
	}
	return tick.Bid
}

// lastExecutedPrice returns the entry price of the side's highest executed
// layer, or the anchor when nothing has executed yet.
func (e *Engine) lastExecutedPrice(side models.Side) float64 {
	sess := e.state.Runtime.Session(side)
	last := (*sess.ExecMap).MaxIndex()
	if last < 0 {
		return *sess.StartRef
	}
	return (*sess.ExecMap)[last].EntryPrice
}
