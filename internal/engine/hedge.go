package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/eddiefleurent/elastic_grid/internal/models"
	"github.com/eddiefleurent/elastic_grid/internal/monitoring"
	"github.com/eddiefleurent/elastic_grid/internal/notify"
)

// checkHedge runs the IronClad protocol for one losing side. When the side's
// basket drawdown reaches its configured limit, the side is latched (no more
// accumulation for the rest of the session) and the full losing volume is
// mirrored on the counter side.
//
// Two deployment shapes exist. Scenario A conscripts an off or empty counter
// side: a fresh session is minted at the current price and the counter
// side's layer table is replaced with a single zero-gap row. Scenario B
// augments a live counter side: a new row is appended whose gap lands
// exactly on the current price, so it executes immediately.
//
// Returns (action, true) when a hedge order is emitted. The latch is set
// even when deployment is blocked by a closing counter side.
func (e *Engine) checkHedge(tick *models.TickData, losing models.Side) (models.Action, bool) {
	rt := &e.state.Runtime
	st := &e.state.Settings
	sess := rt.Session(losing)

	hedgeValue := st.HedgeValue(losing)
	if !*sess.On || *sess.ID == "" || *sess.HedgeTriggered || hedgeValue <= 0 || *sess.IsClosing {
		return models.Action{}, false
	}

	positions := tick.SessionPositions(*sess.ID)
	if len(positions) == 0 {
		return models.Action{}, false
	}

	profit := sumProfit(positions)
	threshold := -hedgeValue
	if profit > threshold {
		return models.Action{}, false
	}

	e.logger.Printf("[IRONCLAD ALERT] %s drawdown: $%.2f <= limit: $%.2f", losing, profit, threshold)

	// Latch the losing side first. Even when deployment is blocked below,
	// the side must not keep accumulating into the drawdown.
	*sess.HedgeTriggered = true

	hedgeLots := sumVolume(positions)
	counter := losing.Opposite()
	e.logger.Printf("[HEDGE] deploying counter-measure: %v lots %s", hedgeLots, counter.OrderType())

	opp := rt.Session(counter)
	if *opp.IsClosing {
		return models.Action{}, false
	}

	price := sidePrice(tick, counter)
	rows := st.Rows(counter)

	scenario := "B"
	var idx int

	if !*opp.On || *opp.ID == "" || len(*opp.ExecMap) == 0 {
		scenario = "A"
		e.logger.Printf("[HEDGE] initializing emergency %s session", counter)

		*opp.ID = models.MintSessionID(counter)
		*opp.StartRef = price
		*opp.ExecMap = models.ExecMap{}
		*opp.On = true
		*opp.WaitingLimit = false
		*rows = []models.GridRow{{Index: 0, Dollar: 0, Lots: hedgeLots, Alert: true}}
		e.persist()

		idx = 0
	} else {
		e.logger.Printf("[HEDGE] augmenting existing %s session", counter)

		idx = (*opp.ExecMap).MaxIndex() + 1
		gap := math.Abs(price - e.lastExecutedPrice(counter))
		*rows = append(*rows, models.GridRow{Index: idx, Dollar: gap, Lots: hedgeLots, Alert: true})
		e.persist()
	}

	(*opp.ExecMap)[idx] = models.RowExecStats{
		Index:      idx,
		EntryPrice: price,
		Lots:       hedgeLots,
		Timestamp:  e.now().Format(time.RFC3339Nano),
	}
	e.stampOrder(counter)
	e.persist()

	monitoring.RecordHedge(string(losing), scenario)
	e.queueEvent(notify.Event{
		Kind:   notify.KindHedgeDeployed,
		Side:   string(losing),
		Volume: hedgeLots,
		Profit: profit,
		Detail: fmt.Sprintf("scenario %s: %s %v lots", scenario, counter.OrderType(), hedgeLots),
	})

	return models.Open(counter, hedgeLots, models.SessionComment(*opp.ID, idx), true), true
}
