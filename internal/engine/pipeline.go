package engine

import (
	"strings"
	"time"

	"github.com/eddiefleurent/elastic_grid/internal/models"
	"github.com/eddiefleurent/elastic_grid/internal/monitoring"
	"github.com/eddiefleurent/elastic_grid/internal/notify"
)

// ProcessTick runs one market snapshot through the decision pipeline and
// returns exactly one action. Calls are serialized: the pipeline never runs
// concurrently with itself or with a command.
func (e *Engine) ProcessTick(tick *models.TickData) models.Action {
	start := time.Now()

	e.mu.Lock()
	action := e.process(tick)
	snap := e.state.Clone()
	events := e.takeEvents()
	e.mu.Unlock()

	monitoring.RecordTick(time.Since(start))
	monitoring.RecordAction(string(action.Action))
	for _, ev := range events {
		e.notifier.Publish(ev)
	}
	e.pushUpdate(snap)
	return action
}

// process is the priority pipeline. It runs with the engine lock held and
// returns at the first level that consumes the tick.
func (e *Engine) process(tick *models.TickData) models.Action {
	rt := &e.state.Runtime

	// Hard gate: a latched error blocks everything until an emergency
	// close clears it.
	if rt.ErrorStatus != "" {
		e.logger.Printf("[BLOCKED] engine locked: %s", rt.ErrorStatus)
		return models.WaitWithError(rt.ErrorStatus)
	}

	// Market data update.
	now := e.now()
	mid := tick.Mid()
	rt.CurrentAsk = tick.Ask
	rt.CurrentBid = tick.Bid
	if last, ok := e.state.LastPrice(); ok {
		if mid > last.Mid {
			rt.PriceDirection = models.DirectionUp
		} else {
			rt.PriceDirection = models.DirectionDown
		}
	}
	e.state.AppendPrice(mid, epochSeconds(now))
	rt.CurrentPrice = mid
	e.state.LastUpdateTs = now.Format(time.RFC3339Nano)
	monitoring.UpdateMidPrice(mid)

	// Fold broker positions into the exec maps. A conflict freezes the
	// engine on the spot.
	e.reconcile(tick)
	if rt.ErrorStatus != "" {
		e.logger.Printf("[BLOCKED] %s", rt.ErrorStatus)
		e.queueEvent(notify.Event{Kind: notify.KindIdentityConflict, Detail: rt.ErrorStatus})
		return models.WaitWithError(rt.ErrorStatus)
	}

	for _, side := range sides {
		sess := rt.Session(side)
		monitoring.UpdateBasketProfit(string(side), sumProfit(tick.SessionPositions(*sess.ID)))
	}

	// Priority 1: queued manual overrides, drained one per tick.
	if len(rt.PendingActions) > 0 {
		tag := rt.PendingActions[0]
		rt.PendingActions = rt.PendingActions[1:]
		e.persist()

		cmt := "server"
		switch {
		case strings.Contains(tag, "BUY"):
			cmt = rt.BuyID
		case strings.Contains(tag, "SELL"):
			cmt = rt.SellID
		}
		return models.CloseAll(cmt)
	}

	// Priority 2: closing confirmation. A side in its closing phase owns
	// the tick: either its basket is gone and the session resets, or the
	// close is re-asserted.
	for _, side := range sides {
		sess := rt.Session(side)
		if !*sess.IsClosing {
			continue
		}
		if tick.CountSession(*sess.ID) > 0 {
			return models.CloseAll(*sess.ID)
		}

		e.logger.Printf("[CONFIRMED] %s vector closed, resetting session", side)
		if *sess.ID != "" {
			e.journalClosed(side, *sess.ID, e.takeClosingReason(side), *sess.ExecMap)
		}

		*sess.IsClosing = false
		*sess.ExecMap = models.ExecMap{}
		*sess.HedgeTriggered = false
		if rt.CyclicOn {
			*sess.ID = ""
			*sess.StartRef = mid
		} else {
			*sess.On = false
			*sess.ID = ""
			*sess.StartRef = 0
		}
		e.persist()
		return models.Wait()
	}

	// Priority 3: IronClad drawdown hedge.
	for _, side := range sides {
		if action, ok := e.checkHedge(tick, side); ok {
			return action
		}
	}

	// Priority 4: Snap-Back take profit.
	for _, side := range sides {
		sess := rt.Session(side)
		if *sess.ID == "" {
			continue
		}
		if e.checkTakeProfit(tick, side) {
			*sess.IsClosing = true
			e.markClosingReason(side, CloseReasonSnapBack)
			e.logger.Printf("[%s SNAP-BACK] profit target reached, closing vector", strings.ToUpper(string(side)))
			e.persist()
			return models.CloseAll(*sess.ID)
		}
	}

	// Priority 5: external close detection. Resets state only; the tick
	// continues, so a cyclic side may immediately re-anchor below.
	for _, side := range sides {
		e.detectExternalClose(tick, side, mid)
	}

	// Priority 6: grid accumulation.
	for _, side := range sides {
		if action, ok := e.accumulate(tick, side); ok {
			return action
		}
	}

	return models.Wait()
}

// detectExternalClose resets a session whose basket vanished without a close
// command, once the post-order grace window has passed. Fresh orders can
// take a moment to show up in the broker's position list; the grace window
// keeps them from reading as a manual close.
func (e *Engine) detectExternalClose(tick *models.TickData, side models.Side, mid float64) {
	rt := &e.state.Runtime
	sess := rt.Session(side)

	if *sess.ID == "" || len(*sess.ExecMap) == 0 || *sess.IsClosing || !e.gracePassed(side) {
		return
	}
	if tick.CountSession(*sess.ID) > 0 {
		return
	}

	e.logger.Printf("[EXTERNAL CLOSE] %s session manually terminated", side)
	e.journalClosed(side, *sess.ID, CloseReasonExternal, *sess.ExecMap)

	*sess.ID = ""
	*sess.ExecMap = models.ExecMap{}
	*sess.HedgeTriggered = false
	if rt.CyclicOn {
		*sess.StartRef = mid
	} else {
		*sess.On = false
		*sess.StartRef = 0
	}
	e.persist()
}

// accumulate runs one side's grid expansion: mint a session when needed,
// wait out a limit anchor, then fire the next layer once price crosses its
// level. Returns (action, true) when the tick is consumed.
func (e *Engine) accumulate(tick *models.TickData, side models.Side) (models.Action, bool) {
	rt := &e.state.Runtime
	st := &e.state.Settings
	sess := rt.Session(side)

	if !*sess.On || *sess.IsClosing || *sess.HedgeTriggered {
		return models.Action{}, false
	}

	price := sidePrice(tick, side)
	limit := st.LimitPrice(side)

	if *sess.ID == "" {
		*sess.ID = models.MintSessionID(side)
		*sess.ExecMap = models.ExecMap{}
		if limit > 0 {
			*sess.StartRef = limit
		} else {
			*sess.StartRef = price
		}
		*sess.WaitingLimit = limit > 0
		e.logger.Printf("[ELASTIC START] %s vector initiated: %s | anchor: %v", side, *sess.ID, *sess.StartRef)
		e.persist()
	}

	if *sess.WaitingLimit {
		crossed := (side == models.SideBuy && price <= limit) ||
			(side == models.SideSell && price >= limit)
		if crossed {
			*sess.WaitingLimit = false
			*sess.StartRef = price
			e.logger.Printf("[LIMIT TRIGGER] %s anchor set at %v", side, price)
			e.persist()
		}
		// Armed or just triggered, accumulation starts next tick.
		return models.Action{}, false
	}

	idx := len(*sess.ExecMap)
	rows := *st.Rows(side)
	if idx >= len(rows) {
		return models.Action{}, false
	}
	row := rows[idx]
	if row.Dollar <= 0 || row.Lots <= 0 {
		// A malformed layer freezes the side and consumes the tick.
		return models.Wait(), true
	}

	target := levelPrice(side, idx, rows, *sess.StartRef)
	crossed := (side == models.SideBuy && price <= target) ||
		(side == models.SideSell && price >= target)
	if !crossed {
		return models.Action{}, false
	}

	(*sess.ExecMap)[idx] = models.RowExecStats{
		Index:      idx,
		EntryPrice: price,
		Lots:       row.Lots,
		Timestamp:  e.now().Format(time.RFC3339Nano),
	}
	e.stampOrder(side)
	e.logger.Printf("[GRID EXPANSION] %s strata %d reached: %v", side, idx, target)
	e.persist()

	monitoring.RecordLayer(string(side))
	comment := models.SessionComment(*sess.ID, idx)
	if row.Alert {
		e.queueEvent(notify.Event{
			Kind:    notify.KindOrderAlert,
			Side:    string(side),
			Comment: comment,
			Volume:  row.Lots,
		})
	}
	return models.Open(side, row.Lots, comment, row.Alert), true
}
