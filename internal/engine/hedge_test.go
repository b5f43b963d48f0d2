package engine

import (
	"testing"

	"github.com/eddiefleurent/elastic_grid/internal/models"
)

func TestHedgeScenarioAConscriptsOppositeSide(t *testing.T) {
	seed := gridState(true, false, true)
	seed.Settings.BuyHedgeValue = 100
	seed.Runtime.BuyID = "buy_1a2b3c4d"
	seed.Runtime.BuyStartRef = 2500
	seed.Runtime.BuyExecMap = models.ExecMap{
		0: {Index: 0, EntryPrice: 2495, Lots: 0.1},
		1: {Index: 1, EntryPrice: 2488, Lots: 0.2},
	}
	te := newTestEngine(t, seed)

	drawdown := newTick(2470, 2469,
		newPos(1, models.PositionTypeBuy, "buy_1a2b3c4d_idx0", 0.1, 2495, -60),
		newPos(2, models.PositionTypeBuy, "buy_1a2b3c4d_idx1", 0.2, 2488, -40))

	a := te.ProcessTick(drawdown)
	if a.Action != models.ActionSell {
		t.Fatalf("action = %s, want SELL counter-measure", a.Action)
	}
	if a.Volume != 0.3 {
		t.Errorf("volume = %v, want the losing basket's 0.3", a.Volume)
	}
	if !a.Alert {
		t.Error("hedge orders always alert")
	}

	rt := te.Snapshot().Runtime
	if !rt.BuyHedgeTriggered {
		t.Error("losing side should be latched")
	}
	if !rt.SellOn {
		t.Error("emergency session forces the counter side on")
	}
	if !models.TradeIDPattern.MatchString(rt.SellID) {
		t.Errorf("emergency session id %q not minted", rt.SellID)
	}
	if rt.SellStartRef != 2469 {
		t.Errorf("emergency anchor = %v, want bid 2469", rt.SellStartRef)
	}
	if rt.SellWaitingLimit {
		t.Error("emergency session never waits for a limit")
	}

	rows := te.Snapshot().Settings.RowsSell
	if len(rows) != 1 {
		t.Fatalf("sell rows = %d, want the single emergency row", len(rows))
	}
	if rows[0].Index != 0 || rows[0].Dollar != 0 || rows[0].Lots != 0.3 || !rows[0].Alert {
		t.Errorf("emergency row = %+v, want {0 0 0.3 true}", rows[0])
	}

	rec, ok := rt.SellExecMap[0]
	if !ok {
		t.Fatal("emergency entry not recorded")
	}
	if rec.EntryPrice != 2469 || rec.Lots != 0.3 {
		t.Errorf("emergency record = %+v", rec)
	}
	if a.Comment != models.SessionComment(rt.SellID, 0) {
		t.Errorf("comment = %q, want %q", a.Comment, models.SessionComment(rt.SellID, 0))
	}
}

func TestHedgeScenarioBAugmentsRunningSide(t *testing.T) {
	seed := gridState(true, true, true)
	seed.Settings.SellHedgeValue = 50
	seed.Runtime.BuyID = "buy_1a2b3c4d"
	seed.Runtime.BuyStartRef = 2490
	seed.Runtime.BuyExecMap = models.ExecMap{
		0: {Index: 0, EntryPrice: 2495, Lots: 0.1},
	}
	seed.Runtime.SellID = "sell_9f8e7d6c"
	seed.Runtime.SellStartRef = 2505
	seed.Runtime.SellExecMap = models.ExecMap{
		0: {Index: 0, EntryPrice: 2510, Lots: 0.1},
	}
	te := newTestEngine(t, seed)

	drawdown := newTick(2520, 2519,
		newPos(1, models.PositionTypeBuy, "buy_1a2b3c4d_idx0", 0.1, 2495, 12),
		newPos(2, models.PositionTypeSell, "sell_9f8e7d6c_idx0", 0.1, 2510, -60))

	a := te.ProcessTick(drawdown)
	if a.Action != models.ActionBuy {
		t.Fatalf("action = %s, want BUY counter-measure", a.Action)
	}
	if a.Volume != 0.1 {
		t.Errorf("volume = %v, want 0.1", a.Volume)
	}
	if a.Comment != models.SessionComment("buy_1a2b3c4d", 1) {
		t.Errorf("comment = %q, want next buy layer", a.Comment)
	}

	st := te.Snapshot()
	if !st.Runtime.SellHedgeTriggered {
		t.Error("losing sell side should be latched")
	}
	rows := st.Settings.RowsBuy
	last := rows[len(rows)-1]
	if last.Index != 1 {
		t.Fatalf("appended row index = %d, want 1", last.Index)
	}
	if last.Dollar != 25 {
		t.Errorf("appended gap = %v, want |2520-2495| = 25", last.Dollar)
	}
	if last.Lots != 0.1 || !last.Alert {
		t.Errorf("appended row = %+v", last)
	}
	rec, ok := st.Runtime.BuyExecMap[1]
	if !ok {
		t.Fatal("augmented entry not recorded")
	}
	if rec.EntryPrice != 2520 || rec.Lots != 0.1 {
		t.Errorf("augmented record = %+v", rec)
	}
}

func TestHedgeLatchHeldWhenCounterClosing(t *testing.T) {
	seed := gridState(true, true, true)
	seed.Settings.BuyHedgeValue = 100
	seed.Runtime.BuyID = "buy_1a2b3c4d"
	seed.Runtime.BuyStartRef = 2500
	seed.Runtime.BuyExecMap = models.ExecMap{
		0: {Index: 0, EntryPrice: 2495, Lots: 0.3},
	}
	seed.Runtime.SellID = "sell_9f8e7d6c"
	seed.Runtime.SellIsClosing = true
	te := newTestEngine(t, seed)

	tk := newTick(2470, 2469,
		newPos(1, models.PositionTypeBuy, "buy_1a2b3c4d_idx0", 0.3, 2495, -120))

	// Drive the check directly: the latch must stick even though the
	// counter side is mid-close and no order can be placed yet.
	a, fired := te.checkHedge(tk, models.SideBuy)
	if fired {
		t.Fatalf("hedge fired %+v while counter side is closing", a)
	}
	if !te.state.Runtime.BuyHedgeTriggered {
		t.Error("latch must be set before the counter-side check")
	}
	if len(te.state.Settings.RowsSell) != 2 {
		t.Error("counter rows must be untouched")
	}
}

func TestLatchedSideStopsAccumulating(t *testing.T) {
	seed := gridState(true, false, true)
	seed.Runtime.BuyID = "buy_1a2b3c4d"
	seed.Runtime.BuyStartRef = 2500
	seed.Runtime.BuyHedgeTriggered = true
	te := newTestEngine(t, seed)

	// 2494 is past the first layer's 2495 target, but the latch holds.
	if a := te.ProcessTick(newTick(2494, 2493)); a.Action != models.ActionWait {
		t.Fatalf("action = %s, want WAIT from a latched side", a.Action)
	}
	if len(te.Snapshot().Runtime.BuyExecMap) != 0 {
		t.Error("latched side must not add layers")
	}
}

func TestHedgeDisabledByZeroValue(t *testing.T) {
	seed := gridState(true, false, true)
	seed.Runtime.BuyID = "buy_1a2b3c4d"
	seed.Runtime.BuyStartRef = 2500
	seed.Runtime.BuyExecMap = models.ExecMap{
		0: {Index: 0, EntryPrice: 2495, Lots: 0.1},
	}
	te := newTestEngine(t, seed)

	// 2489 sits between the first and second layer targets, so the only
	// order a tick could produce here is a hedge.
	deep := newTick(2489, 2488,
		newPos(1, models.PositionTypeBuy, "buy_1a2b3c4d_idx0", 0.1, 2495, -60))

	if a := te.ProcessTick(deep); a.IsOrder() {
		t.Fatalf("order %+v emitted with hedging disabled", a)
	}
	if te.Snapshot().Runtime.BuyHedgeTriggered {
		t.Error("latch must stay clear when hedge value is zero")
	}
}
