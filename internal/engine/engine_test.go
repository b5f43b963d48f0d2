package engine

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/eddiefleurent/elastic_grid/internal/journal"
	"github.com/eddiefleurent/elastic_grid/internal/models"
	"github.com/eddiefleurent/elastic_grid/internal/storage"
)

// fakeClock drives the engine's monotonic time in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeJournal captures session records in memory.
type fakeJournal struct {
	mu      sync.Mutex
	records []journal.SessionRecord
}

func (f *fakeJournal) Record(rec journal.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeJournal) Recent(int) ([]journal.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]journal.SessionRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeJournal) Close() error { return nil }

func (f *fakeJournal) last(t *testing.T) journal.SessionRecord {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		t.Fatal("no journal records")
	}
	return f.records[len(f.records)-1]
}

type testEngine struct {
	*Engine
	store   *storage.MockStorage
	clock   *fakeClock
	journal *fakeJournal
}

func newTestEngine(t *testing.T, seed *models.SystemState) *testEngine {
	t.Helper()

	store := storage.NewMockStorage()
	if seed != nil {
		store.SeedState(seed)
	}
	clock := newFakeClock()
	jrnl := &fakeJournal{}

	e, err := New(store, log.New(io.Discard, "", 0), Config{
		Journal: jrnl,
		Now:     clock.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEngine{Engine: e, store: store, clock: clock, journal: jrnl}
}

// gridState seeds a snapshot with a three-layer buy table (5/7/9 dollars)
// and a two-layer sell table (5/7).
func gridState(buyOn, sellOn, cyclic bool) *models.SystemState {
	st := models.NewSystemState()
	st.Runtime.BuyOn = buyOn
	st.Runtime.SellOn = sellOn
	st.Runtime.CyclicOn = cyclic
	st.Settings.RowsBuy = []models.GridRow{
		{Index: 0, Dollar: 5, Lots: 0.1},
		{Index: 1, Dollar: 7, Lots: 0.2},
		{Index: 2, Dollar: 9, Lots: 0.3},
	}
	st.Settings.RowsSell = []models.GridRow{
		{Index: 0, Dollar: 5, Lots: 0.1},
		{Index: 1, Dollar: 7, Lots: 0.2},
	}
	return st
}

func newTick(ask, bid float64, positions ...models.Position) *models.TickData {
	return &models.TickData{
		AccountID: "acct-1",
		Equity:    10000,
		Balance:   10000,
		Symbol:    "XAUUSD",
		Ask:       ask,
		Bid:       bid,
		Positions: positions,
	}
}

func newPos(ticket int64, typ, comment string, volume, price, profit float64) models.Position {
	return models.Position{
		Ticket:  ticket,
		Symbol:  "XAUUSD",
		Type:    typ,
		Volume:  volume,
		Price:   price,
		Profit:  profit,
		Comment: comment,
	}
}

func TestMintOnFirstTick(t *testing.T) {
	te := newTestEngine(t, gridState(true, false, false))

	action := te.ProcessTick(newTick(2500, 2499))

	if action.Action != models.ActionWait {
		t.Fatalf("first tick action = %s, want WAIT", action.Action)
	}

	rt := te.Snapshot().Runtime
	if rt.BuyID == "" {
		t.Fatal("expected a buy session to be minted")
	}
	if !models.TradeIDPattern.MatchString(rt.BuyID + "_idx0") {
		t.Errorf("minted id %q does not produce valid comments", rt.BuyID)
	}
	if rt.BuyStartRef != 2500 {
		t.Errorf("anchor = %v, want ask 2500", rt.BuyStartRef)
	}
	if rt.BuyWaitingLimit {
		t.Error("no limit configured, side should not be waiting")
	}
	if te.store.SaveCallCount() == 0 {
		t.Error("mint must persist state")
	}
}

func TestLayerFiresWhenLevelCrossed(t *testing.T) {
	te := newTestEngine(t, gridState(true, false, false))

	te.ProcessTick(newTick(2500, 2499))
	action := te.ProcessTick(newTick(2495, 2494))

	if action.Action != models.ActionBuy {
		t.Fatalf("action = %s, want BUY", action.Action)
	}
	if action.Volume != 0.1 {
		t.Errorf("volume = %v, want 0.1", action.Volume)
	}
	if action.Alert {
		t.Error("alert should mirror the row flag (false)")
	}

	rt := te.Snapshot().Runtime
	if want := models.SessionComment(rt.BuyID, 0); action.Comment != want {
		t.Errorf("comment = %q, want %q", action.Comment, want)
	}

	rec, ok := rt.BuyExecMap[0]
	if !ok {
		t.Fatal("layer 0 not recorded in the exec map")
	}
	if rec.EntryPrice != 2495 || rec.Lots != 0.1 {
		t.Errorf("exec record = %+v, want entry 2495 lots 0.1", rec)
	}
	if rt.BuyLastOrderSentTs == 0 {
		t.Error("order stamp not set")
	}
}

func TestLayersUseCumulativeGaps(t *testing.T) {
	te := newTestEngine(t, gridState(true, false, false))

	te.ProcessTick(newTick(2500, 2499))
	if a := te.ProcessTick(newTick(2495, 2494)); a.Action != models.ActionBuy {
		t.Fatalf("layer 0: action = %s, want BUY", a.Action)
	}

	// Layer 1 sits at anchor - (5+7) = 2488. A drop to 2490 is not enough.
	if a := te.ProcessTick(newTick(2490, 2489)); a.Action != models.ActionWait {
		t.Fatalf("above layer 1: action = %s, want WAIT", a.Action)
	}

	a := te.ProcessTick(newTick(2488, 2487))
	if a.Action != models.ActionBuy {
		t.Fatalf("layer 1: action = %s, want BUY", a.Action)
	}
	if a.Volume != 0.2 {
		t.Errorf("layer 1 volume = %v, want 0.2", a.Volume)
	}
	rt := te.Snapshot().Runtime
	if want := models.SessionComment(rt.BuyID, 1); a.Comment != want {
		t.Errorf("comment = %q, want %q", a.Comment, want)
	}
}

func TestReplayedTickDoesNotDuplicateLayer(t *testing.T) {
	te := newTestEngine(t, gridState(true, false, false))

	te.ProcessTick(newTick(2500, 2499))
	te.ProcessTick(newTick(2495, 2494))

	// The identical tick arrives again: the layer is already executed and
	// the next level is not crossed, so nothing happens.
	a := te.ProcessTick(newTick(2495, 2494))
	if a.Action != models.ActionWait {
		t.Fatalf("replay action = %s, want WAIT", a.Action)
	}
	if n := len(te.Snapshot().Runtime.BuyExecMap); n != 1 {
		t.Errorf("exec map has %d layers, want 1", n)
	}
}

func TestLevelPrice(t *testing.T) {
	rows := []models.GridRow{{Dollar: 5}, {Dollar: 7}, {Dollar: 9}}

	cases := []struct {
		side  models.Side
		layer int
		want  float64
	}{
		{models.SideBuy, 0, 995},
		{models.SideBuy, 1, 988},
		{models.SideBuy, 2, 979},
		{models.SideBuy, 5, 979}, // indices beyond the table contribute nothing
		{models.SideSell, 0, 1005},
		{models.SideSell, 1, 1012},
		{models.SideSell, 2, 1021},
	}
	for _, c := range cases {
		if got := levelPrice(c.side, c.layer, rows, 1000); got != c.want {
			t.Errorf("levelPrice(%s, %d) = %v, want %v", c.side, c.layer, got, c.want)
		}
	}
}

func TestMalformedRowFreezesSide(t *testing.T) {
	seed := gridState(true, true, false)
	seed.Settings.RowsBuy = []models.GridRow{{Index: 0, Dollar: 0, Lots: 0.1}}
	te := newTestEngine(t, seed)

	a := te.ProcessTick(newTick(2500, 2499))
	if a.Action != models.ActionWait {
		t.Fatalf("action = %s, want WAIT", a.Action)
	}

	rt := te.Snapshot().Runtime
	if len(rt.BuyExecMap) != 0 {
		t.Error("malformed row must not execute")
	}
	// The malformed buy row consumes the tick before the sell side runs.
	if rt.SellID != "" {
		t.Error("sell side should not have been reached")
	}
}

func TestLimitAnchorArmsAndTriggers(t *testing.T) {
	seed := gridState(true, false, false)
	seed.Settings.BuyLimitPrice = 2480
	te := newTestEngine(t, seed)

	a := te.ProcessTick(newTick(2500, 2499))
	if a.Action != models.ActionWait {
		t.Fatalf("mint tick action = %s, want WAIT", a.Action)
	}
	rt := te.Snapshot().Runtime
	if !rt.BuyWaitingLimit {
		t.Fatal("limit anchor should be armed")
	}
	if rt.BuyStartRef != 2480 {
		t.Errorf("provisional anchor = %v, want limit 2480", rt.BuyStartRef)
	}

	// Above the limit nothing accumulates.
	te.ProcessTick(newTick(2490, 2489))
	if n := len(te.Snapshot().Runtime.BuyExecMap); n != 0 {
		t.Fatalf("exec map has %d layers while waiting, want 0", n)
	}

	// Crossing re-anchors at the actual price but does not trade yet.
	a = te.ProcessTick(newTick(2479, 2478))
	if a.Action != models.ActionWait {
		t.Fatalf("crossing tick action = %s, want WAIT", a.Action)
	}
	rt = te.Snapshot().Runtime
	if rt.BuyWaitingLimit {
		t.Error("limit should have triggered")
	}
	if rt.BuyStartRef != 2479 {
		t.Errorf("anchor = %v, want 2479", rt.BuyStartRef)
	}

	// Accumulation resumes against the new anchor: 2479 - 5 = 2474.
	if a = te.ProcessTick(newTick(2475, 2474)); a.Action != models.ActionWait {
		t.Fatalf("above level: action = %s, want WAIT", a.Action)
	}
	if a = te.ProcessTick(newTick(2474, 2473)); a.Action != models.ActionBuy {
		t.Fatalf("at level: action = %s, want BUY", a.Action)
	}
}

func TestPriceDirectionTracksMid(t *testing.T) {
	te := newTestEngine(t, nil)

	te.ProcessTick(newTick(2500, 2499))
	if d := te.Snapshot().Runtime.PriceDirection; d != models.DirectionNeutral {
		t.Errorf("first tick direction = %q, want neutral", d)
	}

	te.ProcessTick(newTick(2501, 2500))
	if d := te.Snapshot().Runtime.PriceDirection; d != models.DirectionUp {
		t.Errorf("direction = %q, want up", d)
	}

	// An unchanged mid reads as down.
	te.ProcessTick(newTick(2501, 2500))
	if d := te.Snapshot().Runtime.PriceDirection; d != models.DirectionDown {
		t.Errorf("direction = %q, want down", d)
	}
}

func TestStateSavedBeforeActionEmitted(t *testing.T) {
	te := newTestEngine(t, gridState(true, false, false))
	te.ProcessTick(newTick(2500, 2499))

	before := te.store.SaveCallCount()
	a := te.ProcessTick(newTick(2495, 2494))
	if a.Action != models.ActionBuy {
		t.Fatalf("action = %s, want BUY", a.Action)
	}
	if te.store.SaveCallCount() <= before {
		t.Fatal("layer fire must persist state")
	}
	saved := te.store.LastSaved()
	if _, ok := saved.Runtime.BuyExecMap[0]; !ok {
		t.Error("persisted snapshot must already contain the executed layer")
	}
}

func TestSaveFailureDoesNotBlockTrading(t *testing.T) {
	te := newTestEngine(t, gridState(true, false, false))
	te.store.SetSaveError(errors.New("disk full"))

	te.ProcessTick(newTick(2500, 2499))
	a := te.ProcessTick(newTick(2495, 2494))
	if a.Action != models.ActionBuy {
		t.Fatalf("action = %s, want BUY despite save failures", a.Action)
	}
}

func TestOnUpdateReceivesDetachedSnapshot(t *testing.T) {
	store := storage.NewMockStorage()
	store.SeedState(gridState(true, false, false))
	clock := newFakeClock()

	var got []*models.SystemState
	e, err := New(store, log.New(io.Discard, "", 0), Config{
		Now:      clock.Now,
		OnUpdate: func(s *models.SystemState) { got = append(got, s) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.ProcessTick(newTick(2500, 2499))
	if len(got) != 1 {
		t.Fatalf("got %d updates, want 1", len(got))
	}

	got[0].Runtime.BuyID = "tampered"
	if e.Snapshot().Runtime.BuyID == "tampered" {
		t.Error("snapshot handed to OnUpdate must be a deep copy")
	}
}
