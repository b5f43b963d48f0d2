// Package engine implements the tick-serialized decision core of the
// elastic grid: layered accumulation, basket take-profit ("Snap-Back"),
// drawdown hedging ("IronClad") and broker position reconciliation.
//
// All decisions run under a single mutex over one SystemState. Every state
// transition is persisted before the resulting action leaves the engine, so
// a crash between decision and execution replays cleanly.
package engine

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/eddiefleurent/elastic_grid/internal/journal"
	"github.com/eddiefleurent/elastic_grid/internal/models"
	"github.com/eddiefleurent/elastic_grid/internal/monitoring"
	"github.com/eddiefleurent/elastic_grid/internal/notify"
	"github.com/eddiefleurent/elastic_grid/internal/storage"
)

// ExternalCloseGracePeriod is how long after sending an order the engine
// ignores an empty broker basket. Fresh orders take a moment to appear in
// the terminal's position list and must not be mistaken for a manual close.
const ExternalCloseGracePeriod = 5 * time.Second

// Close reasons recorded in the session journal.
const (
	CloseReasonSnapBack  = "snap_back"
	CloseReasonManual    = "manual"
	CloseReasonExternal  = "external"
	CloseReasonEmergency = "emergency"
)

// sides fixes the evaluation order of the per-direction checks: buy first,
// then sell, on every priority level.
var sides = [2]models.Side{models.SideBuy, models.SideSell}

// Config carries optional collaborators for the engine.
type Config struct {
	// Journal records closed sessions. Defaults to journal.Nop.
	Journal journal.Journal
	// Notifier receives order alerts, hedge deployments, conflicts and
	// emergency closes. Defaults to notify.Nop.
	Notifier notify.Notifier
	// Now supplies the engine clock. Defaults to time.Now. Tests inject a
	// fake clock to drive the external-close grace window.
	Now func() time.Time
	// OnUpdate is invoked with a state snapshot after every mutation,
	// outside the engine lock. The HTTP layer uses it to feed the
	// websocket hub.
	OnUpdate func(*models.SystemState)
}

// Engine serializes all decisions over a single mutable SystemState.
type Engine struct {
	mu     sync.Mutex
	state  *models.SystemState
	store  storage.Interface
	logger *log.Logger

	journal  journal.Journal
	notifier notify.Notifier
	now      func() time.Time
	onUpdate func(*models.SystemState)

	// lastOrderAt tracks order submission on the monotonic clock. The
	// persisted epoch stamps in RuntimeState are for display only: after
	// a restart the in-memory stamps are re-armed at load time, so the
	// grace window holds even if the wall clock moved.
	lastOrderAt map[models.Side]time.Time

	// closingReason remembers why a side entered its closing phase so the
	// confirmed closure is journaled with the right reason. Not persisted,
	// a restart mid-closing records "manual".
	closingReason map[models.Side]string

	// pendingEvents buffers notifications raised under the lock. They are
	// flushed to the notifier after the lock is released.
	pendingEvents []notify.Event
}

// New loads persisted state through store and returns a ready engine.
func New(store storage.Interface, logger *log.Logger, config ...Config) (*Engine, error) {
	if store == nil {
		panic("engine.New: storage must not be nil")
	}

	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if logger == nil {
		logger = log.New(os.Stderr, "engine: ", log.LstdFlags)
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Nop{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	state.Normalize()

	e := &Engine{
		state:         state,
		store:         store,
		logger:        logger,
		journal:       cfg.Journal,
		notifier:      cfg.Notifier,
		now:           cfg.Now,
		onUpdate:      cfg.OnUpdate,
		lastOrderAt:   make(map[models.Side]time.Time),
		closingReason: make(map[models.Side]string),
	}

	// Re-arm the grace stamps: a non-zero persisted stamp means an order
	// went out before the restart, so a fresh window starts now instead of
	// trusting a wall-clock delta across process lifetimes.
	loadedAt := e.now()
	for _, side := range sides {
		if *state.Runtime.Session(side).LastOrderSentTs != 0 {
			e.lastOrderAt[side] = loadedAt
		}
	}

	e.logger.Printf("[INIT] state restored: buy=%t sell=%t cyclic=%t",
		state.Runtime.BuyOn, state.Runtime.SellOn, state.Runtime.CyclicOn)
	return e, nil
}

// Snapshot returns a deep copy of the current system state.
func (e *Engine) Snapshot() *models.SystemState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// persist saves the current state, logging failures without aborting the
// caller. The engine keeps trading on its in-memory state when the disk
// misbehaves.
func (e *Engine) persist() {
	if err := e.store.Save(e.state); err != nil {
		e.logger.Printf("[ERROR] save state failed: %v", err)
		monitoring.RecordSaveFailure()
	}
}

// stampOrder marks side as having just sent an order, on both clocks.
func (e *Engine) stampOrder(side models.Side) {
	now := e.now()
	e.lastOrderAt[side] = now
	*e.state.Runtime.Session(side).LastOrderSentTs = epochSeconds(now)
}

// gracePassed reports whether side's external-close grace window elapsed.
// A side that never sent an order has a zero stamp and passes immediately.
func (e *Engine) gracePassed(side models.Side) bool {
	return e.now().Sub(e.lastOrderAt[side]) >= ExternalCloseGracePeriod
}

func (e *Engine) markClosingReason(side models.Side, reason string) {
	e.closingReason[side] = reason
}

// takeClosingReason pops the recorded reason, defaulting to manual when the
// closing phase predates this process.
func (e *Engine) takeClosingReason(side models.Side) string {
	reason, ok := e.closingReason[side]
	if !ok || reason == "" {
		return CloseReasonManual
	}
	delete(e.closingReason, side)
	return reason
}

// journalClosed records a confirmed closure. Journal failures are logged and
// swallowed, bookkeeping must never stall the pipeline.
func (e *Engine) journalClosed(side models.Side, sessionID, reason string, exec models.ExecMap) {
	var volume, profit float64
	if top := exec.MaxIndex(); top >= 0 {
		last := exec[top]
		volume = last.CumulativeLots
		profit = last.CumulativeProfit
	}

	rec := journal.SessionRecord{
		Side:      string(side),
		SessionID: sessionID,
		Reason:    reason,
		Layers:    len(exec),
		Volume:    volume,
		Profit:    profit,
		ClosedAt:  e.now().UTC(),
	}
	if err := e.journal.Record(rec); err != nil {
		e.logger.Printf("[ERROR] journal session %s: %v", sessionID, err)
	}
	monitoring.RecordSessionClosed(string(side), reason)
}

// queueEvent buffers an event for delivery once the lock is released.
func (e *Engine) queueEvent(ev notify.Event) {
	if ev.Ts == "" {
		ev.Ts = e.now().UTC().Format(time.RFC3339Nano)
	}
	e.pendingEvents = append(e.pendingEvents, ev)
}

// takeEvents drains the event buffer. Called with the lock held.
func (e *Engine) takeEvents() []notify.Event {
	events := e.pendingEvents
	e.pendingEvents = nil
	return events
}

// pushUpdate hands a snapshot to the registered observer. Called outside the
// engine lock.
func (e *Engine) pushUpdate(snap *models.SystemState) {
	if e.onUpdate != nil {
		e.onUpdate(snap)
	}
}

// epochSeconds converts t to a fractional Unix timestamp, the format the UI
// and the persisted document use for order stamps and price history.
func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
