package engine

import (
	"github.com/eddiefleurent/elastic_grid/internal/models"
	"github.com/eddiefleurent/elastic_grid/internal/notify"
)

// Pending action tags queued by control commands and drained one per tick.
const (
	PendingCloseBuy  = "CLOSE_ALL_BUY"
	PendingCloseSell = "CLOSE_ALL_SELL"
	PendingEmergency = "CLOSE_ALL_EMERGENCY"
)

// ControlRequest is the partial-update payload of the control endpoint.
// Nil fields leave their switch untouched.
type ControlRequest struct {
	BuySwitch      *bool `json:"buy_switch"`
	SellSwitch     *bool `json:"sell_switch"`
	Cyclic         *bool `json:"cyclic"`
	EmergencyClose *bool `json:"emergency_close"`
}

// ControlStatus reports how a control command was absorbed.
type ControlStatus string

const (
	// ControlOK acknowledges a normal switch update.
	ControlOK ControlStatus = "ok"
	// ControlEmergency acknowledges an emergency close.
	ControlEmergency ControlStatus = "emergency"
)

// ApplyControl flips the engine switches. Turning a running side off queues
// a basket close for the next tick. Emergency close overrides everything,
// queues a global close, and clears a latched error.
func (e *Engine) ApplyControl(req ControlRequest) ControlStatus {
	e.mu.Lock()
	status := e.applyControlLocked(req)
	snap := e.state.Clone()
	events := e.takeEvents()
	e.mu.Unlock()

	for _, ev := range events {
		e.notifier.Publish(ev)
	}
	e.pushUpdate(snap)
	return status
}

func (e *Engine) applyControlLocked(req ControlRequest) ControlStatus {
	rt := &e.state.Runtime

	if req.EmergencyClose != nil && *req.EmergencyClose {
		e.logger.Printf("[EMERGENCY] close all command received")
		rt.BuyOn = false
		rt.SellOn = false
		rt.CyclicOn = false
		rt.BuyIsClosing = true
		rt.SellIsClosing = true
		rt.PendingActions = append(rt.PendingActions, PendingEmergency)
		rt.ErrorStatus = ""
		e.markClosingReason(models.SideBuy, CloseReasonEmergency)
		e.markClosingReason(models.SideSell, CloseReasonEmergency)
		e.queueEvent(notify.Event{Kind: notify.KindEmergencyClose})
		e.persist()
		return ControlEmergency
	}

	if req.BuySwitch != nil {
		if rt.BuyOn && !*req.BuySwitch {
			rt.PendingActions = append(rt.PendingActions, PendingCloseBuy)
			rt.BuyIsClosing = true
			e.markClosingReason(models.SideBuy, CloseReasonManual)
		}
		rt.BuyOn = *req.BuySwitch
	}
	if req.SellSwitch != nil {
		if rt.SellOn && !*req.SellSwitch {
			rt.PendingActions = append(rt.PendingActions, PendingCloseSell)
			rt.SellIsClosing = true
			e.markClosingReason(models.SideSell, CloseReasonManual)
		}
		rt.SellOn = *req.SellSwitch
	}
	if req.Cyclic != nil {
		rt.CyclicOn = *req.Cyclic
	}

	e.persist()
	return ControlOK
}

// ApplySettings replaces the operator settings, preserving the locked
// geometry of already-executed rows: malformed rows are dropped first, then
// any surviving row whose index has executed this session keeps its current
// index, dollar and lots and takes only the alert flag from the update.
func (e *Engine) ApplySettings(incoming models.UserSettings) error {
	e.mu.Lock()
	err := e.applySettingsLocked(incoming)
	snap := e.state.Clone()
	e.mu.Unlock()

	if err == nil {
		e.pushUpdate(snap)
	}
	return err
}

func (e *Engine) applySettingsLocked(incoming models.UserSettings) error {
	if err := incoming.Validate(); err != nil {
		e.logger.Printf("[ERROR] settings update failed: %v", err)
		return err
	}

	st := &e.state.Settings
	rt := &e.state.Runtime

	st.BuyLimitPrice = incoming.BuyLimitPrice
	st.SellLimitPrice = incoming.SellLimitPrice
	st.BuyTPType = incoming.BuyTPType
	st.BuyTPValue = incoming.BuyTPValue
	st.SellTPType = incoming.SellTPType
	st.SellTPValue = incoming.SellTPValue
	st.BuyHedgeValue = incoming.BuyHedgeValue
	st.SellHedgeValue = incoming.SellHedgeValue

	st.RowsBuy = mergeRows(incoming.RowsBuy, st.RowsBuy, rt.BuyExecMap)
	st.RowsSell = mergeRows(incoming.RowsSell, st.RowsSell, rt.SellExecMap)

	e.persist()
	e.logger.Printf("[CONFIG] system settings updated")
	return nil
}

func mergeRows(incoming, current []models.GridRow, exec models.ExecMap) []models.GridRow {
	currentByIndex := make(map[int]models.GridRow, len(current))
	for _, r := range current {
		currentByIndex[r.Index] = r
	}

	out := make([]models.GridRow, 0, len(incoming))
	for _, row := range incoming {
		if row.Dollar <= 0 || row.Lots <= 0 {
			continue
		}
		old, held := currentByIndex[row.Index]
		if _, executed := exec[row.Index]; executed && held {
			out = append(out, models.GridRow{
				Index:  old.Index,
				Dollar: old.Dollar,
				Lots:   old.Lots,
				Alert:  row.Alert,
			})
			continue
		}
		out = append(out, row)
	}
	return out
}
