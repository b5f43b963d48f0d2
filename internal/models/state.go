package models

import (
	"encoding/json"
	"fmt"
)

// PriceHistoryLen bounds the mid-price ring kept for the UI chart.
const PriceHistoryLen = 100

// TPType selects how a side's basket take-profit target is computed.
type TPType string

const (
	// TPEquityPct targets a percentage of account equity.
	TPEquityPct TPType = "equity_pct"
	// TPBalancePct targets a percentage of account balance.
	TPBalancePct TPType = "balance_pct"
	// TPFixedMoney targets a fixed currency amount.
	TPFixedMoney TPType = "fixed_money"
)

// Price direction labels for the latest tick-over-tick move.
const (
	DirectionNeutral = "neutral"
	DirectionUp      = "up"
	DirectionDown    = "down"
)

// UserSettings holds the operator-tunable configuration for both sides.
type UserSettings struct {
	BuyLimitPrice  float64 `json:"buy_limit_price"`
	SellLimitPrice float64 `json:"sell_limit_price"`

	BuyTPType   TPType  `json:"buy_tp_type"`
	BuyTPValue  float64 `json:"buy_tp_value"`
	SellTPType  TPType  `json:"sell_tp_type"`
	SellTPValue float64 `json:"sell_tp_value"`

	BuyHedgeValue  float64 `json:"buy_hedge_value"`
	SellHedgeValue float64 `json:"sell_hedge_value"`

	RowsBuy  []GridRow `json:"rows_buy"`
	RowsSell []GridRow `json:"rows_sell"`
}

// Rows returns a pointer to the layer table for the given side so callers
// can replace or append rows in place (hedge deployment does both).
func (s *UserSettings) Rows(side Side) *[]GridRow {
	if side == SideBuy {
		return &s.RowsBuy
	}
	return &s.RowsSell
}

// LimitPrice returns the configured anchor-limit price for the side.
func (s *UserSettings) LimitPrice(side Side) float64 {
	if side == SideBuy {
		return s.BuyLimitPrice
	}
	return s.SellLimitPrice
}

// TP returns the take-profit kind and value for the side.
func (s *UserSettings) TP(side Side) (TPType, float64) {
	if side == SideBuy {
		return s.BuyTPType, s.BuyTPValue
	}
	return s.SellTPType, s.SellTPValue
}

// HedgeValue returns the drawdown trigger for the side (0 disables).
func (s *UserSettings) HedgeValue(side Side) float64 {
	if side == SideBuy {
		return s.BuyHedgeValue
	}
	return s.SellHedgeValue
}

// Validate rejects settings no command may apply. Unknown TP kinds are
// accepted and simply never trigger, matching the live UI contract.
func (s *UserSettings) Validate() error {
	if s.BuyTPValue < 0 || s.SellTPValue < 0 {
		return fmt.Errorf("tp values cannot be negative (buy: %.2f, sell: %.2f)", s.BuyTPValue, s.SellTPValue)
	}
	if s.BuyHedgeValue < 0 || s.SellHedgeValue < 0 {
		return fmt.Errorf("hedge values cannot be negative (buy: %.2f, sell: %.2f)", s.BuyHedgeValue, s.SellHedgeValue)
	}
	return nil
}

// RuntimeState is the live trading state for both sides. Field names mirror
// the persisted document and the UI payload.
type RuntimeState struct {
	BuyOn    bool `json:"buy_on"`
	SellOn   bool `json:"sell_on"`
	CyclicOn bool `json:"cyclic_on"`

	BuyID  string `json:"buy_id"`
	SellID string `json:"sell_id"`

	BuyIsClosing  bool `json:"buy_is_closing"`
	SellIsClosing bool `json:"sell_is_closing"`

	BuyHedgeTriggered  bool `json:"buy_hedge_triggered"`
	SellHedgeTriggered bool `json:"sell_hedge_triggered"`

	BuyWaitingLimit  bool `json:"buy_waiting_limit"`
	SellWaitingLimit bool `json:"sell_waiting_limit"`

	BuyStartRef  float64 `json:"buy_start_ref"`
	SellStartRef float64 `json:"sell_start_ref"`

	BuyExecMap  ExecMap `json:"buy_exec_map"`
	SellExecMap ExecMap `json:"sell_exec_map"`

	PendingActions []string `json:"pending_actions"`

	CurrentPrice   float64 `json:"current_price"`
	CurrentAsk     float64 `json:"current_ask"`
	CurrentBid     float64 `json:"current_bid"`
	PriceDirection string  `json:"price_direction"`

	ErrorStatus string `json:"error_status"`

	BuyLastOrderSentTs  float64 `json:"buy_last_order_sent_ts"`
	SellLastOrderSentTs float64 `json:"sell_last_order_sent_ts"`
}

// Session is a mutable view over one side's runtime fields. It lets the
// decision pipeline run the same code for both directions while the
// persisted layout stays flat.
type Session struct {
	Side            Side
	On              *bool
	ID              *string
	IsClosing       *bool
	HedgeTriggered  *bool
	WaitingLimit    *bool
	StartRef        *float64
	ExecMap         *ExecMap
	LastOrderSentTs *float64
}

// Session returns the view for the given side.
func (rt *RuntimeState) Session(side Side) Session {
	if side == SideBuy {
		return Session{
			Side:            SideBuy,
			On:              &rt.BuyOn,
			ID:              &rt.BuyID,
			IsClosing:       &rt.BuyIsClosing,
			HedgeTriggered:  &rt.BuyHedgeTriggered,
			WaitingLimit:    &rt.BuyWaitingLimit,
			StartRef:        &rt.BuyStartRef,
			ExecMap:         &rt.BuyExecMap,
			LastOrderSentTs: &rt.BuyLastOrderSentTs,
		}
	}
	return Session{
		Side:            SideSell,
		On:              &rt.SellOn,
		ID:              &rt.SellID,
		IsClosing:       &rt.SellIsClosing,
		HedgeTriggered:  &rt.SellHedgeTriggered,
		WaitingLimit:    &rt.SellWaitingLimit,
		StartRef:        &rt.SellStartRef,
		ExecMap:         &rt.SellExecMap,
		LastOrderSentTs: &rt.SellLastOrderSentTs,
	}
}

// PricePoint is one entry of the bounded mid-price history.
type PricePoint struct {
	Mid float64 `json:"mid"`
	Ts  float64 `json:"ts"`
}

// SystemState is the full persisted snapshot: settings, runtime, and the
// bounded price history.
type SystemState struct {
	Settings     UserSettings `json:"settings"`
	Runtime      RuntimeState `json:"runtime"`
	LastUpdateTs string       `json:"last_update_ts"`
	PriceHistory []PricePoint `json:"price_history"`
}

// NewSystemState returns a fresh snapshot with both sides off and no session
// identity. Maps and slices are allocated so JSON round-trips keep their
// shape ({} and [] rather than null).
func NewSystemState() *SystemState {
	return &SystemState{
		Settings: UserSettings{
			BuyTPType:  TPEquityPct,
			SellTPType: TPEquityPct,
			RowsBuy:    []GridRow{},
			RowsSell:   []GridRow{},
		},
		Runtime: RuntimeState{
			BuyExecMap:     ExecMap{},
			SellExecMap:    ExecMap{},
			PendingActions: []string{},
			PriceDirection: DirectionNeutral,
		},
		PriceHistory: []PricePoint{},
	}
}

// Normalize re-allocates any nil maps or slices after a JSON load so the
// pipeline never writes into a nil container.
func (s *SystemState) Normalize() {
	if s.Settings.RowsBuy == nil {
		s.Settings.RowsBuy = []GridRow{}
	}
	if s.Settings.RowsSell == nil {
		s.Settings.RowsSell = []GridRow{}
	}
	if s.Settings.BuyTPType == "" {
		s.Settings.BuyTPType = TPEquityPct
	}
	if s.Settings.SellTPType == "" {
		s.Settings.SellTPType = TPEquityPct
	}
	if s.Runtime.BuyExecMap == nil {
		s.Runtime.BuyExecMap = ExecMap{}
	}
	if s.Runtime.SellExecMap == nil {
		s.Runtime.SellExecMap = ExecMap{}
	}
	if s.Runtime.PendingActions == nil {
		s.Runtime.PendingActions = []string{}
	}
	if s.Runtime.PriceDirection == "" {
		s.Runtime.PriceDirection = DirectionNeutral
	}
	if s.PriceHistory == nil {
		s.PriceHistory = []PricePoint{}
	}
	if len(s.PriceHistory) > PriceHistoryLen {
		s.PriceHistory = s.PriceHistory[len(s.PriceHistory)-PriceHistoryLen:]
	}
}

// AppendPrice pushes one mid-price sample, trimming the ring to its bound.
func (s *SystemState) AppendPrice(mid, ts float64) {
	s.PriceHistory = append(s.PriceHistory, PricePoint{Mid: mid, Ts: ts})
	if len(s.PriceHistory) > PriceHistoryLen {
		s.PriceHistory = s.PriceHistory[len(s.PriceHistory)-PriceHistoryLen:]
	}
}

// LastPrice returns the most recent history point, or false when empty.
func (s *SystemState) LastPrice() (PricePoint, bool) {
	if len(s.PriceHistory) == 0 {
		return PricePoint{}, false
	}
	return s.PriceHistory[len(s.PriceHistory)-1], true
}

// Clone returns a deep copy of the snapshot via a JSON round trip, so
// readers can hold it outside the engine lock.
func (s *SystemState) Clone() *SystemState {
	raw, err := json.Marshal(s)
	if err != nil {
		out := NewSystemState()
		return out
	}
	out := &SystemState{}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewSystemState()
	}
	out.Normalize()
	return out
}
