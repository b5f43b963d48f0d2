package models

import "encoding/json"

// ActionType enumerates the decisions the engine can emit for one tick.
type ActionType string

const (
	// ActionWait means do nothing this tick.
	ActionWait ActionType = "WAIT"
	// ActionBuy opens a long at market.
	ActionBuy ActionType = "BUY"
	// ActionSell opens a short at market.
	ActionSell ActionType = "SELL"
	// ActionCloseAll closes every position tagged with the comment.
	ActionCloseAll ActionType = "CLOSE_ALL"
)

// Action is the single imperative reply to a tick. Exactly one is emitted
// per processed tick.
type Action struct {
	Action  ActionType `json:"action"`
	Volume  float64    `json:"volume,omitempty"`
	Comment string     `json:"comment,omitempty"`
	Alert   bool       `json:"alert,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// MarshalJSON keeps the wire shape minimal per action kind: WAIT carries at
// most an error, CLOSE_ALL a comment, and orders always spell out volume,
// comment, and alert (the adapter reads alert even when false).
func (a Action) MarshalJSON() ([]byte, error) {
	switch a.Action {
	case ActionBuy, ActionSell:
		return json.Marshal(struct {
			Action  ActionType `json:"action"`
			Volume  float64    `json:"volume"`
			Comment string     `json:"comment"`
			Alert   bool       `json:"alert"`
		}{a.Action, a.Volume, a.Comment, a.Alert})
	case ActionCloseAll:
		return json.Marshal(struct {
			Action  ActionType `json:"action"`
			Comment string     `json:"comment"`
		}{a.Action, a.Comment})
	default:
		if a.Error != "" {
			return json.Marshal(struct {
				Action ActionType `json:"action"`
				Error  string     `json:"error"`
			}{ActionWait, a.Error})
		}
		return json.Marshal(struct {
			Action ActionType `json:"action"`
		}{ActionWait})
	}
}

// Wait returns the do-nothing action.
func Wait() Action {
	return Action{Action: ActionWait}
}

// WaitWithError returns WAIT carrying the engine's error status.
func WaitWithError(msg string) Action {
	return Action{Action: ActionWait, Error: msg}
}

// Open returns a market-order action for the given side.
func Open(side Side, volume float64, comment string, alert bool) Action {
	t := ActionBuy
	if side == SideSell {
		t = ActionSell
	}
	return Action{Action: t, Volume: volume, Comment: comment, Alert: alert}
}

// CloseAll returns a basket-closure action tagged with the session id or an
// administrative tag.
func CloseAll(comment string) Action {
	return Action{Action: ActionCloseAll, Comment: comment}
}

// IsOrder reports whether the action opens a position.
func (a Action) IsOrder() bool {
	return a.Action == ActionBuy || a.Action == ActionSell
}
