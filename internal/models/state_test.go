package models

import (
	"encoding/json"
	"testing"
)

func TestNewSystemStateDefaults(t *testing.T) {
	s := NewSystemState()

	if s.Settings.BuyTPType != TPEquityPct || s.Settings.SellTPType != TPEquityPct {
		t.Errorf("default TP types = (%s, %s), want equity_pct", s.Settings.BuyTPType, s.Settings.SellTPType)
	}
	if s.Runtime.PriceDirection != DirectionNeutral {
		t.Errorf("default price direction = %q, want neutral", s.Runtime.PriceDirection)
	}
	if s.Runtime.BuyExecMap == nil || s.Runtime.SellExecMap == nil {
		t.Fatal("exec maps must be allocated")
	}
	if s.Runtime.BuyOn || s.Runtime.SellOn || s.Runtime.CyclicOn {
		t.Error("fresh state must have all switches off")
	}
	if s.Runtime.BuyID != "" || s.Runtime.SellID != "" {
		t.Error("fresh state must have no session ids")
	}
}

func TestExecMapJSONKeys(t *testing.T) {
	m := ExecMap{
		0: {Index: 0, EntryPrice: 100.0, Lots: 0.1},
		2: {Index: 2, EntryPrice: 98.0, Lots: 0.3},
	}

	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var asObject map[string]RowExecStats
	if err := json.Unmarshal(raw, &asObject); err != nil {
		t.Fatalf("unmarshal as string-keyed object: %v", err)
	}
	if _, ok := asObject["0"]; !ok {
		t.Errorf("expected stringified key \"0\" in %s", raw)
	}
	if _, ok := asObject["2"]; !ok {
		t.Errorf("expected stringified key \"2\" in %s", raw)
	}

	var back ExecMap
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal back into ExecMap: %v", err)
	}
	if back[2].EntryPrice != 98.0 {
		t.Errorf("round-trip entry price = %v, want 98.0", back[2].EntryPrice)
	}
}

func TestExecMapIndices(t *testing.T) {
	m := ExecMap{3: {}, 0: {}, 1: {}}
	got := m.Indices()
	want := []int{0, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("Indices() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Indices() = %v, want %v", got, want)
		}
	}
	if m.MaxIndex() != 3 {
		t.Errorf("MaxIndex() = %d, want 3", m.MaxIndex())
	}
	if (ExecMap{}).MaxIndex() != -1 {
		t.Errorf("empty MaxIndex() = %d, want -1", (ExecMap{}).MaxIndex())
	}
}

func TestAppendPriceBound(t *testing.T) {
	s := NewSystemState()
	for i := 0; i < PriceHistoryLen+25; i++ {
		s.AppendPrice(float64(i), float64(i))
	}
	if len(s.PriceHistory) != PriceHistoryLen {
		t.Fatalf("history len = %d, want %d", len(s.PriceHistory), PriceHistoryLen)
	}
	last, ok := s.LastPrice()
	if !ok || last.Mid != float64(PriceHistoryLen+24) {
		t.Errorf("LastPrice() = (%v, %v), want newest sample", last, ok)
	}
	if s.PriceHistory[0].Mid != 25 {
		t.Errorf("oldest sample = %v, want 25 (ring trimmed from the front)", s.PriceHistory[0].Mid)
	}
}

func TestSessionViewMutatesState(t *testing.T) {
	s := NewSystemState()
	sess := s.Runtime.Session(SideBuy)

	*sess.On = true
	*sess.ID = "buy_1a2b3c4d"
	*sess.StartRef = 101.5
	(*sess.ExecMap)[0] = RowExecStats{Index: 0, EntryPrice: 101.5}

	if !s.Runtime.BuyOn || s.Runtime.BuyID != "buy_1a2b3c4d" || s.Runtime.BuyStartRef != 101.5 {
		t.Errorf("session view writes did not land on runtime: %+v", s.Runtime)
	}
	if len(s.Runtime.BuyExecMap) != 1 {
		t.Errorf("exec map write did not land, got %v", s.Runtime.BuyExecMap)
	}

	opp := s.Runtime.Session(SideSell)
	if *opp.On || *opp.ID != "" {
		t.Error("sell view must be independent of buy writes")
	}
}

func TestNormalizeAfterSparseLoad(t *testing.T) {
	var s SystemState
	if err := json.Unmarshal([]byte(`{"settings":{},"runtime":{},"last_update_ts":""}`), &s); err != nil {
		t.Fatalf("unmarshal sparse doc: %v", err)
	}
	s.Normalize()

	if s.Runtime.BuyExecMap == nil || s.Runtime.SellExecMap == nil {
		t.Fatal("Normalize must allocate exec maps")
	}
	if s.Runtime.PendingActions == nil || s.PriceHistory == nil {
		t.Fatal("Normalize must allocate pending actions and price history")
	}
	if s.Runtime.PriceDirection != DirectionNeutral {
		t.Errorf("Normalize direction = %q, want neutral", s.Runtime.PriceDirection)
	}
	if s.Settings.BuyTPType != TPEquityPct {
		t.Errorf("Normalize TP type = %q, want equity_pct", s.Settings.BuyTPType)
	}
}

func TestUserSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*UserSettings)
		wantErr bool
	}{
		{"zero settings pass", func(s *UserSettings) {}, false},
		{"negative buy tp", func(s *UserSettings) { s.BuyTPValue = -1 }, true},
		{"negative sell tp", func(s *UserSettings) { s.SellTPValue = -0.01 }, true},
		{"negative buy hedge", func(s *UserSettings) { s.BuyHedgeValue = -500 }, true},
		{"negative sell hedge", func(s *UserSettings) { s.SellHedgeValue = -500 }, true},
		{"positive values pass", func(s *UserSettings) {
			s.BuyTPValue = 2.0
			s.SellHedgeValue = 300
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s UserSettings
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActionJSONShapes(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		want   string
	}{
		{"plain wait", Wait(), `{"action":"WAIT"}`},
		{"wait with error", WaitWithError("locked"), `{"action":"WAIT","error":"locked"}`},
		{"close all", CloseAll("buy_1a2b3c4d"), `{"action":"CLOSE_ALL","comment":"buy_1a2b3c4d"}`},
		{
			"buy order keeps alert false",
			Open(SideBuy, 0.1, "buy_1a2b3c4d_idx0", false),
			`{"action":"BUY","volume":0.1,"comment":"buy_1a2b3c4d_idx0","alert":false}`,
		},
		{
			"sell order with alert",
			Open(SideSell, 0.3, "sell_deadbeef_idx2", true),
			`{"action":"SELL","volume":0.3,"comment":"sell_deadbeef_idx2","alert":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.action)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(raw) != tt.want {
				t.Errorf("marshal = %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestSideHelpers(t *testing.T) {
	if SideBuy.Opposite() != SideSell || SideSell.Opposite() != SideBuy {
		t.Error("Opposite() mismatch")
	}
	if SideBuy.OrderType() != PositionTypeBuy || SideSell.OrderType() != PositionTypeSell {
		t.Error("OrderType() mismatch")
	}
	if !SideBuy.Valid() || !SideSell.Valid() || Side("hold").Valid() {
		t.Error("Valid() mismatch")
	}
}

func TestTickSessionHelpers(t *testing.T) {
	tick := &TickData{
		Ask: 100.2,
		Bid: 99.8,
		Positions: []Position{
			{Ticket: 1, Comment: "buy_1a2b3c4d_idx0", Profit: -10},
			{Ticket: 2, Comment: "buy_1a2b3c4d_idx1", Profit: -20},
			{Ticket: 3, Comment: "sell_deadbeef_idx0", Profit: 5},
			{Ticket: 4, Comment: "manual entry", Profit: 99},
		},
	}

	if got := tick.Mid(); got != 100.0 {
		t.Errorf("Mid() = %v, want 100.0", got)
	}
	if got := tick.CountSession("buy_1a2b3c4d"); got != 2 {
		t.Errorf("CountSession(buy) = %d, want 2", got)
	}
	if got := tick.CountSession(""); got != 0 {
		t.Errorf("CountSession(empty) = %d, want 0", got)
	}
	if got := tick.SessionPositions("sell_deadbeef"); len(got) != 1 || got[0].Ticket != 3 {
		t.Errorf("SessionPositions(sell) = %v, want ticket 3 only", got)
	}
	if got := tick.SessionPositions("buy_ffffffff"); got != nil {
		t.Errorf("SessionPositions(unknown) = %v, want nil", got)
	}
}
