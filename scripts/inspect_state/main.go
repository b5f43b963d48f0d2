// inspect_state - audit the engine's persisted snapshot
// Prints both vector sessions, queued commands and anything that looks
// inconsistent, without touching the file. Run it next to a live engine to
// see what the decision core believes the world looks like.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/eddiefleurent/elastic_grid/internal/models"
	"github.com/eddiefleurent/elastic_grid/internal/storage"
)

func main() {
	var (
		statePath  = flag.String("state", "state.json", "Path to the engine state file")
		jsonOutput = flag.Bool("json", false, "Output the raw snapshot as JSON")
		verbose    = flag.Bool("v", false, "Verbose output, includes executed layers")
	)
	flag.Parse()

	if _, err := os.Stat(*statePath); os.IsNotExist(err) {
		log.Fatalf("No state file at %s (engine never started?)", *statePath)
	}

	store, err := storage.NewJSONStorage(*statePath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	st, err := store.Load()
	if err != nil {
		log.Fatalf("Failed to load state: %v", err)
	}

	if *jsonOutput {
		out, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal state: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Printf("State file: %s\n", *statePath)
	fmt.Printf("Last update: %s\n", st.LastUpdateTs)
	fmt.Printf("Mid price: %.2f (%s)\n", st.Runtime.CurrentPrice, st.Runtime.PriceDirection)
	fmt.Println()

	printSessions(st)
	if *verbose {
		printExecuted(st)
	}

	fmt.Println("=== ANALYSIS ===")
	issues := analyzeState(st)
	if len(issues) > 0 {
		fmt.Println("POTENTIAL ISSUES FOUND:")
		for i, issue := range issues {
			fmt.Printf("  %d. %s\n", i+1, issue)
		}
	} else {
		fmt.Println("No obvious issues detected.")
	}
}

func printSessions(st *models.SystemState) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("VECTOR SESSIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Side", "On", "Session", "Anchor", "Layers", "Volume", "Profit", "Closing", "Hedged"})
	for _, side := range []models.Side{models.SideBuy, models.SideSell} {
		sess := st.Runtime.Session(side)
		var volume, profit float64
		if top := (*sess.ExecMap).MaxIndex(); top >= 0 {
			rec := (*sess.ExecMap)[top]
			volume = rec.CumulativeLots
			profit = rec.CumulativeProfit
		}
		t.AppendRow(table.Row{
			side, *sess.On, *sess.ID, *sess.StartRef,
			len(*sess.ExecMap), volume, fmt.Sprintf("%.2f", profit),
			*sess.IsClosing, *sess.HedgeTriggered,
		})
	}
	t.Render()
	fmt.Println()
}

func printExecuted(st *models.SystemState) {
	if len(st.Runtime.BuyExecMap) == 0 && len(st.Runtime.SellExecMap) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("EXECUTED LAYERS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Side", "Idx", "Entry", "Lots", "Cum Lots", "Cum Profit", "At"})
	for _, side := range []models.Side{models.SideBuy, models.SideSell} {
		exec := *st.Runtime.Session(side).ExecMap
		for _, idx := range exec.Indices() {
			rec := exec[idx]
			t.AppendRow(table.Row{
				side, rec.Index, rec.EntryPrice, rec.Lots,
				rec.CumulativeLots, fmt.Sprintf("%.2f", rec.CumulativeProfit), rec.Timestamp,
			})
		}
	}
	t.Render()
	fmt.Println()
}

// analyzeState flags snapshot combinations that usually mean an operator
// needs to act, or at least to know.
func analyzeState(st *models.SystemState) []string {
	var issues []string
	rt := &st.Runtime

	if rt.ErrorStatus != "" {
		issues = append(issues, fmt.Sprintf("error latch set (%q) - ticks are blocked until an emergency close clears it", rt.ErrorStatus))
	}
	if n := len(rt.PendingActions); n > 0 {
		issues = append(issues, fmt.Sprintf("%d queued close command(s) waiting for the next tick: %v", n, rt.PendingActions))
	}

	for _, side := range []models.Side{models.SideBuy, models.SideSell} {
		sess := rt.Session(side)
		rows := *st.Settings.Rows(side)

		if *sess.On && len(rows) == 0 {
			issues = append(issues, fmt.Sprintf("%s side is on with an empty layer table and can never enter", side))
		}
		if *sess.ID != "" && !*sess.On && !*sess.IsClosing {
			issues = append(issues, fmt.Sprintf("%s side is off but session %s is still open and not closing", side, *sess.ID))
		}
		if *sess.IsClosing {
			issues = append(issues, fmt.Sprintf("%s side is mid-close, confirmation pending", side))
		}
		if *sess.WaitingLimit && *sess.StartRef == 0 {
			issues = append(issues, fmt.Sprintf("%s side is waiting on a limit anchor of 0", side))
		}
		if *sess.HedgeTriggered && !*rt.Session(side.Opposite()).On {
			issues = append(issues, fmt.Sprintf("%s hedge latch is set but the %s side is off", side, side.Opposite()))
		}
		if top := (*sess.ExecMap).MaxIndex(); top >= len(rows) && top >= 0 {
			issues = append(issues, fmt.Sprintf("%s side has executed layer %d but only %d row(s) are configured", side, top, len(rows)))
		}
	}

	return issues
}
