// reset_state - reset the engine's state file to a clean snapshot
// Backs up the current file, then writes a fresh default state so the next
// start mints new sessions. With -keep-settings the operator's layer tables
// and targets survive and only the runtime session state is cleared.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/eddiefleurent/elastic_grid/internal/models"
	"github.com/eddiefleurent/elastic_grid/internal/storage"
)

func main() {
	var (
		statePath    = flag.String("state", "state.json", "Path to the engine state file")
		keepSettings = flag.Bool("keep-settings", false, "Preserve operator settings, reset only runtime state")
		noBackup     = flag.Bool("no-backup", false, "Skip the timestamped backup")
	)
	flag.Parse()

	store, err := storage.NewJSONStorage(*statePath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	old, err := store.Load()
	if err != nil {
		log.Fatalf("Failed to load current state: %v", err)
	}

	fmt.Printf("🔍 Current state at %s:\n", *statePath)
	fmt.Printf("  - buy: on=%t session=%q layers=%d\n", old.Runtime.BuyOn, old.Runtime.BuyID, len(old.Runtime.BuyExecMap))
	fmt.Printf("  - sell: on=%t session=%q layers=%d\n", old.Runtime.SellOn, old.Runtime.SellID, len(old.Runtime.SellExecMap))
	if len(old.Runtime.PendingActions) > 0 {
		fmt.Printf("  - pending commands: %v\n", old.Runtime.PendingActions)
	}
	if old.Runtime.ErrorStatus != "" {
		fmt.Printf("  - error latch: %q\n", old.Runtime.ErrorStatus)
	}

	if !*noBackup {
		if data, err := os.ReadFile(*statePath); err == nil {
			backup := fmt.Sprintf("%s.bak-%s", *statePath, time.Now().UTC().Format("20060102T150405"))
			if err := os.WriteFile(backup, data, 0644); err != nil {
				log.Fatalf("Failed to write backup: %v", err)
			}
			fmt.Printf("\n📄 Backup written to %s\n", backup)
		} else if !os.IsNotExist(err) {
			log.Fatalf("Failed to read state for backup: %v", err)
		}
	}

	fresh := models.NewSystemState()
	if *keepSettings {
		fresh.Settings = old.Settings
	}

	if err := store.Save(fresh); err != nil {
		log.Fatalf("Failed to write clean state: %v", err)
	}

	fmt.Printf("✅ Clean state written to %s\n", *statePath)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Make sure no terminal is still holding grid positions\n")
	fmt.Printf("  2. Restart the engine to pick up the clean snapshot\n")
	fmt.Printf("  3. Re-arm the sides from the control panel\n")
}
