package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/elastic_grid/internal/config"
	"github.com/eddiefleurent/elastic_grid/internal/engine"
	"github.com/eddiefleurent/elastic_grid/internal/journal"
	"github.com/eddiefleurent/elastic_grid/internal/models"
	"github.com/eddiefleurent/elastic_grid/internal/notify"
	"github.com/eddiefleurent/elastic_grid/internal/server"
	"github.com/eddiefleurent/elastic_grid/internal/storage"
)

func main() {
	var configPath string
	var envPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&envPath, "env", ".env", "Path to environment file")
	flag.Parse()

	if err := godotenv.Load(envPath); err != nil {
		log.Printf("[WARN] could not load %s: %v", envPath, err)
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create loggers: the engine core logs in the bracketed stdlib style,
	// the HTTP layer through logrus.
	logger := log.New(os.Stdout, "[ENGINE] ", log.LstdFlags|log.Lshortfile)
	httpLogger := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Environment.LogLevel); err == nil {
		httpLogger.SetLevel(lvl)
	}

	// State persistence behind the save circuit breaker.
	jsonStore, err := storage.NewJSONStorage(cfg.Storage.StateFile)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	store := storage.NewCircuitBreakerStorage(jsonStore)

	// Closed-session journal, disabled when no path is configured.
	var jrnl journal.Journal = journal.Nop{}
	if cfg.JournalEnabled() {
		sqlite, err := journal.NewSQLite(cfg.Journal.Path)
		if err != nil {
			log.Fatalf("Failed to open session journal: %v", err)
		}
		jrnl = sqlite
		logger.Printf("session journal at %s", cfg.Journal.Path)
	}
	defer jrnl.Close()

	// Alert webhook, disabled when no URL is configured.
	var notifier notify.Notifier = notify.Nop{}
	if cfg.NotifyEnabled() {
		notifier = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.GetNotifyTimeout(), logger)
		logger.Printf("alert webhook enabled")
	}

	hub := server.NewHub(httpLogger)

	eng, err := engine.New(store, logger, engine.Config{
		Journal:  jrnl,
		Notifier: notifier,
		OnUpdate: hub.BroadcastState,
	})
	if err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	printStartupTables(eng.Snapshot())

	srv := server.NewServer(server.Config{
		Listen:         cfg.Server.Listen,
		RequestTimeout: cfg.GetRequestTimeout(),
	}, eng, jrnl, hub, httpLogger)

	// Run the hub and the HTTP server until a signal arrives, then drain.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Println("Shutdown signal received, draining...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownGrace())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Engine server error: %v", err)
	}
	logger.Println("Engine stopped cleanly")
}

// printStartupTables renders the restored configuration so a restart is
// auditable from the console scrollback alone.
func printStartupTables(st *models.SystemState) {
	summary := table.NewWriter()
	summary.SetOutputMirror(os.Stdout)
	summary.SetTitle("ELASTIC GRID ENGINE v" + server.Version)
	summary.SetStyle(table.StyleRounded)
	summary.AppendHeader(table.Row{"Side", "On", "Session", "Layers", "TP", "Hedge $", "Limit"})
	summary.AppendRows([]table.Row{
		{
			"BUY", st.Runtime.BuyOn, st.Runtime.BuyID, len(st.Settings.RowsBuy),
			fmt.Sprintf("%s %.2f", st.Settings.BuyTPType, st.Settings.BuyTPValue),
			st.Settings.BuyHedgeValue, st.Settings.BuyLimitPrice,
		},
		{
			"SELL", st.Runtime.SellOn, st.Runtime.SellID, len(st.Settings.RowsSell),
			fmt.Sprintf("%s %.2f", st.Settings.SellTPType, st.Settings.SellTPValue),
			st.Settings.SellHedgeValue, st.Settings.SellLimitPrice,
		},
	})
	summary.Render()

	if len(st.Settings.RowsBuy) == 0 && len(st.Settings.RowsSell) == 0 {
		fmt.Println()
		return
	}

	layers := table.NewWriter()
	layers.SetOutputMirror(os.Stdout)
	layers.SetTitle("LAYER TABLES")
	layers.SetStyle(table.StyleRounded)
	layers.AppendHeader(table.Row{"Side", "Idx", "Gap $", "Lots", "Alert"})
	for _, r := range st.Settings.RowsBuy {
		layers.AppendRow(table.Row{"BUY", r.Index, r.Dollar, r.Lots, r.Alert})
	}
	for _, r := range st.Settings.RowsSell {
		layers.AppendRow(table.Row{"SELL", r.Index, r.Dollar, r.Lots, r.Alert})
	}
	layers.Render()
	fmt.Println()
}
