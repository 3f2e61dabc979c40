package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sol-analytics-sync/pkg/api"
	"github.com/sol-analytics-sync/pkg/config"
	"github.com/sol-analytics-sync/pkg/dashboard"
	"github.com/sol-analytics-sync/pkg/db"
	"github.com/sol-analytics-sync/pkg/ingest"
	"github.com/sol-analytics-sync/pkg/syncer"
)

const lastSyncKey = "last-sync"

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	log.Info().Msg("📊 sol-analytics sync service starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	store, err := db.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	defer store.Close()

	client := api.NewClient(cfg.APIBaseURL, cfg.APIKey, cfg.APITimeout)
	pipeline := ingest.NewPipeline(client, store, cfg.DataDir, cfg.Protocols)

	// Re-import whatever CSV copies are already on disk so the API has
	// data before the first sync of the day.
	if files, rows := pipeline.Reimport(); files > 0 {
		log.Info().Int("files", files).Int("rows", rows).Msg("📦 re-imported local csv copies")
	}

	loc := cfg.ReferenceZone()
	rule := syncer.Rule{Loc: loc, CutoffHour: cfg.CutoffHour}
	controller := syncer.NewController(rule, pipeline, store.SyncSlot(lastSyncKey), cfg.TickInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down...")
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return controller.Run(ctx) })

	dash := dashboard.New(store, controller, cfg.DashboardPort)
	g.Go(func() error { return dash.Run(ctx) })

	// Auto-sync right at the daily cutoff in the reference zone. The
	// controller's own guard makes a redundant fire harmless.
	if cfg.AutoSync {
		sched := cron.New(cron.WithLocation(loc))
		spec := fmt.Sprintf("0 %d * * *", cfg.CutoffHour)
		if _, err := sched.AddFunc(spec, func() {
			log.Info().Msg("⏰ cutoff reached, triggering scheduled sync")
			controller.TriggerSync(ctx)
		}); err != nil {
			log.Fatal().Err(err).Str("spec", spec).Msg("cron schedule failed")
		}
		sched.Start()
		defer sched.Stop()
	}

	printSummary(cfg, store, controller)

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("error")
	}
	log.Info().Msg("goodbye 👋")
}

func printSummary(cfg *config.Config, store *db.Store, controller *syncer.Controller) {
	stats, _ := store.GetStats()
	state := controller.Snapshot()

	fmt.Println("\n" + strings.Repeat("═", 60))
	fmt.Println("  📊 SOL-ANALYTICS SYNC - RUNNING")
	fmt.Println(strings.Repeat("═", 60))
	fmt.Printf("  Backend:    %s\n", cfg.APIBaseURL)
	fmt.Printf("  Protocols:  %d tracked\n", len(cfg.Protocols))
	fmt.Printf("  Cutoff:     %02d:00 %s\n", cfg.CutoffHour, cfg.TimezoneName)
	fmt.Printf("  Dashboard:  http://localhost:%d\n", cfg.DashboardPort)
	autoSync := "❌ disabled"
	if cfg.AutoSync {
		autoSync = "✅ daily at cutoff"
	}
	fmt.Printf("  Auto-sync:  %s\n", autoSync)
	if state.CanSync {
		fmt.Printf("  Sync:       available now\n")
	} else if state.TimeUntilNext != "" {
		fmt.Printf("  Sync:       next in %s\n", state.TimeUntilNext)
	}
	if stats != nil {
		fmt.Printf("  DB: %d stat rows, %d protocols, %d sync runs\n",
			stats["protocol_stats"], stats["protocols"], stats["sync_runs"])
	}
	fmt.Println(strings.Repeat("═", 60) + "\n")
}
