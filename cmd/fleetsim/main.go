// Command fleetsim runs the decentralized pick-and-place fleet simulation.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/depot-fleet/internal/api"
	"github.com/talgya/depot-fleet/internal/config"
	"github.com/talgya/depot-fleet/internal/decision"
	"github.com/talgya/depot-fleet/internal/engine"
	"github.com/talgya/depot-fleet/internal/persistence"
	"github.com/talgya/depot-fleet/internal/protocol"
	"github.com/talgya/depot-fleet/internal/world"
)

func main() {
	configPath := flag.String("config", "fleet.yaml", "path to YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("depot-fleet — decentralized pick-and-place simulation")

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"seed", cfg.Seed,
		"agents", cfg.World.Agents,
		"items", cfg.World.Items,
		"claim_policy", cfg.Claim.Policy,
	)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	runID, err := db.CreateRun(cfg.Seed, cfg)
	if err != nil {
		slog.Error("failed to register run", "error", err)
		os.Exit(1)
	}
	if err := db.SaveMeta("last_run", runID); err != nil {
		slog.Warn("failed to save run meta", "error", err)
	}
	slog.Info("run registered", "run", runID)

	// ── Floor (deterministic from seed) ───────────────────────────────
	slog.Info("generating depot floor...")
	layout := world.GenerateLayout(cfg.World, cfg.Seed)
	floor := world.NewFloor(layout, cfg.World,
		cfg.Lifecycle.PickupThreshold, cfg.Lifecycle.DropThreshold, cfg.Seed)
	slog.Info("floor ready",
		"agents", len(layout.Spawns),
		"items", len(layout.Items),
		"zones", len(layout.Zones),
		"obstacles", len(layout.Obstacles),
	)

	// ── Decision core ────────────────────────────────────────────────
	decider := decision.New(cfg.ClaimConfig(), cfg.AvoidConfig(), cfg.LifecycleConfig())

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Speed = cfg.Engine.Speed
	eng.Interval = time.Duration(cfg.Engine.TickMillis) * time.Millisecond
	eng.FlushEvery = cfg.Engine.FlushEvery
	eng.CheckpointEvery = cfg.Engine.CheckpointEvery

	hub := api.NewHub()

	// Latest decision batch, kept for the periodic flush.
	var lastDecisions map[string]protocol.Decision
	var lastDecisionTick uint64

	eng.OnTick = func(tick uint64) {
		perceptions := floor.BuildPerceptions()
		results := decider.DecideAll(perceptions)
		floor.Apply(tick, results)

		batch := make(map[string]protocol.Decision, len(results))
		for _, r := range results {
			batch[r.AgentID] = r.Decision
		}
		lastDecisions = batch
		lastDecisionTick = tick
		hub.Broadcast(tick, batch)
	}
	eng.OnFlush = func(tick uint64) {
		if err := db.SaveEvents(runID, floor.DrainEvents()); err != nil {
			slog.Error("event flush failed", "error", err)
		}
		if err := db.SaveDecisions(runID, lastDecisionTick, lastDecisions); err != nil {
			slog.Error("decision flush failed", "error", err)
		}
	}
	eng.OnCheckpoint = func(tick uint64) {
		if err := db.SaveCheckpoint(runID, floor.Snapshot()); err != nil {
			slog.Error("checkpoint failed", "error", err)
		}
		stats := floor.Stats()
		slog.Info("checkpoint",
			"tick", tick,
			"delivered", stats.Delivered,
			"items", stats.ItemsRemaining,
			"carrying", stats.AgentsCarrying,
		)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := cfg.API.AdminKey
	if env := os.Getenv("FLEETSIM_ADMIN_KEY"); env != "" {
		adminKey = env
	}
	if adminKey == "" {
		slog.Warn("no admin key set — admin POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Floor:    floor,
		Eng:      eng,
		DB:       db,
		Hub:      hub,
		Cfg:      cfg,
		RunID:    runID,
		Port:     cfg.API.Port,
		AdminKey: adminKey,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nFleet online: %d agents, %d items, %d delivery zones.\n",
		len(layout.Spawns), len(layout.Items), len(layout.Zones))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	// Final flush and checkpoint on shutdown.
	slog.Info("final save...")
	if err := db.SaveEvents(runID, floor.DrainEvents()); err != nil {
		slog.Error("final event flush failed", "error", err)
	}
	if err := db.SaveCheckpoint(runID, floor.Snapshot()); err != nil {
		slog.Error("final checkpoint failed", "error", err)
	}
	if err := db.SaveMeta("last_tick", strconv.FormatUint(eng.Tick, 10)); err != nil {
		slog.Error("final meta save failed", "error", err)
	}

	fmt.Println("Simulation stopped. Run telemetry saved.")
}
