// Command digsim runs the mining simulation with its HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/digsim/internal/api"
	"github.com/talgya/digsim/internal/autopilot"
	"github.com/talgya/digsim/internal/engine"
	"github.com/talgya/digsim/internal/persistence"
	"github.com/talgya/digsim/internal/progress"
	"github.com/talgya/digsim/internal/tuning"
	"github.com/talgya/digsim/internal/world"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("digsim starting")

	dbPath := envOr("DIGSIM_DB", "data/digsim.db")
	logDir := envOr("DIGSIM_EVENTLOG_DIR", "data/events")
	apiPort := envInt("DIGSIM_PORT", 8080)

	// ── Tuning ────────────────────────────────────────────────────────
	tu := tuning.Default()
	if path := os.Getenv("DIGSIM_TUNING"); path != "" {
		loaded, err := tuning.Load(path)
		if err != nil {
			slog.Error("failed to load tuning", "path", path, "error", err)
			os.Exit(1)
		}
		tu = loaded
		slog.Info("tuning loaded", "path", path)
	}
	if seed := os.Getenv("DIGSIM_SEED"); seed != "" {
		n, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			slog.Error("invalid DIGSIM_SEED", "value", seed, "error", err)
			os.Exit(1)
		}
		tu.World.Seed = n
	}

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(dbPath), 0o755)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── Resume or start a run ─────────────────────────────────────────
	var resume *engine.Profile
	var startTick uint64
	runID, err := db.CurrentRun()
	switch {
	case err == nil:
		rec, recErr := db.Run(runID)
		if recErr == nil && rec.Outcome == persistence.OutcomeActive {
			p, loadErr := db.LoadRun(runID)
			if loadErr != nil {
				slog.Error("failed to load run", "run_id", runID, "error", loadErr)
				os.Exit(1)
			}
			resume = &p
			if tickStr, err := db.GetMeta("last_tick"); err == nil {
				if t, err := strconv.ParseUint(tickStr, 10, 64); err == nil {
					startTick = t
				}
			}
		} else {
			slog.Info("last run is over, starting a new one", "run_id", runID, "outcome", rec.Outcome)
			runID = ""
		}
	case errors.Is(err, persistence.ErrNoRun):
		runID = ""
	default:
		slog.Error("failed to read current run", "error", err)
		os.Exit(1)
	}
	if runID == "" {
		if runID, err = db.NewRun(tu.World); err != nil {
			slog.Error("failed to create run", "error", err)
			os.Exit(1)
		}
		slog.Info("new run", "run_id", runID, "seed", tu.World.Seed)
	}

	// ── Progress ──────────────────────────────────────────────────────
	local := progress.NewLocal()
	session := persistence.NewSession(db, runID)
	async := progress.NewAsync(session.Recorder, 256)
	session.Reports = async

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.NewSimulation(tu, progress.Multi{local, async})
	if err != nil {
		slog.Error("invalid tuning", "error", err)
		os.Exit(1)
	}
	counts := sim.TileCounts()
	for _, k := range append([]world.TileKind{world.TileRock, world.TileGas, world.TileLava}, world.OreKinds...) {
		slog.Info("tiles", "kind", k, "count", counts[k])
	}
	if resume != nil {
		if err := sim.Restore(*resume); err != nil {
			slog.Error("failed to restore run", "run_id", runID, "error", err)
			os.Exit(1)
		}
		slog.Info("run restored",
			"run_id", runID,
			"cash", humanize.Comma(int64(resume.Cash)),
			"max_depth", resume.MaxDepth,
			"sim_time", engine.SimTime(startTick),
		)
	}

	eventLog := persistence.NewEventLog(logDir, runID)
	defer eventLog.Close()
	db.Archive = eventLog
	session.Log = eventLog

	// Fires from inside a session tick, so it saves through the DB directly.
	sim.OnGameOver = func() {
		slog.Warn("run destroyed", "run_id", session.RunID())
		if err := db.SaveRunState(session.RunID(), sim); err != nil {
			slog.Error("save after game over failed", "error", err)
		}
	}
	sim.OnReachSurface = func() {
		slog.Debug("vehicle at surface", "run_id", session.RunID())
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Tick = startTick

	var pilot *autopilot.Pilot
	if os.Getenv("DIGSIM_AUTOPILOT") != "" {
		pilot = autopilot.New(sim.Tuning())
		slog.Info("autopilot enabled")
	}

	eng.OnTick = func(tick uint64) {
		session.Tick(func() {
			if pilot != nil {
				pilot.Step(sim)
			}
			sim.Step()
		})
	}
	eng.OnReport = func(tick uint64) {
		snap := sim.Snapshot()
		slog.Info("status",
			"sim_time", engine.SimTime(tick),
			"depth", snap.Depth,
			"max_depth", snap.MaxDepth,
			"fuel", fmt.Sprintf("%.1f/%.0f", snap.Fuel, snap.FuelCapacity),
			"hull", fmt.Sprintf("%.1f/%.0f", snap.Hull, snap.HullMax),
			"cash", humanize.Comma(int64(snap.Cash)),
			"level", local.Level(),
		)
	}
	eng.OnAutosave = func(tick uint64) {
		if err := session.Save(sim); err != nil {
			slog.Error("autosave failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("DIGSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("DIGSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Sim:      sim,
		Eng:      eng,
		DB:       db,
		Progress: local,
		Port:     apiPort,
		AdminKey: adminKey,
		RunID:    session.RunID,
		Restart:  func(cfg *world.GenConfig) error { return session.Restart(sim, cfg) },
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	if startTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", startTick, engine.SimTime(startTick))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	if err := session.Save(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}
	async.Close()

	fmt.Println("Simulation stopped. Run saved.")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid integer", "key", key, "value", v)
		return fallback
	}
	return n
}
