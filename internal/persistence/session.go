package persistence

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/digsim/internal/engine"
	"github.com/talgya/digsim/internal/world"
)

// Flusher drains reports queued for the recorder.
type Flusher interface {
	Flush()
}

// Session ties a live simulation to its persisted run. Ticks, saves and
// restarts go through it so a restart never interleaves with a tick.
type Session struct {
	DB       *DB
	Recorder *Recorder
	Reports  Flusher   // Optional queue in front of Recorder
	Log      *EventLog // Optional

	tickMu sync.Mutex
	mu     sync.Mutex
	runID  string
}

// NewSession starts a session on runID.
func NewSession(db *DB, runID string) *Session {
	return &Session{DB: db, Recorder: db.NewRecorder(runID), runID: runID}
}

// RunID returns the current run.
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Tick runs fn with restarts held off.
func (s *Session) Tick(fn func()) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	fn()
}

// Save performs a full save of the current run.
func (s *Session) Save(sim *engine.Simulation) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.DB.SaveRunState(s.RunID(), sim)
}

// Restart closes out the current run and starts a new one. A nil config
// regenerates the current world. Records queued before the call stay with
// the old run. The world is reset only once everything points at the new
// run.
func (s *Session) Restart(sim *engine.Simulation, cfg *world.GenConfig) error {
	next := sim.Tuning().World
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			return err
		}
		next = *cfg
	}

	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	old := s.RunID()
	if err := s.DB.SaveRunState(old, sim); err != nil {
		slog.Error("save before restart failed", "run_id", old, "error", err)
	}
	if !sim.GameOver() {
		if err := s.DB.SaveRun(old, sim.Profile(), OutcomeAbandoned); err != nil {
			slog.Error("failed to close run", "run_id", old, "error", err)
		}
	}

	id, err := s.DB.NewRun(next)
	if err != nil {
		return fmt.Errorf("new run: %w", err)
	}
	if s.Reports != nil {
		s.Reports.Flush()
	}
	s.Recorder.SetRun(id)
	if s.Log != nil {
		if err := s.Log.SetRun(id); err != nil {
			slog.Warn("event log rotation failed", "error", err)
		}
	}
	s.mu.Lock()
	s.runID = id
	s.mu.Unlock()

	if cfg != nil {
		if err := sim.ResetWith(next); err != nil {
			return err
		}
	} else {
		sim.Reset()
	}
	slog.Info("run restarted", "old_run_id", old, "run_id", id, "seed", next.Seed)
	return nil
}
