package persistence

import (
	"testing"

	"github.com/talgya/digsim/internal/engine"
	"github.com/talgya/digsim/internal/progress"
	"github.com/talgya/digsim/internal/tuning"
	"github.com/talgya/digsim/internal/world"
)

func TestSession_RestartKeepsRecordsWithTheirRun(t *testing.T) {
	db := openTestDB(t)
	tu := tuning.Default()
	tu.World = world.SmallTestConfig()
	old, err := db.NewRun(tu.World)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	s := NewSession(db, old)
	a := progress.NewAsync(s.Recorder, 16)
	defer a.Close()
	s.Reports = a

	sim, err := engine.NewSimulation(tu, a)
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	s.Tick(func() { sim.Step() })

	// Queued before the restart, so it belongs to the old run.
	a.DepthReached(5)
	if err := s.Restart(sim, nil); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	a.DepthReached(2)
	a.Flush()

	if s.RunID() == old {
		t.Fatal("run id unchanged after restart")
	}
	if cur, err := db.CurrentRun(); err != nil || cur != s.RunID() {
		t.Fatalf("CurrentRun = %q, %v; want %q", cur, err, s.RunID())
	}
	if got, err := db.Totals(old); err != nil || got.MaxDepth != 5 {
		t.Fatalf("old totals = %+v, %v; want max depth 5", got, err)
	}
	if got, err := db.Totals(s.RunID()); err != nil || got.MaxDepth != 2 {
		t.Fatalf("new totals = %+v, %v; want max depth 2", got, err)
	}
	rec, err := db.Run(old)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Outcome != OutcomeAbandoned {
		t.Fatalf("old outcome = %q, want %q", rec.Outcome, OutcomeAbandoned)
	}
	if sim.Tick() != 0 {
		t.Fatalf("tick after restart = %d", sim.Tick())
	}
}

func TestSession_RestartRejectsBadConfig(t *testing.T) {
	db := openTestDB(t)
	id, err := db.NewRun(world.SmallTestConfig())
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	s := NewSession(db, id)
	tu := tuning.Default()
	tu.World = world.SmallTestConfig()
	sim, err := engine.NewSimulation(tu, nil)
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}

	if err := s.Restart(sim, &world.GenConfig{Width: 0, Height: 0}); err == nil {
		t.Fatal("Restart accepted an empty world")
	}
	if s.RunID() != id {
		t.Fatalf("run id = %q, want %q", s.RunID(), id)
	}
}
