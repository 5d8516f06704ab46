package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestEngine_StepLayers(t *testing.T) {
	e := NewEngine()
	var ticks, reports, saves int
	e.OnTick = func(uint64) { ticks++ }
	e.OnReport = func(uint64) { reports++ }
	e.OnAutosave = func(uint64) { saves++ }

	for i := 0; i < TicksPerAutosave; i++ {
		e.Step()
	}
	if ticks != TicksPerAutosave {
		t.Fatalf("ticks = %d", ticks)
	}
	if reports != TicksPerAutosave/TicksPerReport {
		t.Fatalf("reports = %d", reports)
	}
	if saves != 1 {
		t.Fatalf("saves = %d", saves)
	}
}

func TestEngine_RunUntilCancelled(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond
	var ticks atomic.Int64
	e.OnTick = func(uint64) { ticks.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 5 {
		select {
		case <-deadline:
			t.Fatal("engine did not tick")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if e.Running() {
		t.Fatal("Running after return")
	}
}

func TestEngine_PauseAndStop(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond
	e.SetSpeed(0)
	var ticks atomic.Int64
	e.OnTick = func(uint64) { ticks.Add(1) }

	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if n := ticks.Load(); n != 0 {
		t.Fatalf("paused engine ticked %d times", n)
	}
	e.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	e.SetSpeed(-3)
	if e.Speed() != 0 {
		t.Fatalf("negative speed = %v, want 0", e.Speed())
	}
}

func TestSimTime(t *testing.T) {
	tests := []struct {
		tick uint64
		want string
	}{
		{0, "0h00m00s"},
		{TicksPerSecond * 59, "0h00m59s"},
		{TicksPerSecond * 3661, "1h01m01s"},
	}
	for _, tt := range tests {
		if got := SimTime(tt.tick); got != tt.want {
			t.Errorf("SimTime(%d) = %q, want %q", tt.tick, got, tt.want)
		}
	}
}
