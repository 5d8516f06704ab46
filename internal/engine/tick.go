// Package engine provides the fixed-rate simulation clock and the
// Simulation aggregate that owns the grid, vehicle, and ledgers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TickSchedule defines when periodic callbacks run relative to the tick counter.
const (
	DefaultInterval  = 50 * time.Millisecond // 20 ticks per second
	TicksPerSecond   = 20
	TicksPerReport   = 1200 // 1 minute of play
	TicksPerAutosave = 6000 // 5 minutes of play
)

// Engine drives the simulation forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Interval time.Duration // Base tick interval

	// Callbacks for each tick layer, set during setup.
	OnTick     func(tick uint64) // Every tick
	OnReport   func(tick uint64) // Every TicksPerReport ticks
	OnAutosave func(tick uint64) // Every TicksPerAutosave ticks

	mu      sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running atomic.Bool
	stop    chan struct{}
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval: DefaultInterval,
		speed:    1.0,
		stop:     make(chan struct{}, 1),
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero pauses the clock.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = max(0, speed)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Run starts the simulation loop. Blocks until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed())

	for {
		speed := e.Speed()
		wait := 100 * time.Millisecond // Paused, check again shortly
		if speed > 0 {
			start := time.Now()
			e.Step()
			wait = max(0, time.Duration(float64(e.Interval)/speed)-time.Since(start))
		}

		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick, "reason", ctx.Err())
			return
		case <-e.stop:
			slog.Info("simulation engine stopped", "tick", e.Tick)
			return
		case <-time.After(wait):
		}
	}
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	select {
	case e.stop <- struct{}{}:
	default:
	}
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.Tick%TicksPerReport == 0 && e.OnReport != nil {
		e.OnReport(e.Tick)
	}
	if e.Tick%TicksPerAutosave == 0 && e.OnAutosave != nil {
		e.OnAutosave(e.Tick)
	}
}

// SimTime returns a human-readable play time for a tick count.
func SimTime(tick uint64) string {
	seconds := tick / TicksPerSecond
	return fmt.Sprintf("%dh%02dm%02ds", seconds/3600, seconds/60%60, seconds%60)
}
