package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/digsim/internal/economy"
	"github.com/talgya/digsim/internal/ledger"
	"github.com/talgya/digsim/internal/progress"
	"github.com/talgya/digsim/internal/tuning"
	"github.com/talgya/digsim/internal/vehicle"
	"github.com/talgya/digsim/internal/world"
)

// depthMilestone is how often new maximum depths are logged as events.
const depthMilestone = 10

// Simulation holds the complete run state and wires the systems together.
// A single mutex serialises ticks, input, shop calls, and resets; readers
// take snapshots between ticks.
type Simulation struct {
	// Edge callbacks. Set before the clock starts. They run after the
	// simulation lock is released, so they may call back in.
	OnGameOver     func()
	OnReachSurface func()

	mu     sync.RWMutex
	tuning tuning.Tuning
	gen    world.GenerateFunc
	sink   progress.Sink

	grid    *world.Grid
	fuel    *ledger.Fuel
	hull    *ledger.Hull
	econ    *economy.Ledger
	equip   *vehicle.Equipment
	vehicle *vehicle.Vehicle
	items   map[ItemKind]int

	tick      uint64 // Steps since the last reset
	atSurface bool
	gameOver  bool
	dry       bool // Last step was refused for lack of fuel

	events  []Event
	emitted uint64 // Total events ever emitted
	drained uint64 // Value of emitted at the last drain
	subs    map[int]chan Event
	nextSub int
}

// NewSimulation builds a run from a balancing table. A nil sink discards
// progression reports.
func NewSimulation(t tuning.Tuning, sink progress.Sink) (*Simulation, error) {
	return NewSimulationWith(t, sink, world.Generate)
}

// NewSimulationWith builds a run with a custom terrain generator.
func NewSimulationWith(t tuning.Tuning, sink progress.Sink, gen world.GenerateFunc) (*Simulation, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = progress.Nop{}
	}
	s := &Simulation{
		tuning: t,
		gen:    gen,
		sink:   sink,
		subs:   make(map[int]chan Event),
	}
	s.build()
	slog.Info("simulation created",
		"seed", t.World.Seed, "width", t.World.Width, "height", t.World.Height,
		"cash", humanize.Comma(int64(t.StartCash)))
	return s, nil
}

// build creates the grid, ledgers, and vehicle from the current tuning.
// Callers hold s.mu or own s exclusively.
func (s *Simulation) build() {
	t := s.tuning
	s.grid = world.NewGridWith(t.World, s.gen)
	s.fuel = ledger.NewFuel(ledger.NewTrack("fuel tank", t.Tracks.Fuel))
	s.hull = ledger.NewHull(ledger.NewTrack("hull", t.Tracks.Hull))
	s.econ = economy.NewLedger(t.StartCash, ledger.NewTrack("cargo hold", t.Tracks.Cargo), t.Prices(), s.sink)
	s.equip = vehicle.NewEquipment(t.Tracks.Drill, t.Tracks.Engine, t.Tracks.Cooling)
	s.vehicle = vehicle.New(s.grid, s.fuel, s.hull, s.econ, s.equip, rulesFrom(t))
	s.items = make(map[ItemKind]int)
	s.restart()
}

// restart clears per-run flags.
func (s *Simulation) restart() {
	s.tick = 0
	s.atSurface = s.vehicle.AtSurface()
	s.gameOver = false
	s.dry = false
}

func rulesFrom(t tuning.Tuning) vehicle.Rules {
	return vehicle.Rules{
		DigCost:     t.DigCost,
		MoveCost:    t.MoveCost,
		IdleBurn:    t.IdleBurn,
		SafeFall:    t.Fall.SafeTiles,
		FallPerTile: t.Fall.DamagePerTile,
		GasDamage:   t.Hazards.GasDamage,
		GasRadius:   t.Hazards.GasRadius,
		LavaDamage:  t.Hazards.LavaDamage,
	}
}

// SetHeld sets the direction the vehicle acts on next step.
func (s *Simulation) SetHeld(d vehicle.Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vehicle.Destroyed() {
		return
	}
	s.vehicle.Held = d
}

// PauseFuel suspends fuel consumption. The clock keeps running.
func (s *Simulation) PauseFuel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fuel.Pause()
}

// ResumeFuel re-enables fuel consumption.
func (s *Simulation) ResumeFuel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fuel.Resume()
}

// Step runs one tick and records what happened.
func (s *Simulation) Step() vehicle.Report {
	s.mu.Lock()
	s.tick++
	rep := s.vehicle.Step()
	fire := s.record(rep)
	s.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
	return rep
}

// record turns a step report into events and returns the edge callbacks
// to run once the lock is released.
func (s *Simulation) record(rep vehicle.Report) []func() {
	depth := s.vehicle.Depth()

	if rep.Action == vehicle.ActionDig && rep.Dug.IsOre() {
		if rep.OreCredited > 0 {
			s.emit(CategoryMining, fmt.Sprintf("Mined %s at depth %d", rep.Dug, depth))
		} else {
			s.emit(CategoryMining, fmt.Sprintf("Cargo hold full, %s lost", rep.Dug))
		}
	}
	switch {
	case rep.Dug == world.TileGas && rep.Action == vehicle.ActionDig:
		s.emit(CategoryHazard, fmt.Sprintf("Gas pocket exploded, %d tiles cleared, hull -%.0f", rep.Exploded, rep.HazardDamage))
	case rep.Dug == world.TileLava && rep.Action == vehicle.ActionDig:
		s.emit(CategoryHazard, fmt.Sprintf("Drilled into lava, hull -%.0f", rep.HazardDamage))
	}
	if rep.FallDamage > 0 {
		s.emit(CategoryHull, fmt.Sprintf("Hard landing after %d tiles, hull -%.0f", rep.FallDistance, rep.FallDamage))
	}

	dry := errors.Is(rep.Err, vehicle.ErrResourceDepleted)
	if dry && !s.dry {
		s.emit(CategoryFuel, fmt.Sprintf("Out of fuel at depth %d", depth))
	}
	s.dry = dry

	if rep.NewDepth && depth%depthMilestone == 0 {
		s.emit(CategoryDepth, fmt.Sprintf("Reached depth %d", depth))
	}

	var fire []func()
	if s.vehicle.Destroyed() && !s.gameOver {
		s.gameOver = true
		s.emit(CategoryGameOver, fmt.Sprintf("Hull breached at depth %d", depth))
		slog.Warn("game over", "tick", s.tick, "depth", depth, "max_depth", s.econ.MaxDepth(),
			"cash", humanize.Comma(int64(s.econ.Cash())))
		if s.OnGameOver != nil {
			fire = append(fire, s.OnGameOver)
		}
	}
	return append(fire, s.surfaceEdge()...)
}

// surfaceEdge fires the reach-surface callback on the tick the vehicle
// enters the surface band from below.
func (s *Simulation) surfaceEdge() []func() {
	at := s.vehicle.AtSurface() && !s.vehicle.Destroyed()
	was := s.atSurface
	s.atSurface = at
	if !at || was {
		return nil
	}
	s.emit(CategorySurface, fmt.Sprintf("Returned to surface with %d ore worth $%s",
		s.econ.CargoUsed(), humanize.Comma(int64(s.econ.OreValue()))))
	if s.OnReachSurface != nil {
		return []func(){s.OnReachSurface}
	}
	return nil
}

// Reset regenerates the grid and returns the vehicle, ledgers, equipment,
// and inventory to their initial state in one step.
func (s *Simulation) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid.Reset()
	s.fuel.Reset()
	s.hull.Reset()
	s.econ.Reset()
	s.equip.Reset()
	s.items = make(map[ItemKind]int)
	s.vehicle.Reset()
	s.restart()
	s.emit(CategoryReset, fmt.Sprintf("Run reset, seed %d", s.tuning.World.Seed))
	slog.Info("simulation reset", "seed", s.tuning.World.Seed)
}

// ResetWith starts a fresh run on a newly generated world.
func (s *Simulation) ResetWith(cfg world.GenConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tuning.World = cfg
	s.build()
	s.emit(CategoryReset, fmt.Sprintf("New world %dx%d, seed %d", cfg.Width, cfg.Height, cfg.Seed))
	slog.Info("simulation reset", "seed", cfg.Seed, "width", cfg.Width, "height", cfg.Height)
	return nil
}

// Tick returns the number of steps since the last reset.
func (s *Simulation) Tick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// GameOver reports whether the hull has been breached this run.
func (s *Simulation) GameOver() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gameOver
}

// Tuning returns the balancing table in use.
func (s *Simulation) Tuning() tuning.Tuning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tuning
}

// View runs fn with read access to the grid. fn must not retain the view.
func (s *Simulation) View(fn func(world.View)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.grid)
}

// TileCounts tallies the current grid by tile kind.
func (s *Simulation) TileCounts() map[world.TileKind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid.Counts()
}

// GridRows renders the grid one string per row, with the vehicle as '@'.
func (s *Simulation) GridRows() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]string, s.grid.Height())
	for y := range rows {
		row := []byte(s.grid.Row(y))
		if y == s.vehicle.Y && s.vehicle.X < len(row) {
			row[s.vehicle.X] = '@'
		}
		rows[y] = string(row)
	}
	return rows
}
