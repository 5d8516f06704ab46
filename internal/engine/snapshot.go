package engine

import (
	"github.com/talgya/digsim/internal/world"
)

// Snapshot is a value copy of the observable run state.
type Snapshot struct {
	Tick      uint64 `json:"tick"`
	Seed      int64  `json:"seed"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Surface   int    `json:"surface_rows"`
	GameOver  bool   `json:"game_over"`
	AtSurface bool   `json:"at_surface"`

	X       int     `json:"x"`
	Y       int     `json:"y"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Held    string  `json:"held"`
	State   string  `json:"state"`
	Depth   int     `json:"depth"`
	Falling int     `json:"fall_distance"`

	Fuel         float64 `json:"fuel"`
	FuelCapacity float64 `json:"fuel_capacity"`
	FuelPaused   bool    `json:"fuel_paused"`
	Hull         float64 `json:"hull"`
	HullMax      float64 `json:"hull_max"`

	Cash          int            `json:"cash"`
	MaxDepth      int            `json:"max_depth"`
	Ore           map[string]int `json:"ore"`
	OreValue      int            `json:"ore_value"`
	CargoUsed     int            `json:"cargo_used"`
	CargoCapacity int            `json:"cargo_capacity"`

	Levels map[string]int `json:"levels"`
	Items  map[string]int `json:"items"`
}

// Snapshot returns the current state.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.vehicle
	cfg := s.grid.Config()
	snap := Snapshot{
		Tick:      s.tick,
		Seed:      cfg.Seed,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Surface:   cfg.SurfaceRows,
		GameOver:  s.gameOver,
		AtSurface: v.AtSurface(),

		X:       v.X,
		Y:       v.Y,
		OffsetX: v.OffsetX,
		OffsetY: v.OffsetY,
		Held:    v.Held.String(),
		State:   v.State.String(),
		Depth:   v.Depth(),
		Falling: v.FallDistance(),

		Fuel:         s.fuel.Current(),
		FuelCapacity: s.fuel.Capacity(),
		FuelPaused:   s.fuel.Paused(),
		Hull:         s.hull.Current(),
		HullMax:      s.hull.Max(),

		Cash:          s.econ.Cash(),
		MaxDepth:      s.econ.MaxDepth(),
		Ore:           make(map[string]int),
		OreValue:      s.econ.OreValue(),
		CargoUsed:     s.econ.CargoUsed(),
		CargoCapacity: s.econ.CargoCapacity(),

		Levels: s.levels(),
		Items:  make(map[string]int),
	}
	for kind, n := range s.econ.Ore() {
		snap.Ore[kind.String()] = n
	}
	for k, n := range s.items {
		if n > 0 {
			snap.Items[k.String()] = n
		}
	}
	return snap
}

func (s *Simulation) levels() map[string]int {
	return map[string]int{
		"fuel":    s.fuel.Track().Level(),
		"hull":    s.hull.Track().Level(),
		"cargo":   s.econ.CargoTrack().Level(),
		"drill":   s.equip.Drill.Level(),
		"engine":  s.equip.Engine.Level(),
		"cooling": s.equip.Cooling.Level(),
	}
}

// Profile is the persisted part of a run: the world identity and
// everything bought or earned on it. The grid itself is regenerated from
// the config.
type Profile struct {
	World    world.GenConfig `json:"world"`
	Cash     int             `json:"cash"`
	MaxDepth int             `json:"max_depth"`
	Fuel     float64         `json:"fuel"`
	Hull     float64         `json:"hull"`
	Levels   map[string]int  `json:"levels"`
	Items    map[string]int  `json:"items"`
}

// Profile captures the persistable state.
func (s *Simulation) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := Profile{
		World:    s.grid.Config(),
		Cash:     s.econ.Cash(),
		MaxDepth: s.econ.MaxDepth(),
		Fuel:     s.fuel.Current(),
		Hull:     s.hull.Current(),
		Levels:   s.levels(),
		Items:    make(map[string]int),
	}
	for k, n := range s.items {
		if n > 0 {
			p.Items[k.String()] = n
		}
	}
	return p
}

// Restore starts a run from a saved profile. The world is regenerated
// from its config and the vehicle starts on the spawn cell.
func (s *Simulation) Restore(p Profile) error {
	if err := p.World.Validate(); err != nil {
		return err
	}
	items := make(map[ItemKind]int, len(p.Items))
	for name, n := range p.Items {
		k, err := ParseItem(name)
		if err != nil {
			return err
		}
		items[k] = max(0, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tuning.World = p.World
	s.build()
	s.fuel.Restore(p.Levels["fuel"], p.Fuel)
	s.hull.Restore(p.Levels["hull"], p.Hull)
	s.econ.Restore(p.Cash, p.Levels["cargo"], p.MaxDepth)
	s.equip.Drill.SetLevel(p.Levels["drill"])
	s.equip.Engine.SetLevel(p.Levels["engine"])
	s.equip.Cooling.SetLevel(p.Levels["cooling"])
	s.items = items
	// A breached hull comes back repaired.
	if s.hull.Breached() {
		s.hull.Repair(s.hull.Max())
	}
	s.emit(CategoryReset, "Run restored")
	return nil
}
