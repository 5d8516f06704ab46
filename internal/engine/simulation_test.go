package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/talgya/digsim/internal/ledger"
	"github.com/talgya/digsim/internal/tuning"
	"github.com/talgya/digsim/internal/vehicle"
	"github.com/talgya/digsim/internal/world"
)

// column builds a generator with sky above the surface band, dirt below,
// bedrock on the last row, and the given overrides at (x, y).
func column(overrides map[[2]int]world.TileKind) world.GenerateFunc {
	return func(cfg world.GenConfig) [][]world.TileKind {
		tiles := make([][]world.TileKind, cfg.Width)
		for x := range tiles {
			tiles[x] = make([]world.TileKind, cfg.Height)
			for y := range tiles[x] {
				switch {
				case y < cfg.SurfaceRows:
					tiles[x][y] = world.TileSurface
				case y == cfg.Height-1:
					tiles[x][y] = world.TileBedrock
				default:
					tiles[x][y] = world.TileDirt
				}
				if k, ok := overrides[[2]int{x, y}]; ok {
					tiles[x][y] = k
				}
			}
		}
		return tiles
	}
}

func testTuning() tuning.Tuning {
	t := tuning.Default()
	t.World = world.GenConfig{Seed: 1, Width: 5, Height: 12, SurfaceRows: 2}
	t.IdleBurn = 0
	return t
}

func newTestSim(t *testing.T, tu tuning.Tuning, overrides map[[2]int]world.TileKind) *Simulation {
	t.Helper()
	s, err := NewSimulationWith(tu, nil, column(overrides))
	if err != nil {
		t.Fatalf("NewSimulationWith: %v", err)
	}
	return s
}

func steps(s *Simulation, n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

func TestSimulation_DigDownAndReturn(t *testing.T) {
	s := newTestSim(t, testTuning(), map[[2]int]world.TileKind{{2, 4}: world.TileGold})
	surfaced := 0
	s.OnReachSurface = func() { surfaced++ }

	if snap := s.Snapshot(); snap.X != 2 || snap.Y != 1 || !snap.AtSurface {
		t.Fatalf("spawn = (%d,%d) surface=%v", snap.X, snap.Y, snap.AtSurface)
	}

	s.SetHeld(vehicle.Down)
	steps(s, 3)
	snap := s.Snapshot()
	if snap.Y != 4 || snap.AtSurface {
		t.Fatalf("after digging y=%d surface=%v, want y=4 below surface", snap.Y, snap.AtSurface)
	}
	if snap.Ore["Gold"] != 1 || snap.MaxDepth != 3 {
		t.Fatalf("ore=%v max_depth=%d", snap.Ore, snap.MaxDepth)
	}

	s.SetHeld(vehicle.Up)
	steps(s, 6)
	if snap := s.Snapshot(); snap.Y != 0 || !snap.AtSurface {
		t.Fatalf("after climbing y=%d", snap.Y)
	}
	if surfaced != 1 {
		t.Fatalf("OnReachSurface fired %d times, want 1", surfaced)
	}

	value, err := s.SellOre()
	if err != nil || value != 250 {
		t.Fatalf("SellOre = %d, %v", value, err)
	}
	if cash := s.Snapshot().Cash; cash != 350 {
		t.Fatalf("cash = %d, want 350", cash)
	}
	if value, _ := s.SellOre(); value != 0 {
		t.Fatalf("second SellOre = %d, want 0", value)
	}
}

func TestSimulation_GameOverFiresOnce(t *testing.T) {
	tu := testTuning()
	tu.Tracks.Hull = []ledger.Tier{{Value: 5}}
	tu.Fall = tuning.FallRules{SafeTiles: 0, DamagePerTile: 10}
	shaft := map[[2]int]world.TileKind{}
	for y := 2; y < 11; y++ {
		shaft[[2]int{4, y}] = world.TileEmpty
	}
	s := newTestSim(t, tu, shaft)
	over := 0
	s.OnGameOver = func() { over++ }

	s.SetHeld(vehicle.Right)
	steps(s, 2)
	s.SetHeld(vehicle.None)
	for i := 0; i < 30 && !s.GameOver(); i++ {
		s.Step()
	}
	steps(s, 5)

	if over != 1 {
		t.Fatalf("OnGameOver fired %d times, want 1", over)
	}
	snap := s.Snapshot()
	if snap.State != "destroyed" || snap.Hull != 0 {
		t.Fatalf("state=%s hull=%v", snap.State, snap.Hull)
	}
	if rep := s.Step(); !errors.Is(rep.Err, vehicle.ErrStructuralFailure) {
		t.Fatalf("step after breach err = %v", rep.Err)
	}
	if err := s.Refuel(); !errors.Is(err, vehicle.ErrStructuralFailure) {
		t.Fatalf("Refuel after breach = %v", err)
	}
	s.SetHeld(vehicle.Left)
	if held := s.Snapshot().Held; held != "none" {
		t.Fatalf("held = %s after breach", held)
	}

	var gameOverEvents int
	for _, e := range s.Events(0) {
		if e.Category == CategoryGameOver {
			gameOverEvents++
		}
	}
	if gameOverEvents != 1 {
		t.Fatalf("game over events = %d", gameOverEvents)
	}
}

func TestSimulation_ShopRequiresSurface(t *testing.T) {
	s := newTestSim(t, testTuning(), nil)
	s.SetHeld(vehicle.Down)
	steps(s, 2)
	if s.Snapshot().AtSurface {
		t.Fatal("expected to be below the surface")
	}

	before := s.Snapshot()
	for name, call := range map[string]func() error{
		"refuel":  s.Refuel,
		"repair":  s.RepairHull,
		"drill":   s.UpgradeDrill,
		"cargo":   s.UpgradeCargo,
		"buy":     func() error { return s.BuyItem(Dynamite) },
		"sellore": func() error { _, err := s.SellOre(); return err },
	} {
		if err := call(); !errors.Is(err, ErrNotAtSurface) {
			t.Errorf("%s below surface = %v, want ErrNotAtSurface", name, err)
		}
	}
	if after := s.Snapshot(); after.Cash != before.Cash || !reflect.DeepEqual(after.Levels, before.Levels) {
		t.Fatalf("failed shop calls changed state: %+v -> %+v", before, after)
	}
	if err := s.UseItem(Teleporter); !errors.Is(err, ErrNoItem) {
		t.Fatalf("UseItem with empty inventory = %v", err)
	}
}

func TestSimulation_ShopAtomic(t *testing.T) {
	tu := testTuning()
	tu.StartCash = 1000
	tu.Tracks.Cooling = []ledger.Tier{{Value: 1}}
	s := newTestSim(t, tu, nil)

	if err := s.UpgradeDrill(); err != nil {
		t.Fatalf("UpgradeDrill: %v", err)
	}
	snap := s.Snapshot()
	if snap.Cash != 250 || snap.Levels["drill"] != 1 {
		t.Fatalf("cash=%d drill=%d", snap.Cash, snap.Levels["drill"])
	}

	if err := s.UpgradeDrill(); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("unaffordable upgrade = %v", err)
	}
	if err := s.UpgradeCooling(); !errors.Is(err, ledger.ErrAlreadyMaxTier) {
		t.Fatalf("maxed upgrade = %v", err)
	}
	if err := s.Upgrade("turbo"); err == nil {
		t.Fatal("unknown system accepted")
	}
	if snap := s.Snapshot(); snap.Cash != 250 || snap.Levels["drill"] != 1 {
		t.Fatalf("failed upgrades changed state: cash=%d drill=%d", snap.Cash, snap.Levels["drill"])
	}

	// Full tank and hull cost nothing.
	if err := s.Refuel(); err != nil {
		t.Fatalf("Refuel on full tank: %v", err)
	}
	if err := s.RepairHull(); err != nil {
		t.Fatalf("RepairHull on full hull: %v", err)
	}

	if err := s.BuyItem(Dynamite); err != nil {
		t.Fatalf("BuyItem: %v", err)
	}
	if err := s.BuyItem(Charge); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("unaffordable item = %v", err)
	}
	if snap := s.Snapshot(); snap.Cash != 50 || snap.Items["dynamite"] != 1 || snap.Items["charge"] != 0 {
		t.Fatalf("cash=%d items=%v", snap.Cash, snap.Items)
	}
}

func TestSimulation_RefuelCharges(t *testing.T) {
	s := newTestSim(t, testTuning(), nil)
	s.SetHeld(vehicle.Down)
	s.Step() // One dirt tile: 1 fuel
	s.SetHeld(vehicle.None)

	snap := s.Snapshot()
	if !snap.AtSurface || snap.Fuel != snap.FuelCapacity-1 {
		t.Fatalf("surface=%v fuel=%v", snap.AtSurface, snap.Fuel)
	}
	if err := s.Refuel(); err != nil {
		t.Fatalf("Refuel: %v", err)
	}
	snap = s.Snapshot()
	if snap.Fuel != snap.FuelCapacity || snap.Cash != 98 {
		t.Fatalf("fuel=%v cash=%d, want full tank for $2", snap.Fuel, snap.Cash)
	}
}

func TestSimulation_Items(t *testing.T) {
	tu := testTuning()
	tu.StartCash = 5000
	s := newTestSim(t, tu, nil)
	surfaced := 0
	s.OnReachSurface = func() { surfaced++ }

	for _, k := range []ItemKind{Dynamite, Teleporter, FuelCan, RepairKit} {
		if err := s.BuyItem(k); err != nil {
			t.Fatalf("BuyItem(%s): %v", k, err)
		}
	}

	s.SetHeld(vehicle.Down)
	steps(s, 3)
	s.SetHeld(vehicle.None)
	snap := s.Snapshot()
	if snap.Y != 4 {
		t.Fatalf("y = %d, want 4", snap.Y)
	}

	if err := s.UseItem(Dynamite); err != nil {
		t.Fatalf("UseItem(dynamite): %v", err)
	}
	s.View(func(v world.View) {
		for _, c := range [][2]int{{1, 4}, {3, 4}, {2, 5}} {
			if v.Solid(c[0], c[1]) {
				t.Errorf("(%d,%d) still solid after dynamite", c[0], c[1])
			}
		}
		if !v.Solid(0, 4) {
			t.Error("dynamite reached beyond its radius")
		}
	})

	fuelBefore := s.Snapshot().Fuel
	if err := s.UseItem(FuelCan); err != nil {
		t.Fatalf("UseItem(fuel_can): %v", err)
	}
	if snap := s.Snapshot(); snap.Fuel <= fuelBefore || snap.Fuel > snap.FuelCapacity {
		t.Fatalf("fuel %v -> %v (capacity %v)", fuelBefore, snap.Fuel, snap.FuelCapacity)
	}
	if err := s.UseItem(RepairKit); err != nil {
		t.Fatalf("UseItem(repair_kit): %v", err)
	}
	if snap := s.Snapshot(); snap.Hull != snap.HullMax {
		t.Fatalf("hull = %v, want %v", snap.Hull, snap.HullMax)
	}

	if err := s.UseItem(Teleporter); err != nil {
		t.Fatalf("UseItem(teleporter): %v", err)
	}
	if snap := s.Snapshot(); snap.Y != 1 || !snap.AtSurface || snap.Falling != 0 {
		t.Fatalf("after teleport y=%d fall=%d", snap.Y, snap.Falling)
	}
	if surfaced != 1 {
		t.Fatalf("OnReachSurface fired %d times after teleport", surfaced)
	}
	if len(s.Inventory()) != 0 {
		t.Fatalf("inventory = %v, want empty", s.Inventory())
	}
	if err := s.UseItem(Dynamite); !errors.Is(err, ErrNoItem) {
		t.Fatalf("second dynamite = %v", err)
	}
}

func TestSimulation_PauseFuel(t *testing.T) {
	s := newTestSim(t, testTuning(), nil)
	s.PauseFuel()
	s.SetHeld(vehicle.Down)
	steps(s, 3)
	snap := s.Snapshot()
	if snap.Fuel != snap.FuelCapacity || !snap.FuelPaused {
		t.Fatalf("fuel=%v paused=%v", snap.Fuel, snap.FuelPaused)
	}
	if snap.Y != 4 {
		t.Fatalf("clock stopped while fuel paused: y=%d", snap.Y)
	}
	s.ResumeFuel()
	s.Step()
	if snap := s.Snapshot(); snap.Fuel >= snap.FuelCapacity {
		t.Fatalf("fuel not consumed after resume: %v", snap.Fuel)
	}
}

func TestSimulation_ResetIsComplete(t *testing.T) {
	tu := testTuning()
	tu.StartCash = 2000
	s := newTestSim(t, tu, map[[2]int]world.TileKind{{2, 3}: world.TileCopper})
	initial := s.Snapshot()
	initialRows := s.GridRows()
	if n := s.TileCounts()[world.TileCopper]; n != 1 {
		t.Fatalf("copper tiles = %d, want 1", n)
	}

	if err := s.UpgradeEngine(); err != nil {
		t.Fatalf("UpgradeEngine: %v", err)
	}
	if err := s.BuyItem(FuelCan); err != nil {
		t.Fatalf("BuyItem: %v", err)
	}
	s.SetHeld(vehicle.Down)
	steps(s, 4)

	s.Reset()
	if got := s.Snapshot(); !reflect.DeepEqual(got, initial) {
		t.Fatalf("snapshot after reset:\n got %+v\nwant %+v", got, initial)
	}
	if got := s.GridRows(); !reflect.DeepEqual(got, initialRows) {
		t.Fatal("grid differs after reset")
	}
	if n := s.TileCounts()[world.TileCopper]; n != 1 {
		t.Fatalf("copper tiles after reset = %d, want 1", n)
	}
	if s.GameOver() {
		t.Fatal("game over survived reset")
	}
}

func TestSimulation_ResetWith(t *testing.T) {
	s := newTestSim(t, testTuning(), nil)
	cfg := world.GenConfig{Seed: 9, Width: 8, Height: 20, SurfaceRows: 3}
	if err := s.ResetWith(cfg); err != nil {
		t.Fatalf("ResetWith: %v", err)
	}
	snap := s.Snapshot()
	if snap.Width != 8 || snap.Height != 20 || snap.Seed != 9 || snap.Y != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}

	if err := s.ResetWith(world.GenConfig{Width: 0, Height: 10, SurfaceRows: 1}); err == nil {
		t.Fatal("invalid config accepted")
	}
	if s.Snapshot().Width != 8 {
		t.Fatal("failed ResetWith changed the world")
	}
}

func TestSimulation_ProfileRestore(t *testing.T) {
	tu := testTuning()
	tu.StartCash = 3000
	s := newTestSim(t, tu, map[[2]int]world.TileKind{{2, 2}: world.TileIron})
	if err := s.UpgradeHull(); err != nil {
		t.Fatalf("UpgradeHull: %v", err)
	}
	if err := s.BuyItem(RepairKit); err != nil {
		t.Fatalf("BuyItem: %v", err)
	}
	s.SetHeld(vehicle.Down)
	steps(s, 3)
	saved := s.Profile()

	other := newTestSim(t, testTuning(), nil)
	if err := other.Restore(saved); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := other.Profile(); !reflect.DeepEqual(got, saved) {
		t.Fatalf("restored profile:\n got %+v\nwant %+v", got, saved)
	}
	if snap := other.Snapshot(); snap.Y != 1 || snap.CargoUsed != 0 {
		t.Fatalf("restored run should start empty on the spawn cell: %+v", snap)
	}

	bad := saved
	bad.Items = map[string]int{"jetpack": 1}
	if err := other.Restore(bad); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("Restore with unknown item = %v", err)
	}
}

func TestSimulation_EventsAndSubscribers(t *testing.T) {
	tu := testTuning()
	tu.StartCash = 1000
	s := newTestSim(t, tu, nil)
	id, ch := s.Subscribe()

	if err := s.BuyItem(Dynamite); err != nil {
		t.Fatalf("BuyItem: %v", err)
	}
	select {
	case e := <-ch:
		if e.Category != CategoryShop {
			t.Fatalf("event = %+v", e)
		}
	default:
		t.Fatal("subscriber received nothing")
	}

	if got := s.DrainEvents(); len(got) != 1 {
		t.Fatalf("first drain = %d events", len(got))
	}
	if got := s.DrainEvents(); len(got) != 0 {
		t.Fatalf("second drain = %d events", len(got))
	}

	s.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("channel open after Unsubscribe")
	}

	s.mu.Lock()
	for i := 0; i < maxEvents+50; i++ {
		s.emit(CategoryMining, "filler")
	}
	s.mu.Unlock()
	if got := s.Events(0); len(got) != maxEvents {
		t.Fatalf("ring holds %d events, want %d", len(got), maxEvents)
	}
	if got := s.Events(10); len(got) != 10 {
		t.Fatalf("Events(10) = %d", len(got))
	}
	if got := s.DrainEvents(); len(got) != maxEvents {
		t.Fatalf("drain after overflow = %d, want %d", len(got), maxEvents)
	}
}

func TestParseItem(t *testing.T) {
	for _, k := range ItemKinds {
		got, err := ParseItem(k.String())
		if err != nil || got != k {
			t.Errorf("ParseItem(%q) = %v, %v", k, got, err)
		}
	}
	if _, err := ParseItem("laser"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("ParseItem(laser) = %v", err)
	}
}

func TestSimulation_Quote(t *testing.T) {
	tu := testTuning()
	tu.Tracks.Cooling = []ledger.Tier{{Value: 1}}
	s := newTestSim(t, tu, nil)
	s.SetHeld(vehicle.Down)
	s.Step()

	q := s.Quote()
	if q.Refuel != 2 || q.Repair != 0 {
		t.Fatalf("refuel=%d repair=%d", q.Refuel, q.Repair)
	}
	if q.Upgrades["drill"] != 750 || q.Upgrades["cooling"] != ledger.MaxedCost {
		t.Fatalf("upgrades = %v", q.Upgrades)
	}
	if q.Items["teleporter"] != 800 || len(q.Items) != len(ItemKinds) {
		t.Fatalf("items = %v", q.Items)
	}
}
