package autopilot

import (
	"testing"

	"github.com/talgya/digsim/internal/engine"
	"github.com/talgya/digsim/internal/tuning"
	"github.com/talgya/digsim/internal/vehicle"
	"github.com/talgya/digsim/internal/world"
)

var testCfg = world.GenConfig{Width: 5, Height: 12, SurfaceRows: 2}

// dirtWith returns a grid of sky over dirt over bedrock with overrides.
func dirtWith(overrides map[[2]int]world.TileKind) *world.Grid {
	return world.NewGridWith(testCfg, func(cfg world.GenConfig) [][]world.TileKind {
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
	})
}

// healthy is a snapshot of a fresh vehicle at (2, y).
func healthy(y int) engine.Snapshot {
	return engine.Snapshot{
		X: 2, Y: y,
		AtSurface:     y <= testCfg.SurfaceRows,
		Depth:         max(0, y-testCfg.SurfaceRows+1),
		Fuel:          40,
		FuelCapacity:  40,
		Hull:          50,
		HullMax:       50,
		CargoCapacity: 8,
		Items:         map[string]int{},
		Ore:           map[string]int{},
	}
}

func TestPilot_Decide(t *testing.T) {
	tests := []struct {
		name      string
		grid      map[[2]int]world.TileKind
		snap      func() engine.Snapshot
		wantGoal  Goal
		wantHeld  vehicle.Direction
		wantShop  bool
		wantItems []engine.ItemKind
	}{
		{
			name:     "game over",
			snap:     func() engine.Snapshot { s := healthy(5); s.GameOver = true; return s },
			wantGoal: GoalIdle, wantHeld: vehicle.None,
		},
		{
			name:     "fresh at surface digs down",
			snap:     func() engine.Snapshot { return healthy(1) },
			wantGoal: GoalDescend, wantHeld: vehicle.Down,
		},
		{
			name:     "cargo at surface shops",
			snap:     func() engine.Snapshot { s := healthy(1); s.CargoUsed = 3; return s },
			wantGoal: GoalShop, wantHeld: vehicle.Down, wantShop: true,
		},
		{
			name:     "low fuel climbs",
			snap:     func() engine.Snapshot { s := healthy(8); s.Fuel = 5; return s },
			wantGoal: GoalReturn, wantHeld: vehicle.Up,
		},
		{
			name: "low fuel with teleporter",
			snap: func() engine.Snapshot {
				s := healthy(8)
				s.Fuel = 5
				s.Items["teleporter"] = 1
				return s
			},
			wantGoal: GoalReturn, wantHeld: vehicle.None, wantItems: []engine.ItemKind{engine.Teleporter},
		},
		{
			name: "low fuel with fuel can keeps climbing",
			snap: func() engine.Snapshot {
				s := healthy(8)
				s.Fuel = 5
				s.Items["fuel_can"] = 1
				return s
			},
			wantGoal: GoalReturn, wantHeld: vehicle.Up, wantItems: []engine.ItemKind{engine.FuelCan},
		},
		{
			name:     "damaged hull climbs",
			snap:     func() engine.Snapshot { s := healthy(6); s.Hull = 15; return s },
			wantGoal: GoalReturn, wantHeld: vehicle.Up,
		},
		{
			name: "repair kit instead of returning",
			snap: func() engine.Snapshot {
				s := healthy(6)
				s.Hull = 10
				s.Items["repair_kit"] = 1
				return s
			},
			wantGoal: GoalDescend, wantHeld: vehicle.Down, wantItems: []engine.ItemKind{engine.RepairKit},
		},
		{
			name:     "full hold climbs",
			snap:     func() engine.Snapshot { s := healthy(6); s.CargoUsed = 8; return s },
			wantGoal: GoalReturn, wantHeld: vehicle.Up,
		},
		{
			name:     "lava below steps aside",
			grid:     map[[2]int]world.TileKind{{2, 7}: world.TileLava},
			snap:     func() engine.Snapshot { return healthy(6) },
			wantGoal: GoalDescend, wantHeld: vehicle.Right,
		},
		{
			name:     "hazards below and right step left",
			grid:     map[[2]int]world.TileKind{{2, 7}: world.TileGas, {3, 6}: world.TileLava},
			snap:     func() engine.Snapshot { return healthy(6) },
			wantGoal: GoalDescend, wantHeld: vehicle.Left,
		},
		{
			name:     "ore beside",
			grid:     map[[2]int]world.TileKind{{1, 6}: world.TileGold},
			snap:     func() engine.Snapshot { return healthy(6) },
			wantGoal: GoalDescend, wantHeld: vehicle.Left,
		},
		{
			name:     "bedrock below",
			snap:     func() engine.Snapshot { return healthy(10) },
			wantGoal: GoalDescend, wantHeld: vehicle.Right,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tuning.Default())
			d := p.Decide(tt.snap(), dirtWith(tt.grid))
			if d.Goal != tt.wantGoal || d.Held != tt.wantHeld || d.Shop != tt.wantShop {
				t.Fatalf("decision = %+v (goal %s held %s), want goal %s held %s shop %v",
					d, d.Goal, d.Held, tt.wantGoal, tt.wantHeld, tt.wantShop)
			}
			if len(d.Use) != len(tt.wantItems) {
				t.Fatalf("use = %v, want %v", d.Use, tt.wantItems)
			}
			for i := range d.Use {
				if d.Use[i] != tt.wantItems[i] {
					t.Fatalf("use = %v, want %v", d.Use, tt.wantItems)
				}
			}
		})
	}
}

func TestPilot_DrivesARun(t *testing.T) {
	tu := tuning.Default()
	tu.World = world.GenConfig{Seed: 3, Width: 24, Height: 48, SurfaceRows: 3}
	sim, err := engine.NewSimulation(tu, nil)
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	p := New(tu)

	for i := 0; i < 3000 && !sim.GameOver(); i++ {
		p.Step(sim)
		sim.Step()

		snap := sim.Snapshot()
		if snap.Fuel < 0 || snap.Fuel > snap.FuelCapacity {
			t.Fatalf("tick %d: fuel %v outside [0, %v]", i, snap.Fuel, snap.FuelCapacity)
		}
		if snap.Hull < 0 || snap.Hull > snap.HullMax {
			t.Fatalf("tick %d: hull %v outside [0, %v]", i, snap.Hull, snap.HullMax)
		}
		if snap.CargoUsed > snap.CargoCapacity || snap.Cash < 0 {
			t.Fatalf("tick %d: cargo %d/%d cash %d", i, snap.CargoUsed, snap.CargoCapacity, snap.Cash)
		}
	}
	if depth := sim.Snapshot().MaxDepth; depth == 0 {
		t.Fatal("autopilot never left the surface")
	}
}
