package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/digsim/internal/world"
)

func TestDefault_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default tuning invalid: %v", err)
	}
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	raw := []byte(`
world:
  seed: 99
  width: 32
  height: 64
  surface_rows: 4
dig_cost: 5
fall:
  safe_tiles: 2
  damage_per_tile: 2
ore_prices:
  Gold: 999
tracks:
  cargo:
    - {cost: 0, value: 10}
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	tu, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.World != (world.GenConfig{Seed: 99, Width: 32, Height: 64, SurfaceRows: 4}) {
		t.Fatalf("world = %+v", tu.World)
	}
	if tu.DigCost != 5 || tu.Fall.SafeTiles != 2 || tu.Fall.DamagePerTile != 2 {
		t.Fatalf("costs = %v %+v", tu.DigCost, tu.Fall)
	}
	if tu.MoveCost != Default().MoveCost {
		t.Fatalf("move cost lost its default: %v", tu.MoveCost)
	}
	if len(tu.Tracks.Cargo) != 1 || tu.Tracks.Cargo[0].Value != 10 {
		t.Fatalf("cargo track = %+v", tu.Tracks.Cargo)
	}
	prices := tu.Prices()
	if prices[world.TileGold] != 999 || prices[world.TileCopper] != 30 {
		t.Fatalf("prices = %v", prices)
	}
}

func TestParse_RejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"unknown ore":     "ore_prices: {Mithril: 5}",
		"negative cost":   "dig_cost: -1",
		"empty track":     "tracks: {fuel: []}",
		"tiny world":      "world: {width: 4, height: 2, surface_rows: 2}",
		"bad yaml":        "dig_cost: [",
		"shrinking fuel":  "tracks: {fuel: [{cost: 0, value: 100}, {cost: 10, value: 20}]}",
		"shrinking hull":  "tracks: {hull: [{cost: 0, value: 50}, {cost: 10, value: 60}, {cost: 20, value: 55}]}",
		"shrinking cargo": "tracks: {cargo: [{cost: 0, value: 8}, {cost: 10, value: 4}]}",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			tu := Default()
			if err := Parse([]byte(raw), &tu); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
