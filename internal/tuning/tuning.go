// Package tuning holds the balancing tables for a run: world size, action
// costs, fall and hazard rules, upgrade ladders, ore and item prices.
// Values load from YAML over the built-in defaults.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/digsim/internal/ledger"
	"github.com/talgya/digsim/internal/world"
)

// Tuning is the full balancing table.
type Tuning struct {
	World world.GenConfig `yaml:"world"`

	StartCash int     `yaml:"start_cash"`
	DigCost   float64 `yaml:"dig_cost"`  // Fuel per dirt tile, before hardness and drill
	MoveCost  float64 `yaml:"move_cost"` // Fuel per tile moved, before engine
	IdleBurn  float64 `yaml:"idle_burn"` // Fuel per tick spent below the surface band
	FuelPrice float64 `yaml:"fuel_price"`
	HullPrice float64 `yaml:"hull_price"` // Cash per point of hull repaired

	Fall    FallRules   `yaml:"fall"`
	Hazards HazardRules `yaml:"hazards"`
	Tracks  Tracks      `yaml:"tracks"`

	OrePrices map[string]int `yaml:"ore_prices"` // Keyed by ore name, e.g. "Gold"
	Items     Items          `yaml:"items"`
}

// FallRules control fall damage.
type FallRules struct {
	SafeTiles     int     `yaml:"safe_tiles"`
	DamagePerTile float64 `yaml:"damage_per_tile"`
}

// HazardRules control what hazard tiles do when drilled.
type HazardRules struct {
	GasDamage  float64 `yaml:"gas_damage"`
	GasRadius  int     `yaml:"gas_radius"`
	LavaDamage float64 `yaml:"lava_damage"` // Scaled by the cooling factor
}

// Tracks holds the tier ladder for every upgradeable system. Fuel, hull,
// and cargo values are capacities; drill, engine, and cooling values are
// cost multipliers where lower is better.
type Tracks struct {
	Fuel    []ledger.Tier `yaml:"fuel"`
	Hull    []ledger.Tier `yaml:"hull"`
	Cargo   []ledger.Tier `yaml:"cargo"`
	Drill   []ledger.Tier `yaml:"drill"`
	Engine  []ledger.Tier `yaml:"engine"`
	Cooling []ledger.Tier `yaml:"cooling"`
}

// Items holds consumable prices and strengths.
type Items struct {
	DynamitePrice   int     `yaml:"dynamite_price"`
	DynamiteRadius  int     `yaml:"dynamite_radius"`
	ChargePrice     int     `yaml:"charge_price"`
	ChargeRadius    int     `yaml:"charge_radius"`
	TeleporterPrice int     `yaml:"teleporter_price"`
	FuelCanPrice    int     `yaml:"fuel_can_price"`
	FuelCanAmount   float64 `yaml:"fuel_can_amount"`
	RepairKitPrice  int     `yaml:"repair_kit_price"`
	RepairKitAmount float64 `yaml:"repair_kit_amount"`
}

// Default returns the built-in balancing table.
func Default() Tuning {
	return Tuning{
		World:     world.DefaultGenConfig(),
		StartCash: 100,
		DigCost:   1.0,
		MoveCost:  0.25,
		IdleBurn:  0.02,
		FuelPrice: 2,
		HullPrice: 3,
		Fall: FallRules{
			SafeTiles:     3,
			DamagePerTile: 4,
		},
		Hazards: HazardRules{
			GasDamage:  20,
			GasRadius:  1,
			LavaDamage: 30,
		},
		Tracks: Tracks{
			Fuel:    []ledger.Tier{{Cost: 0, Value: 40}, {Cost: 750, Value: 60}, {Cost: 2000, Value: 90}, {Cost: 5000, Value: 140}, {Cost: 20000, Value: 200}},
			Hull:    []ledger.Tier{{Cost: 0, Value: 50}, {Cost: 750, Value: 75}, {Cost: 2000, Value: 110}, {Cost: 5000, Value: 160}, {Cost: 20000, Value: 250}},
			Cargo:   []ledger.Tier{{Cost: 0, Value: 8}, {Cost: 750, Value: 15}, {Cost: 2000, Value: 25}, {Cost: 5000, Value: 40}, {Cost: 20000, Value: 70}},
			Drill:   []ledger.Tier{{Cost: 0, Value: 1.0}, {Cost: 750, Value: 0.8}, {Cost: 2000, Value: 0.65}, {Cost: 5000, Value: 0.5}, {Cost: 20000, Value: 0.35}},
			Engine:  []ledger.Tier{{Cost: 0, Value: 1.0}, {Cost: 750, Value: 0.85}, {Cost: 2000, Value: 0.7}, {Cost: 5000, Value: 0.55}, {Cost: 20000, Value: 0.4}},
			Cooling: []ledger.Tier{{Cost: 0, Value: 1.0}, {Cost: 750, Value: 0.75}, {Cost: 2000, Value: 0.5}, {Cost: 5000, Value: 0.3}, {Cost: 20000, Value: 0.1}},
		},
		OrePrices: map[string]int{
			"Copper":   30,
			"Iron":     60,
			"Silver":   120,
			"Gold":     250,
			"Platinum": 500,
			"Diamond":  1200,
		},
		Items: Items{
			DynamitePrice:   200,
			DynamiteRadius:  1,
			ChargePrice:     500,
			ChargeRadius:    2,
			TeleporterPrice: 800,
			FuelCanPrice:    150,
			FuelCanAmount:   25,
			RepairKitPrice:  300,
			RepairKitAmount: 30,
		},
	}
}

// Load reads a YAML tuning file. Keys absent from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := Parse(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes YAML over t and validates the result.
func Parse(raw []byte, t *Tuning) error {
	if err := yaml.Unmarshal(raw, t); err != nil {
		return fmt.Errorf("tuning yaml: %w", err)
	}
	return t.Validate()
}

// Validate checks the table for values the simulation cannot run with.
func (t Tuning) Validate() error {
	if err := t.World.Validate(); err != nil {
		return err
	}
	if t.DigCost < 0 || t.MoveCost < 0 || t.IdleBurn < 0 {
		return fmt.Errorf("tuning: fuel costs must be non-negative")
	}
	if t.StartCash < 0 {
		return fmt.Errorf("tuning: start cash must be non-negative")
	}
	for name, tiers := range map[string][]ledger.Tier{
		"fuel": t.Tracks.Fuel, "hull": t.Tracks.Hull, "cargo": t.Tracks.Cargo,
		"drill": t.Tracks.Drill, "engine": t.Tracks.Engine, "cooling": t.Tracks.Cooling,
	} {
		if len(tiers) == 0 {
			return fmt.Errorf("tuning: track %q has no tiers", name)
		}
		for i, tier := range tiers {
			if tier.Cost < 0 || tier.Value < 0 {
				return fmt.Errorf("tuning: track %q tier %d has negative values", name, i)
			}
		}
	}
	// Capacities never shrink on upgrade.
	for name, tiers := range map[string][]ledger.Tier{
		"fuel": t.Tracks.Fuel, "hull": t.Tracks.Hull, "cargo": t.Tracks.Cargo,
	} {
		for i := 1; i < len(tiers); i++ {
			if tiers[i].Value < tiers[i-1].Value {
				return fmt.Errorf("tuning: track %q tier %d is smaller than tier %d", name, i, i-1)
			}
		}
	}
	for name := range t.OrePrices {
		if _, ok := oreByName(name); !ok {
			return fmt.Errorf("tuning: unknown ore %q", name)
		}
	}
	return nil
}

// Prices converts the named ore price table to tile kinds.
func (t Tuning) Prices() map[world.TileKind]int {
	out := make(map[world.TileKind]int, len(t.OrePrices))
	for name, price := range t.OrePrices {
		if kind, ok := oreByName(name); ok {
			out[kind] = price
		}
	}
	return out
}

func oreByName(name string) (world.TileKind, bool) {
	for _, k := range world.OreKinds {
		if k.String() == name {
			return k, true
		}
	}
	return world.TileEmpty, false
}
