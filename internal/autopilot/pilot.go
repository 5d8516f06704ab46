// Package autopilot drives a run without a player: a rule-based state
// machine that picks one held direction per tick and shops at the surface.
// Every tick it evaluates the run bottom-up and takes the most urgent goal.
package autopilot

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/digsim/internal/engine"
	"github.com/talgya/digsim/internal/ledger"
	"github.com/talgya/digsim/internal/tuning"
	"github.com/talgya/digsim/internal/vehicle"
	"github.com/talgya/digsim/internal/world"
)

// Goal is what the pilot is trying to do this tick.
type Goal uint8

const (
	GoalIdle    Goal = iota // Run is over
	GoalShop                // At the surface with business to do
	GoalReturn              // Heading up: low fuel, low hull, or full hold
	GoalDescend             // Mining downward
)

func (g Goal) String() string {
	switch g {
	case GoalShop:
		return "shop"
	case GoalReturn:
		return "return"
	case GoalDescend:
		return "descend"
	default:
		return "idle"
	}
}

// Thresholds.
const (
	fuelMargin   = 3.0  // Spare fuel kept on top of the climb estimate
	hullReturn   = 0.4  // Head home below this hull fraction
	hullEmergent = 0.25 // Use a repair kit below this hull fraction
	upgradeSlack = 1.5  // Keep this multiple of a full refuel after upgrading
)

// upgradeOrder is the order systems are bought in when cash allows.
var upgradeOrder = []string{"drill", "fuel", "cargo", "hull", "engine", "cooling"}

// Decision is one tick's plan.
type Decision struct {
	Goal   Goal
	Held   vehicle.Direction
	Shop   bool              // Run the surface shopping routine first
	Use    []engine.ItemKind // Items to use first, in order
	Detail string
}

// Pilot holds the rules and the little state the rules need.
type Pilot struct {
	rules tuning.Tuning
	side  vehicle.Direction // Preferred sidestep direction
	last  Goal
}

// New creates a pilot for a balancing table.
func New(t tuning.Tuning) *Pilot {
	return &Pilot{rules: t, side: vehicle.Right}
}

// Decide picks the goal and held direction for the current state.
func (p *Pilot) Decide(snap engine.Snapshot, v world.View) Decision {
	if snap.GameOver {
		return Decision{Goal: GoalIdle, Held: vehicle.None, Detail: "hull breached"}
	}

	if snap.AtSurface {
		if needsShop(snap) {
			return Decision{Goal: GoalShop, Shop: true, Held: vehicle.Down, Detail: "shopping before the next dive"}
		}
		return p.descend(snap, v)
	}

	need := p.climbFuel(snap.Depth)
	hullFrac := snap.Hull / max(snap.HullMax, 1)

	var use []engine.ItemKind
	if snap.Fuel < need && snap.Items[engine.Teleporter.String()] > 0 {
		return Decision{Goal: GoalReturn, Held: vehicle.None, Use: []engine.ItemKind{engine.Teleporter}, Detail: "teleporting home"}
	}
	if snap.Fuel < need && snap.Items[engine.FuelCan.String()] > 0 {
		use = append(use, engine.FuelCan)
	}
	if hullFrac < hullEmergent && snap.Items[engine.RepairKit.String()] > 0 {
		use = append(use, engine.RepairKit)
	}

	switch {
	case snap.Fuel < need:
		return Decision{Goal: GoalReturn, Held: vehicle.Up, Use: use, Detail: "fuel low"}
	case hullFrac < hullReturn && len(use) == 0:
		return Decision{Goal: GoalReturn, Held: vehicle.Up, Detail: "hull damaged"}
	case snap.CargoUsed >= snap.CargoCapacity:
		return Decision{Goal: GoalReturn, Held: vehicle.Up, Use: use, Detail: "hold full"}
	}
	d := p.descend(snap, v)
	d.Use = use
	return d
}

// climbFuel estimates the fuel needed to get back up from depth, assuming
// every tile on the way has to be dug.
func (p *Pilot) climbFuel(depth int) float64 {
	perTile := p.rules.DigCost*2 + p.rules.MoveCost + p.rules.IdleBurn
	return float64(depth+1)*perTile + fuelMargin
}

func needsShop(snap engine.Snapshot) bool {
	return snap.CargoUsed > 0 || snap.Fuel < snap.FuelCapacity || snap.Hull < snap.HullMax
}

// descend heads down, stepping around hazards and bedrock and detouring
// for ore directly beside the vehicle.
func (p *Pilot) descend(snap engine.Snapshot, v world.View) Decision {
	x, y := snap.X, snap.Y

	for _, side := range []vehicle.Direction{p.side, opposite(p.side)} {
		dx, _ := side.Delta()
		if k, err := v.TileAt(x+dx, y); err == nil && k.IsOre() && !snap.AtSurface {
			return Decision{Goal: GoalDescend, Held: side, Detail: fmt.Sprintf("mining %s", k)}
		}
	}

	below, err := v.TileAt(x, y+1)
	if err == nil && !avoid(below) {
		return Decision{Goal: GoalDescend, Held: vehicle.Down, Detail: "digging down"}
	}

	for _, side := range []vehicle.Direction{p.side, opposite(p.side)} {
		dx, _ := side.Delta()
		k, err := v.TileAt(x+dx, y)
		if err != nil || avoid(k) {
			continue
		}
		p.side = side
		return Decision{Goal: GoalDescend, Held: side, Detail: fmt.Sprintf("stepping around %s", below)}
	}
	return Decision{Goal: GoalReturn, Held: vehicle.Up, Detail: "boxed in"}
}

// avoid reports tiles the pilot will not dig into.
func avoid(k world.TileKind) bool {
	return k.IsHazard() || k == world.TileBedrock
}

func opposite(d vehicle.Direction) vehicle.Direction {
	if d == vehicle.Left {
		return vehicle.Right
	}
	return vehicle.Left
}

// Counter is the surface shop as the pilot sees it. A local simulation and
// a remote API client both satisfy it.
type Counter interface {
	Snapshot() (engine.Snapshot, error)
	Quote() (engine.Quote, error)
	SellOre() (int, error)
	RepairHull() error
	Refuel() error
	Upgrade(system string) error
	BuyItem(k engine.ItemKind) error
}

// local adapts a simulation to Counter.
type local struct{ *engine.Simulation }

func (l local) Snapshot() (engine.Snapshot, error) { return l.Simulation.Snapshot(), nil }
func (l local) Quote() (engine.Quote, error)       { return l.Simulation.Quote(), nil }

// Step decides and acts for one tick: items, shopping, then input.
func (p *Pilot) Step(sim *engine.Simulation) Decision {
	snap := sim.Snapshot()
	var d Decision
	sim.View(func(v world.View) { d = p.Decide(snap, v) })

	for _, item := range d.Use {
		if err := sim.UseItem(item); err != nil {
			slog.Debug("autopilot item failed", "item", item, "error", err)
		}
	}
	if d.Shop {
		if err := p.Shop(local{sim}); err != nil {
			slog.Debug("autopilot shopping failed", "error", err)
		}
	}
	sim.SetHeld(d.Held)

	p.Observe(d, snap.Depth)
	return d
}

// Observe logs goal changes.
func (p *Pilot) Observe(d Decision, depth int) {
	if d.Goal != p.last {
		slog.Debug("autopilot goal", "goal", d.Goal, "detail", d.Detail, "depth", depth)
		p.last = d.Goal
	}
}

// Shop sells the hold, repairs, refuels, then buys whatever upgrades the
// remaining cash covers while keeping a refuel reserve.
func (p *Pilot) Shop(c Counter) error {
	if _, err := c.SellOre(); err != nil {
		return fmt.Errorf("sell: %w", err)
	}
	for _, op := range []func() error{c.RepairHull, c.Refuel} {
		if err := op(); err != nil && !errors.Is(err, ledger.ErrInsufficientFunds) {
			return err
		}
	}

	snap, err := c.Snapshot()
	if err != nil {
		return err
	}
	quote, err := c.Quote()
	if err != nil {
		return err
	}
	cash := snap.Cash
	reserve := int(snap.FuelCapacity*p.rules.FuelPrice*upgradeSlack) + 1
	for _, system := range upgradeOrder {
		cost := quote.Upgrades[system]
		if cost == ledger.MaxedCost || cash-cost < reserve {
			continue
		}
		if err := c.Upgrade(system); err != nil {
			slog.Debug("autopilot upgrade failed", "system", system, "error", err)
			continue
		}
		cash -= cost
	}

	if price := quote.Items[engine.Teleporter.String()]; snap.Items[engine.Teleporter.String()] == 0 && cash-price >= reserve*2 {
		if err := c.BuyItem(engine.Teleporter); err != nil {
			slog.Debug("autopilot purchase failed", "error", err)
		}
	}
	return nil
}
