package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/talgya/digsim/internal/ledger"
	"github.com/talgya/digsim/internal/vehicle"
)

// ErrNotAtSurface is returned by shop calls made below the surface band.
var ErrNotAtSurface = errors.New("engine: shop is only reachable at the surface")

// atShop runs fn under the lock once the vehicle is intact and in the
// surface band. fn applies fully or returns an error having changed nothing.
func (s *Simulation) atShop(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vehicle.Destroyed() {
		return vehicle.ErrStructuralFailure
	}
	if !s.vehicle.AtSurface() {
		return ErrNotAtSurface
	}
	return fn()
}

// Refuel fills the tank at FuelPrice per unit, rounded up.
func (s *Simulation) Refuel() error {
	return s.atShop(func() error {
		cost := int(math.Ceil(s.fuel.Missing() * s.tuning.FuelPrice))
		if cost <= 0 {
			return nil
		}
		if !s.econ.Spend(cost) {
			return fmt.Errorf("refuel: %w", ledger.ErrInsufficientFunds)
		}
		s.fuel.Refill()
		s.emit(CategoryShop, fmt.Sprintf("Refuelled for $%s", humanize.Comma(int64(cost))))
		return nil
	})
}

// RepairHull restores the hull to full at HullPrice per point, rounded up.
func (s *Simulation) RepairHull() error {
	return s.atShop(func() error {
		cost := int(math.Ceil(s.hull.Missing() * s.tuning.HullPrice))
		if cost <= 0 {
			return nil
		}
		if !s.econ.Spend(cost) {
			return fmt.Errorf("repair: %w", ledger.ErrInsufficientFunds)
		}
		s.hull.Repair(s.hull.Missing())
		s.emit(CategoryShop, fmt.Sprintf("Hull repaired for $%s", humanize.Comma(int64(cost))))
		return nil
	})
}

// SellOre sells the whole hold and returns the cash earned.
func (s *Simulation) SellOre() (int, error) {
	var value int
	err := s.atShop(func() error {
		units := s.econ.CargoUsed()
		value = s.econ.SellAllOre()
		if value > 0 {
			s.emit(CategoryShop, fmt.Sprintf("Sold %d ore for $%s", units, humanize.Comma(int64(value))))
		}
		return nil
	})
	return value, err
}

func (s *Simulation) UpgradeFuelTank() error {
	return s.upgrade(s.fuel.Track(), func() error { return s.fuel.Upgrade(s.econ) })
}

func (s *Simulation) UpgradeHull() error {
	return s.upgrade(s.hull.Track(), func() error { return s.hull.Upgrade(s.econ) })
}

func (s *Simulation) UpgradeCargo() error {
	return s.upgrade(s.econ.CargoTrack(), s.econ.UpgradeCargo)
}

func (s *Simulation) UpgradeDrill() error {
	return s.upgrade(s.equip.Drill, func() error { return s.equip.Drill.Upgrade(s.econ) })
}

func (s *Simulation) UpgradeEngine() error {
	return s.upgrade(s.equip.Engine, func() error { return s.equip.Engine.Upgrade(s.econ) })
}

func (s *Simulation) UpgradeCooling() error {
	return s.upgrade(s.equip.Cooling, func() error { return s.equip.Cooling.Upgrade(s.econ) })
}

// upgrade buys the next tier on a track. buy must leave everything
// untouched when it fails.
func (s *Simulation) upgrade(track *ledger.Track, buy func() error) error {
	return s.atShop(func() error {
		cost := track.UpgradeCost()
		if err := buy(); err != nil {
			return err
		}
		s.emit(CategoryShop, fmt.Sprintf("Upgraded %s to tier %d for $%s",
			track.Name, track.Level(), humanize.Comma(int64(cost))))
		return nil
	})
}

// Upgrade dispatches an upgrade by system name.
func (s *Simulation) Upgrade(system string) error {
	switch system {
	case "fuel":
		return s.UpgradeFuelTank()
	case "hull":
		return s.UpgradeHull()
	case "cargo":
		return s.UpgradeCargo()
	case "drill":
		return s.UpgradeDrill()
	case "engine":
		return s.UpgradeEngine()
	case "cooling":
		return s.UpgradeCooling()
	}
	return fmt.Errorf("engine: unknown system %q", system)
}

// Quote lists what every shop action would cost right now. Upgrade costs
// are ledger.MaxedCost for maxed systems.
type Quote struct {
	Refuel   int            `json:"refuel"`
	Repair   int            `json:"repair"`
	OreValue int            `json:"ore_value"`
	Upgrades map[string]int `json:"upgrades"`
	Items    map[string]int `json:"items"`
}

// Quote prices the shop for the current state.
func (s *Simulation) Quote() Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := Quote{
		Refuel:   int(math.Ceil(s.fuel.Missing() * s.tuning.FuelPrice)),
		Repair:   int(math.Ceil(s.hull.Missing() * s.tuning.HullPrice)),
		OreValue: s.econ.OreValue(),
		Upgrades: map[string]int{
			"fuel":    s.fuel.Track().UpgradeCost(),
			"hull":    s.hull.Track().UpgradeCost(),
			"cargo":   s.econ.CargoTrack().UpgradeCost(),
			"drill":   s.equip.Drill.UpgradeCost(),
			"engine":  s.equip.Engine.UpgradeCost(),
			"cooling": s.equip.Cooling.UpgradeCost(),
		},
		Items: make(map[string]int, len(ItemKinds)),
	}
	for _, k := range ItemKinds {
		q.Items[k.String()] = s.itemPrice(k)
	}
	return q
}
