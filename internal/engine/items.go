package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/digsim/internal/ledger"
	"github.com/talgya/digsim/internal/vehicle"
)

var (
	// ErrNoItem is returned when using an item the inventory does not hold.
	ErrNoItem = errors.New("engine: item not in inventory")
	// ErrUnknownItem is returned for item names the shop does not sell.
	ErrUnknownItem = errors.New("engine: unknown item")
)

// ItemKind is a consumable sold at the shop.
type ItemKind uint8

const (
	Dynamite   ItemKind = iota // Clears a small radius around the vehicle
	Charge                     // Clears a larger radius
	Teleporter                 // Returns the vehicle to the surface
	FuelCan                    // Adds fuel on the spot
	RepairKit                  // Restores hull on the spot
)

// ItemKinds lists every item in shop order.
var ItemKinds = []ItemKind{Dynamite, Charge, Teleporter, FuelCan, RepairKit}

var itemNames = [...]string{
	Dynamite:   "dynamite",
	Charge:     "charge",
	Teleporter: "teleporter",
	FuelCan:    "fuel_can",
	RepairKit:  "repair_kit",
}

func (k ItemKind) String() string {
	if int(k) < len(itemNames) {
		return itemNames[k]
	}
	return "unknown"
}

// ParseItem maps a shop name to an item.
func ParseItem(name string) (ItemKind, error) {
	for _, k := range ItemKinds {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownItem, name)
}

// ItemPrice returns the shop price of an item.
func (s *Simulation) ItemPrice(k ItemKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.itemPrice(k)
}

func (s *Simulation) itemPrice(k ItemKind) int {
	items := s.tuning.Items
	switch k {
	case Dynamite:
		return items.DynamitePrice
	case Charge:
		return items.ChargePrice
	case Teleporter:
		return items.TeleporterPrice
	case FuelCan:
		return items.FuelCanPrice
	case RepairKit:
		return items.RepairKitPrice
	}
	return 0
}

// BuyItem purchases one item into the inventory.
func (s *Simulation) BuyItem(k ItemKind) error {
	if int(k) >= len(itemNames) {
		return fmt.Errorf("%w: %d", ErrUnknownItem, k)
	}
	return s.atShop(func() error {
		price := s.itemPrice(k)
		if !s.econ.Spend(price) {
			return fmt.Errorf("buy %s: %w", k, ledger.ErrInsufficientFunds)
		}
		s.items[k]++
		s.emit(CategoryShop, fmt.Sprintf("Bought %s for $%d", k, price))
		return nil
	})
}

// UseItem consumes one item wherever the vehicle is. Fuel and hull effects
// go through the ledgers, so capacity bounds hold.
func (s *Simulation) UseItem(k ItemKind) error {
	s.mu.Lock()
	fire, err := s.useItem(k)
	s.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
	return err
}

func (s *Simulation) useItem(k ItemKind) ([]func(), error) {
	if s.vehicle.Destroyed() {
		return nil, vehicle.ErrStructuralFailure
	}
	if s.items[k] == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoItem, k)
	}

	items := s.tuning.Items
	v := s.vehicle
	var desc string
	switch k {
	case Dynamite:
		n := v.ExplodeAt(v.X, v.Y, items.DynamiteRadius)
		desc = fmt.Sprintf("Dynamite cleared %d tiles", n)
	case Charge:
		n := v.ExplodeAt(v.X, v.Y, items.ChargeRadius)
		desc = fmt.Sprintf("Charge cleared %d tiles", n)
	case Teleporter:
		if err := v.TeleportToSurface(); err != nil {
			return nil, err
		}
		desc = "Teleported to the surface"
	case FuelCan:
		added := s.fuel.Add(items.FuelCanAmount)
		desc = fmt.Sprintf("Fuel can added %.1f fuel", added)
	case RepairKit:
		repaired := s.hull.Repair(items.RepairKitAmount)
		desc = fmt.Sprintf("Repair kit restored %.1f hull", repaired)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownItem, k)
	}

	s.items[k]--
	s.emit(CategoryItem, desc)
	return s.surfaceEdge(), nil
}

// Inventory returns a copy of the items held.
func (s *Simulation) Inventory() map[ItemKind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[ItemKind]int, len(s.items))
	for k, n := range s.items {
		if n > 0 {
			out[k] = n
		}
	}
	return out
}
