// Package economy provides the cash-and-cargo ledger and ore pricing.
package economy

import (
	"github.com/talgya/digsim/internal/world"
)

// DefaultPrices returns the sale price per unit of each ore variant.
func DefaultPrices() map[world.TileKind]int {
	return map[world.TileKind]int{
		world.TileCopper:   30,
		world.TileIron:     60,
		world.TileSilver:   120,
		world.TileGold:     250,
		world.TilePlatinum: 500,
		world.TileDiamond:  1200,
	}
}

// Manifest is a snapshot of cargo contents.
type Manifest map[world.TileKind]int

// Units returns the total number of ore units in the manifest.
func (m Manifest) Units() int {
	n := 0
	for _, c := range m {
		n += c
	}
	return n
}

// Value prices the manifest; unknown kinds are worth nothing.
func (m Manifest) Value(prices map[world.TileKind]int) int {
	total := 0
	for kind, c := range m {
		total += c * prices[kind]
	}
	return total
}
