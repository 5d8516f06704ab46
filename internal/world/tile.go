// Package world provides the tile grid, tile kinds, and seeded world generation.
// The grid is indexed [x][y] with y growing downward from the sky.
package world

// TileKind identifies what occupies one cell of the grid.
type TileKind uint8

const (
	TileEmpty   TileKind = iota // Dug out or open cavity
	TileSurface                 // Sky/surface band, always traversable
	TileDirt                    // Soft base material
	TileRock                    // Hard base material, costs more to drill
	TileCopper                  // Ore variants, ordered by value
	TileIron
	TileSilver
	TileGold
	TilePlatinum
	TileDiamond
	TileGas     // Pocket that explodes when drilled
	TileLava    // Heat damage when drilled, reduced by cooling
	TileBedrock // Bottom boundary, never dug or exploded
)

// OreKinds lists every ore variant from least to most valuable.
var OreKinds = []TileKind{TileCopper, TileIron, TileSilver, TileGold, TilePlatinum, TileDiamond}

// IsOre reports whether the tile is a collectible ore variant.
func (k TileKind) IsOre() bool {
	return k >= TileCopper && k <= TileDiamond
}

// IsHazard reports whether the tile is gas or lava.
func (k TileKind) IsHazard() bool {
	return k == TileGas || k == TileLava
}

// Solid reports whether the vehicle cannot pass through without digging.
func (k TileKind) Solid() bool {
	return k != TileEmpty && k != TileSurface
}

// Diggable reports whether Dig can clear the tile.
func (k TileKind) Diggable() bool {
	return k.Solid() && k != TileBedrock
}

// Hardness is the dig cost multiplier for the tile.
func (k TileKind) Hardness() float64 {
	switch {
	case k == TileRock:
		return 2
	case k.IsOre():
		return 1 + float64(k-TileCopper)*0.25
	case k == TileLava:
		return 1.5
	default:
		return 1
	}
}

// Glyph returns a one-character rendering used by logs and the debug API.
func (k TileKind) Glyph() byte {
	switch k {
	case TileEmpty:
		return ' '
	case TileSurface:
		return '.'
	case TileDirt:
		return '#'
	case TileRock:
		return '%'
	case TileCopper:
		return 'c'
	case TileIron:
		return 'i'
	case TileSilver:
		return 's'
	case TileGold:
		return 'g'
	case TilePlatinum:
		return 'p'
	case TileDiamond:
		return 'd'
	case TileGas:
		return '~'
	case TileLava:
		return '^'
	case TileBedrock:
		return '='
	default:
		return '?'
	}
}

// ParseGlyph maps a Glyph back to its tile kind. Unknown glyphs are
// reported as not ok.
func ParseGlyph(b byte) (TileKind, bool) {
	for k := TileEmpty; k <= TileBedrock; k++ {
		if k.Glyph() == b {
			return k, true
		}
	}
	return TileEmpty, false
}

// String returns a human-readable name for the tile kind.
func (k TileKind) String() string {
	switch k {
	case TileEmpty:
		return "Empty"
	case TileSurface:
		return "Surface"
	case TileDirt:
		return "Dirt"
	case TileRock:
		return "Rock"
	case TileCopper:
		return "Copper"
	case TileIron:
		return "Iron"
	case TileSilver:
		return "Silver"
	case TileGold:
		return "Gold"
	case TilePlatinum:
		return "Platinum"
	case TileDiamond:
		return "Diamond"
	case TileGas:
		return "Gas"
	case TileLava:
		return "Lava"
	case TileBedrock:
		return "Bedrock"
	default:
		return "Unknown"
	}
}
