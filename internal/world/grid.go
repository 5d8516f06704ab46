package world

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned for any access outside [0,width)×[0,height).
var ErrOutOfBounds = errors.New("world: coordinate out of bounds")

// View is the read-only face of a grid handed to collaborators that must
// not mutate it (vehicle queries, display, scoring).
type View interface {
	Width() int
	Height() int
	SurfaceRows() int
	TileAt(x, y int) (TileKind, error)
	Solid(x, y int) bool
	InBounds(x, y int) bool
}

// GenerateFunc builds the initial contents of a grid. Reset calls it again
// with the same config, so it must be deterministic.
type GenerateFunc func(cfg GenConfig) [][]TileKind

// Grid owns the mutable tile array. It is the only writer of tile state.
type Grid struct {
	cfg   GenConfig
	gen   GenerateFunc
	tiles [][]TileKind // [x][y]
}

// NewGrid generates a grid from cfg using the default generator.
func NewGrid(cfg GenConfig) *Grid {
	return NewGridWith(cfg, Generate)
}

// NewGridWith generates a grid with a custom generator. The generator must
// return width columns of height rows each.
func NewGridWith(cfg GenConfig, gen GenerateFunc) *Grid {
	g := &Grid{cfg: cfg, gen: gen}
	g.tiles = gen(cfg)
	return g
}

// Config returns the configuration the grid was generated from.
func (g *Grid) Config() GenConfig { return g.cfg }

func (g *Grid) Width() int       { return g.cfg.Width }
func (g *Grid) Height() int      { return g.cfg.Height }
func (g *Grid) SurfaceRows() int { return g.cfg.SurfaceRows }

// InBounds returns true if (x, y) lies inside the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.cfg.Width && y >= 0 && y < g.cfg.Height
}

// TileAt returns the tile kind at (x, y).
func (g *Grid) TileAt(x, y int) (TileKind, error) {
	if !g.InBounds(x, y) {
		return TileBedrock, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, x, y, g.cfg.Width, g.cfg.Height)
	}
	return g.tiles[x][y], nil
}

// Solid reports whether (x, y) blocks movement. Out-of-bounds is solid.
func (g *Grid) Solid(x, y int) bool {
	if !g.InBounds(x, y) {
		return true
	}
	return g.tiles[x][y].Solid()
}

// Dig clears the cell and returns its previous kind. The second result is
// false when there was nothing to dig (open, surface, bedrock, or outside
// the grid); the grid is unchanged in that case.
func (g *Grid) Dig(x, y int) (TileKind, bool) {
	if !g.InBounds(x, y) {
		return TileBedrock, false
	}
	prev := g.tiles[x][y]
	if !prev.Diggable() {
		return prev, false
	}
	g.tiles[x][y] = TileEmpty
	return prev, true
}

// Explode clears every diggable in-bounds cell within Euclidean distance
// radius of (cx, cy). Nothing is collected. Returns the number of cells cleared.
func (g *Grid) Explode(cx, cy, radius int) int {
	if radius < 0 {
		return 0
	}
	r2 := radius * radius
	cleared := 0
	for x := cx - radius; x <= cx+radius; x++ {
		for y := cy - radius; y <= cy+radius; y++ {
			if !g.InBounds(x, y) {
				continue
			}
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy > r2 {
				continue
			}
			if g.tiles[x][y].Diggable() {
				g.tiles[x][y] = TileEmpty
				cleared++
			}
		}
	}
	return cleared
}

// Reset regenerates the grid in place from its stored config, discarding
// every dig and explosion. The vehicle position is not owned here.
func (g *Grid) Reset() {
	g.tiles = g.gen(g.cfg)
}

// Counts returns a tally of tile kinds across the grid.
func (g *Grid) Counts() map[TileKind]int {
	return TileCounts(g.tiles)
}

// Row renders row y as glyphs, or "" when y is outside the grid.
func (g *Grid) Row(y int) string {
	if y < 0 || y >= g.cfg.Height {
		return ""
	}
	buf := make([]byte, g.cfg.Width)
	for x := 0; x < g.cfg.Width; x++ {
		buf[x] = g.tiles[x][y].Glyph()
	}
	return string(buf)
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, surface=%d, seed=%d)", g.cfg.Width, g.cfg.Height, g.cfg.SurfaceRows, g.cfg.Seed)
}
