// World generation using seeded simplex noise and a seeded PRNG.
// Rock ratio, ore richness, and hazard density all scale with depth.
package world

import (
	"errors"
	"fmt"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters. It is immutable for the
// lifetime of a world; a new config means a new world.
type GenConfig struct {
	Seed        int64 `json:"seed" yaml:"seed"`
	Width       int   `json:"width" yaml:"width"`
	Height      int   `json:"height" yaml:"height"`
	SurfaceRows int   `json:"surface_rows" yaml:"surface_rows"` // Rows [0, SurfaceRows) are open sky
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:        42,
		Width:       64,
		Height:      128,
		SurfaceRows: 3,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Seed:        7,
		Width:       16,
		Height:      32,
		SurfaceRows: 2,
	}
}

// Validate checks that the config describes a usable world: at least one
// surface row, at least one ground row, and a bedrock row beneath it.
func (c GenConfig) Validate() error {
	if c.Width <= 0 {
		return errors.New("world: width must be positive")
	}
	if c.SurfaceRows < 1 {
		return errors.New("world: surface rows must be at least 1")
	}
	if c.Height < c.SurfaceRows+2 {
		return fmt.Errorf("world: height %d leaves no ground below %d surface rows", c.Height, c.SurfaceRows)
	}
	return nil
}

// oreRule describes where an ore variant can appear.
type oreRule struct {
	Kind     TileKind
	MinDepth float64 // Depth fraction where the ore starts appearing
	MaxProb  float64 // Probability at the very bottom
}

// Deeper ores are checked first so rarer finds are not shadowed by common ones.
var oreRules = []oreRule{
	{TileDiamond, 0.75, 0.010},
	{TilePlatinum, 0.55, 0.015},
	{TileGold, 0.35, 0.025},
	{TileSilver, 0.20, 0.035},
	{TileIron, 0.05, 0.045},
	{TileCopper, 0.00, 0.060},
}

const (
	rockBase      = 0.10 // Rock ratio just below the surface
	rockDepth     = 0.50 // Additional rock ratio at the bottom
	gasBase       = 0.004
	gasDepth      = 0.030
	lavaStart     = 0.50 // Lava only appears in the lower half
	lavaDepth     = 0.060
	hazardFreeRow = 2 // Ground rows directly under the surface kept hazard-free
)

// Generate builds the tile array for cfg. Output is indexed [x][y] and is
// identical for identical configs. Panics on an invalid config; callers
// validate first.
func Generate(cfg GenConfig) [][]TileKind {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	rockNoise := opensimplex.NewNormalized(cfg.Seed)
	veinNoise := opensimplex.NewNormalized(cfg.Seed + 1)

	groundRows := cfg.Height - 1 - cfg.SurfaceRows

	tiles := make([][]TileKind, cfg.Width)
	for x := range tiles {
		tiles[x] = make([]TileKind, cfg.Height)
	}

	// Row-major so the PRNG stream does not depend on width changes mid-row.
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			switch {
			case y < cfg.SurfaceRows:
				tiles[x][y] = TileSurface
			case y == cfg.Height-1:
				tiles[x][y] = TileBedrock
			default:
				depth := float64(y-cfg.SurfaceRows) / float64(groundRows)
				rock := octaveNoise(rockNoise, float64(x), float64(y), 3, 0.12, 0.5)
				vein := octaveNoise(veinNoise, float64(x), float64(y), 2, 0.20, 0.5)
				tiles[x][y] = groundTile(rng, depth, rock, vein, y-cfg.SurfaceRows < hazardFreeRow)
			}
		}
	}

	return tiles
}

// groundTile picks the tile for one ground cell. Every call consumes the
// same number of PRNG draws so that output stays stable per seed.
func groundTile(rng *rand.Rand, depth, rock, vein float64, hazardFree bool) TileKind {
	hazardRoll := rng.Float64()
	oreRoll := rng.Float64()
	baseRoll := rng.Float64()

	if !hazardFree {
		gas := gasBase + gasDepth*depth
		lava := 0.0
		if depth > lavaStart {
			lava = lavaDepth * (depth - lavaStart) / (1 - lavaStart)
		}
		if hazardRoll < lava {
			return TileLava
		}
		if hazardRoll < lava+gas {
			return TileGas
		}
	}

	// Veins concentrate ore: vein noise in [0,1] scales probability by 0.5–1.5.
	cum := 0.0
	for _, rule := range oreRules {
		if depth < rule.MinDepth {
			continue
		}
		p := rule.MaxProb * (0.3 + 0.7*(depth-rule.MinDepth)/(1-rule.MinDepth))
		cum += p * (0.5 + vein)
		if oreRoll < cum {
			return rule.Kind
		}
	}

	rockRatio := (rockBase + rockDepth*depth) * (0.5 + rock)
	if baseRoll < rockRatio {
		return TileRock
	}
	return TileDirt
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TileCounts returns a summary of tile kind distribution for a generated array.
func TileCounts(tiles [][]TileKind) map[TileKind]int {
	counts := make(map[TileKind]int)
	for _, col := range tiles {
		for _, k := range col {
			counts[k]++
		}
	}
	return counts
}
