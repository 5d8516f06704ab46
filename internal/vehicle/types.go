// Package vehicle implements the mining vehicle and its per-tick movement
// and digging state machine.
package vehicle

import (
	"errors"

	"github.com/talgya/digsim/internal/world"
)

var (
	// ErrResourceDepleted means the tank is dry; the action did not happen.
	ErrResourceDepleted = errors.New("vehicle: out of fuel")
	// ErrStructuralFailure means the hull is breached and the run is over.
	ErrStructuralFailure = errors.New("vehicle: hull breached")
	// ErrBlocked means the target is the world edge or bedrock.
	ErrBlocked = errors.New("vehicle: blocked")
)

// Direction is the held input for one tick.
type Direction uint8

const (
	None Direction = iota
	Up
	Down
	Left
	Right
)

// Delta returns the grid step for the direction. Y grows downward.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	default:
		return 0, 0
	}
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}

// ParseDirection maps an input name to a direction; unknown names are None.
func ParseDirection(s string) Direction {
	for _, d := range []Direction{Up, Down, Left, Right} {
		if d.String() == s {
			return d
		}
	}
	return None
}

// State is the vehicle's movement state.
type State uint8

const (
	Idle      State = iota
	Moving          // Advanced one tile in the held direction
	Digging         // Cleared the tile in the held direction
	Falling         // Descending without support
	Destroyed       // Hull breached; terminal until reset
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Moving:
		return "moving"
	case Digging:
		return "digging"
	case Falling:
		return "falling"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Terrain is the grid as the vehicle sees it: read access plus the two
// destructive operations it is allowed to perform.
type Terrain interface {
	world.View
	Dig(x, y int) (world.TileKind, bool)
	Explode(cx, cy, radius int) int
}

// Cargo is the part of the economy ledger the vehicle writes to.
type Cargo interface {
	CreditOre(kind world.TileKind, units int) int
	RecordDepth(depth int) bool
}

// Modifiers scale action costs. Values below 1 make actions cheaper.
type Modifiers interface {
	DigFactor() float64  // Drill bit
	MoveFactor() float64 // Engine
	HeatFactor() float64 // Cooling, applied to lava damage
}

// Rules are the fixed costs and damage values for a run.
type Rules struct {
	DigCost     float64 // Fuel per dirt tile
	MoveCost    float64 // Fuel per tile moved
	IdleBurn    float64 // Fuel per tick below the surface band
	SafeFall    int     // Tiles of unsupported descent that cause no damage
	FallPerTile float64 // Damage per tile beyond SafeFall
	GasDamage   float64
	GasRadius   int
	LavaDamage  float64
}

// Action is what the vehicle did during one step.
type Action uint8

const (
	ActionNone Action = iota
	ActionMove
	ActionDig
	ActionFall
)

// Report describes the outcome of one step for the clock and event layer.
type Report struct {
	Action       Action
	Err          error          // Why the held action was rejected, if it was
	Dug          world.TileKind // Valid when Action == ActionDig
	OreCredited  int
	OreLost      int
	Exploded     int     // Cells cleared by a gas pocket
	HazardDamage float64 // Gas or lava damage taken
	Landed       bool
	FallDistance int     // Tiles fallen, set on landing
	FallDamage   float64 // Damage taken on landing
	Destroyed    bool    // The hull was breached during this step
	NewDepth     bool    // A new maximum depth was recorded
}
