package vehicle

import "github.com/talgya/digsim/internal/ledger"

// Equipment holds the drill, engine, and cooling tiers. Each tier value is
// a multiplier applied to the matching cost.
type Equipment struct {
	Drill   *ledger.Track
	Engine  *ledger.Track
	Cooling *ledger.Track
}

// NewEquipment creates equipment at tier 0 from the three ladders.
func NewEquipment(drill, engine, cooling []ledger.Tier) *Equipment {
	return &Equipment{
		Drill:   ledger.NewTrack("drill", drill),
		Engine:  ledger.NewTrack("engine", engine),
		Cooling: ledger.NewTrack("cooling", cooling),
	}
}

func (e *Equipment) DigFactor() float64  { return e.Drill.Value() }
func (e *Equipment) MoveFactor() float64 { return e.Engine.Value() }
func (e *Equipment) HeatFactor() float64 { return e.Cooling.Value() }

// Reset returns every part to tier 0.
func (e *Equipment) Reset() {
	e.Drill.Reset()
	e.Engine.Reset()
	e.Cooling.Reset()
}

// Flat is a Modifiers with fixed factors, used when no equipment applies.
type Flat struct{ Dig, Move, Heat float64 }

func (f Flat) DigFactor() float64  { return f.Dig }
func (f Flat) MoveFactor() float64 { return f.Move }
func (f Flat) HeatFactor() float64 { return f.Heat }

// Stock is the unmodified baseline.
var Stock = Flat{Dig: 1, Move: 1, Heat: 1}
