package vehicle

import (
	"log/slog"

	"github.com/talgya/digsim/internal/ledger"
	"github.com/talgya/digsim/internal/world"
)

// glide is how much of the visual offset survives each tick.
const glide = 0.5

// Vehicle is the player's digger. It is the only writer of the grid and
// the ledgers during a tick.
type Vehicle struct {
	X, Y             int       // Grid cell
	OffsetX, OffsetY float64   // Visual offset from the cell, eases toward 0
	Held             Direction // Input sampled once per step
	State            State

	terrain Terrain
	fuel    *ledger.Fuel
	hull    *ledger.Hull
	cargo   Cargo
	mods    Modifiers
	rules   Rules

	fall int // Unsupported tiles descended since the last landing
}

// New places a vehicle on the spawn cell of the terrain.
func New(t Terrain, fuel *ledger.Fuel, hull *ledger.Hull, cargo Cargo, mods Modifiers, rules Rules) *Vehicle {
	if mods == nil {
		mods = Stock
	}
	v := &Vehicle{
		terrain: t,
		fuel:    fuel,
		hull:    hull,
		cargo:   cargo,
		mods:    mods,
		rules:   rules,
	}
	v.Reset()
	return v
}

// Reset puts the vehicle back on the spawn cell, idle, with no input held.
// Ledgers are reset by their owner.
func (v *Vehicle) Reset() {
	v.X, v.Y = world.SpawnPoint(v.terrain)
	v.OffsetX, v.OffsetY = 0, 0
	v.Held = None
	v.State = Idle
	v.fall = 0
}

// AtSurface reports whether the vehicle is in the surface band, where the
// shop is reachable.
func (v *Vehicle) AtSurface() bool {
	return v.Y <= v.terrain.SurfaceRows()
}

// Depth returns tiles below the surface; 0 while standing on it.
func (v *Vehicle) Depth() int {
	return max(0, v.Y-v.terrain.SurfaceRows()+1)
}

// FallDistance returns the tiles descended since the last landing.
func (v *Vehicle) FallDistance() int { return v.fall }

// Destroyed reports whether the hull has been breached.
func (v *Vehicle) Destroyed() bool { return v.State == Destroyed }

// Step runs one tick: act on the held direction, apply gravity and
// landing, burn idle fuel, and record depth. The order is fixed; the hull
// breaching at any point ends the step with no further ledger changes.
func (v *Vehicle) Step() Report {
	var r Report
	if v.State == Destroyed {
		r.Err = ErrStructuralFailure
		return r
	}

	v.OffsetX = ease(v.OffsetX)
	v.OffsetY = ease(v.OffsetY)

	movedVert := false
	if v.Held == None {
		if v.State != Falling {
			v.State = Idle
		}
	} else {
		dx, dy := v.Held.Delta()
		tx, ty := v.X+dx, v.Y+dy
		switch {
		case !v.terrain.InBounds(tx, ty):
			v.reject(&r, ErrBlocked)
		case v.terrain.Solid(tx, ty):
			v.dig(&r, tx, ty)
		default:
			movedVert = v.move(&r, dx, dy)
		}
	}
	if v.State == Destroyed {
		return r
	}

	// Holding up with fuel in the tank keeps the thrusters on.
	hovering := v.Held == Up && !v.fuel.Empty()
	if !movedVert && !hovering {
		v.gravity(&r)
	}
	v.land(&r)
	if v.State == Destroyed {
		return r
	}

	if !v.AtSurface() {
		v.fuel.Debit(v.rules.IdleBurn)
	}
	r.NewDepth = v.cargo.RecordDepth(v.Depth())
	return r
}

// reject records a refused action. A falling vehicle keeps falling.
func (v *Vehicle) reject(r *Report, err error) {
	r.Err = err
	if v.State != Falling {
		v.State = Idle
	}
}

// dig clears the target tile. Fuel is checked before anything changes,
// so a dry tank leaves the grid untouched.
func (v *Vehicle) dig(r *Report, tx, ty int) {
	kind, err := v.terrain.TileAt(tx, ty)
	if err != nil || !kind.Diggable() {
		v.reject(r, ErrBlocked)
		return
	}
	if v.fuel.Empty() {
		v.reject(r, ErrResourceDepleted)
		return
	}

	v.fuel.Debit(v.rules.DigCost * kind.Hardness() * v.mods.DigFactor())
	v.terrain.Dig(tx, ty)
	v.State = Digging
	r.Action = ActionDig
	r.Dug = kind

	switch {
	case kind == world.TileGas:
		r.Exploded = v.terrain.Explode(tx, ty, v.rules.GasRadius)
		v.damage(r, v.rules.GasDamage)
		r.HazardDamage = v.rules.GasDamage
	case kind == world.TileLava:
		dmg := v.rules.LavaDamage * v.mods.HeatFactor()
		v.damage(r, dmg)
		r.HazardDamage = dmg
	case kind.IsOre():
		r.OreCredited = v.cargo.CreditOre(kind, 1)
		r.OreLost = 1 - r.OreCredited
	}
}

// move advances one tile into open space. Reports whether it moved vertically.
func (v *Vehicle) move(r *Report, dx, dy int) bool {
	if v.fuel.Empty() {
		v.reject(r, ErrResourceDepleted)
		return false
	}

	v.fuel.Debit(v.rules.MoveCost * v.mods.MoveFactor())
	v.X += dx
	v.Y += dy
	v.OffsetX, v.OffsetY = float64(-dx), float64(-dy)
	r.Action = ActionMove

	switch {
	case dy < 0:
		// Thrusting up arrests any fall in progress.
		v.fall = 0
		v.State = Moving
	case dy > 0:
		v.fall++
		v.State = Falling
	default:
		if v.State != Falling {
			v.State = Moving
		}
	}
	return dy != 0
}

// gravity drops the vehicle one tile when nothing is beneath it.
func (v *Vehicle) gravity(r *Report) {
	if v.terrain.Solid(v.X, v.Y+1) {
		return
	}
	v.Y++
	v.OffsetY = -1
	v.fall++
	switch r.Action {
	case ActionNone:
		r.Action = ActionFall
		v.State = Falling
	case ActionMove:
		v.State = Falling
	}
}

// land applies fall damage once the vehicle has footing again.
func (v *Vehicle) land(r *Report) {
	if v.fall == 0 || !v.terrain.Solid(v.X, v.Y+1) {
		return
	}
	dist := v.fall
	v.fall = 0
	if v.State == Falling {
		v.State = Idle
	}

	r.Landed = true
	r.FallDistance = dist
	r.FallDamage = ledger.FallDamage(dist, v.rules.SafeFall, v.rules.FallPerTile)
	if r.FallDamage > 0 {
		slog.Debug("hard landing", "tiles", dist, "damage", r.FallDamage)
		v.damage(r, r.FallDamage)
	}
}

// damage applies hull damage and handles a breach.
func (v *Vehicle) damage(r *Report, amount float64) {
	if v.hull.Damage(amount) {
		v.State = Destroyed
		v.Held = None
		r.Destroyed = true
	}
}

// ExplodeAt clears terrain around a point. Nothing is collected.
func (v *Vehicle) ExplodeAt(x, y, radius int) int {
	return v.terrain.Explode(x, y, radius)
}

// TeleportToSurface moves the vehicle to the spawn cell without any fall
// accounting.
func (v *Vehicle) TeleportToSurface() error {
	if v.State == Destroyed {
		return ErrStructuralFailure
	}
	v.X, v.Y = world.SpawnPoint(v.terrain)
	v.OffsetX, v.OffsetY = 0, 0
	v.fall = 0
	v.State = Idle
	return nil
}

func ease(o float64) float64 {
	o *= glide
	if o > -0.01 && o < 0.01 {
		return 0
	}
	return o
}
