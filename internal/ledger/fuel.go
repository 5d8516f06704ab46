package ledger

// Fuel is the vehicle's tank. Capacity comes from its track; the level
// always stays within [0, Capacity].
type Fuel struct {
	tank    *Track
	current float64
	paused  bool
}

// NewFuel creates a full tank.
func NewFuel(tank *Track) *Fuel {
	f := &Fuel{tank: tank}
	f.current = f.Capacity()
	return f
}

func (f *Fuel) Current() float64  { return f.current }
func (f *Fuel) Capacity() float64 { return f.tank.Value() }
func (f *Fuel) Track() *Track     { return f.tank }

// Missing returns how much fuel would fill the tank.
func (f *Fuel) Missing() float64 { return f.Capacity() - f.current }

// Empty reports whether the tank is dry. An empty tank blocks the next
// dig or move but never damages the vehicle.
func (f *Fuel) Empty() bool { return f.current <= 0 }

// Debit burns fuel, clamping at zero. It never fails. While paused,
// consumption is not accounted.
func (f *Fuel) Debit(amount float64) {
	if f.paused || amount <= 0 {
		return
	}
	f.current = max(0, f.current-amount)
}

// Add puts fuel in the tank up to capacity and returns the amount added.
func (f *Fuel) Add(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	added := min(amount, f.Missing())
	f.current += added
	return added
}

// Refill tops the tank up.
func (f *Fuel) Refill() { f.current = f.Capacity() }

// Pause suspends consumption accounting.
func (f *Fuel) Pause() { f.paused = true }

// Resume restarts consumption accounting.
func (f *Fuel) Resume() { f.paused = false }

func (f *Fuel) Paused() bool { return f.paused }

// Upgrade buys a bigger tank. The current level is kept, clamped to the
// new capacity.
func (f *Fuel) Upgrade(p Payer) error {
	if err := f.tank.Upgrade(p); err != nil {
		return err
	}
	f.current = min(f.current, f.Capacity())
	return nil
}

// Restore sets a persisted tank tier and fuel level, clamped to bounds.
func (f *Fuel) Restore(level int, current float64) {
	f.tank.SetLevel(level)
	f.current = max(0, min(current, f.Capacity()))
}

// Reset returns to the starting tank, full.
func (f *Fuel) Reset() {
	f.tank.Reset()
	f.paused = false
	f.current = f.Capacity()
}
