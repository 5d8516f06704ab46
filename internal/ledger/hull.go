package ledger

// Hull is the vehicle's structural integrity. Reaching zero is terminal
// for the run.
type Hull struct {
	plating *Track
	current float64
}

// NewHull creates an undamaged hull.
func NewHull(plating *Track) *Hull {
	h := &Hull{plating: plating}
	h.current = h.Max()
	return h
}

func (h *Hull) Current() float64 { return h.current }
func (h *Hull) Max() float64     { return h.plating.Value() }
func (h *Hull) Track() *Track    { return h.plating }

// Missing returns how much repair would restore full integrity.
func (h *Hull) Missing() float64 { return h.Max() - h.current }

// Breached reports whether integrity has reached zero.
func (h *Hull) Breached() bool { return h.current <= 0 }

// Damage reduces integrity, clamping at zero, and reports a breach.
func (h *Hull) Damage(amount float64) bool {
	if amount > 0 {
		h.current = max(0, h.current-amount)
	}
	return h.Breached()
}

// Repair restores integrity up to the maximum and returns the amount repaired.
func (h *Hull) Repair(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	repaired := min(amount, h.Missing())
	h.current += repaired
	return repaired
}

// Upgrade buys heavier plating. Current integrity is kept, clamped to the
// new maximum.
func (h *Hull) Upgrade(p Payer) error {
	if err := h.plating.Upgrade(p); err != nil {
		return err
	}
	h.current = min(h.current, h.Max())
	return nil
}

// Restore sets a persisted plating tier and integrity, clamped to bounds.
func (h *Hull) Restore(level int, current float64) {
	h.plating.SetLevel(level)
	h.current = max(0, min(current, h.Max()))
}

// Reset returns to the starting plating, undamaged.
func (h *Hull) Reset() {
	h.plating.Reset()
	h.current = h.Max()
}

// FallDamage returns the damage for an unsupported descent of distance
// tiles: nothing up to safe, then perTile for each tile beyond it.
func FallDamage(distance, safe int, perTile float64) float64 {
	if distance <= safe {
		return 0
	}
	return float64(distance-safe) * perTile
}
