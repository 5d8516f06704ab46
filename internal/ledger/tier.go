// Package ledger provides bounded resource accounts and the tiered upgrade
// track shared by every upgradeable system (fuel tank, hull, cargo bay,
// drill, engine, cooling).
package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds means the payer could not cover the cost.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrAlreadyMaxTier means no further tier exists.
	ErrAlreadyMaxTier = errors.New("ledger: already at max tier")
)

// MaxedCost is returned by UpgradeCost when no further tier exists.
const MaxedCost = -1

// Tier is one upgrade level: what it costs to reach and the effect it grants
// (a capacity, or a cost multiplier, depending on the track).
type Tier struct {
	Cost  int     `yaml:"cost" json:"cost"`
	Value float64 `yaml:"value" json:"value"`
}

// Payer is anything that can be charged for an upgrade.
type Payer interface {
	Spend(amount int) bool
}

// Track is a tier ladder for one upgradeable system. Tier 0 is the
// starting equipment; its cost is never charged.
type Track struct {
	Name  string
	tiers []Tier
	level int
}

// NewTrack creates a track at tier 0. Panics on an empty tier list.
func NewTrack(name string, tiers []Tier) *Track {
	if len(tiers) == 0 {
		panic(fmt.Sprintf("ledger: track %q has no tiers", name))
	}
	cp := make([]Tier, len(tiers))
	copy(cp, tiers)
	return &Track{Name: name, tiers: cp}
}

// Level returns the current tier index.
func (t *Track) Level() int { return t.level }

// MaxLevel returns the highest tier index.
func (t *Track) MaxLevel() int { return len(t.tiers) - 1 }

// Value returns the effect of the current tier.
func (t *Track) Value() float64 { return t.tiers[t.level].Value }

// Maxed reports whether no further tier exists.
func (t *Track) Maxed() bool { return t.level >= t.MaxLevel() }

// UpgradeCost returns the price of the next tier, or MaxedCost.
func (t *Track) UpgradeCost() int {
	if t.Maxed() {
		return MaxedCost
	}
	return t.tiers[t.level+1].Cost
}

// Upgrade charges p for the next tier and advances. On any error the
// track and the payer are unchanged.
func (t *Track) Upgrade(p Payer) error {
	if t.Maxed() {
		return fmt.Errorf("%s: %w", t.Name, ErrAlreadyMaxTier)
	}
	if !p.Spend(t.tiers[t.level+1].Cost) {
		return fmt.Errorf("%s: %w", t.Name, ErrInsufficientFunds)
	}
	t.level++
	return nil
}

// SetLevel restores a persisted tier, clamped to the valid range.
func (t *Track) SetLevel(level int) {
	t.level = max(0, min(level, t.MaxLevel()))
}

// Reset returns the track to tier 0.
func (t *Track) Reset() { t.level = 0 }
