package economy

import (
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/digsim/internal/ledger"
	"github.com/talgya/digsim/internal/progress"
	"github.com/talgya/digsim/internal/world"
)

// Ledger holds cash, the ore hold, and the deepest point reached.
// Cash never goes negative; the hold never exceeds cargo capacity.
type Ledger struct {
	cash      int
	startCash int
	ore       Manifest
	cargo     *ledger.Track
	prices    map[world.TileKind]int
	maxDepth  int
	sink      progress.Sink
}

// NewLedger creates a ledger with starting cash. A nil sink discards reports.
func NewLedger(startCash int, cargo *ledger.Track, prices map[world.TileKind]int, sink progress.Sink) *Ledger {
	if sink == nil {
		sink = progress.Nop{}
	}
	if prices == nil {
		prices = DefaultPrices()
	}
	return &Ledger{
		cash:      max(0, startCash),
		startCash: max(0, startCash),
		ore:       make(Manifest),
		cargo:     cargo,
		prices:    prices,
		sink:      sink,
	}
}

func (l *Ledger) Cash() int                     { return l.cash }
func (l *Ledger) MaxDepth() int                 { return l.maxDepth }
func (l *Ledger) CargoTrack() *ledger.Track     { return l.cargo }
func (l *Ledger) Price(kind world.TileKind) int { return l.prices[kind] }

// CargoCapacity returns the maximum number of ore units the hold carries.
func (l *Ledger) CargoCapacity() int { return int(l.cargo.Value()) }

// CargoUsed returns the number of ore units in the hold.
func (l *Ledger) CargoUsed() int { return l.ore.Units() }

// CargoFree returns remaining hold space.
func (l *Ledger) CargoFree() int { return max(0, l.CargoCapacity()-l.CargoUsed()) }

// Ore returns a copy of the hold.
func (l *Ledger) Ore() Manifest {
	out := make(Manifest, len(l.ore))
	for k, v := range l.ore {
		out[k] = v
	}
	return out
}

// OreValue returns what the hold would sell for right now.
func (l *Ledger) OreValue() int { return l.ore.Value(l.prices) }

// Spend deducts cash. It returns false and changes nothing when the
// amount is negative or more than the balance.
func (l *Ledger) Spend(amount int) bool {
	if amount < 0 || amount > l.cash {
		return false
	}
	l.cash -= amount
	return true
}

// Earn adds cash. Negative amounts are ignored.
func (l *Ledger) Earn(amount int) {
	if amount > 0 {
		l.cash += amount
	}
}

// CreditOre loads units of an ore variant into the hold one at a time;
// units beyond capacity are lost. Returns the number accepted.
func (l *Ledger) CreditOre(kind world.TileKind, units int) int {
	if !kind.IsOre() || units <= 0 {
		return 0
	}
	accepted := min(units, l.CargoFree())
	if accepted > 0 {
		l.ore[kind] += accepted
	}
	if accepted < units {
		slog.Debug("cargo full, ore lost", "ore", kind.String(), "lost", units-accepted)
	}
	return accepted
}

// SellAllOre empties the hold and banks its value. A second call with
// nothing mined in between returns 0.
func (l *Ledger) SellAllOre() int {
	value := l.OreValue()
	units := l.CargoUsed()
	l.ore = make(Manifest)
	if value > 0 {
		l.cash += value
		l.sink.OreSold(value)
		slog.Info("ore sold", "units", units, "value", humanize.Comma(int64(value)), "cash", humanize.Comma(int64(l.cash)))
	}
	return value
}

// RecordDepth notes the vehicle's depth below the surface in tiles and
// reports new maxima. Returns true when a new maximum was set.
func (l *Ledger) RecordDepth(depth int) bool {
	if depth <= l.maxDepth {
		return false
	}
	l.maxDepth = depth
	l.sink.DepthReached(depth)
	return true
}

// UpgradeCargo buys a larger hold with ledger cash.
func (l *Ledger) UpgradeCargo() error {
	return l.cargo.Upgrade(l)
}

// Restore sets persisted cash, cargo tier, and maximum depth. The hold
// starts empty. Depth is restored without reporting.
func (l *Ledger) Restore(cash, cargoLevel, maxDepth int) {
	l.cash = max(0, cash)
	l.cargo.SetLevel(cargoLevel)
	l.maxDepth = max(0, maxDepth)
	l.ore = make(Manifest)
}

// Reset returns to starting cash, an empty base hold, and zero depth.
func (l *Ledger) Reset() {
	l.cash = l.startCash
	l.cargo.Reset()
	l.maxDepth = 0
	l.ore = make(Manifest)
}
