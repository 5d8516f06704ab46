package economy

import (
	"errors"
	"testing"

	"github.com/talgya/digsim/internal/ledger"
	"github.com/talgya/digsim/internal/progress"
	"github.com/talgya/digsim/internal/world"
)

func newTestLedger(cash, capacity int, sink progress.Sink) *Ledger {
	cargo := ledger.NewTrack("cargo", []ledger.Tier{{Cost: 0, Value: float64(capacity)}, {Cost: 500, Value: float64(capacity * 2)}})
	return NewLedger(cash, cargo, DefaultPrices(), sink)
}

func TestLedger_CargoFullRejectsCredit(t *testing.T) {
	l := newTestLedger(0, 10, nil)
	if got := l.CreditOre(world.TileCopper, 10); got != 10 {
		t.Fatalf("accepted %d, want 10", got)
	}
	if got := l.CreditOre(world.TileCopper, 1); got != 0 {
		t.Fatalf("accepted %d over capacity", got)
	}
	if got := l.Ore()[world.TileCopper]; got != 10 {
		t.Fatalf("copper = %d, want 10", got)
	}
	if l.Cash() != 0 {
		t.Fatalf("cash changed to %d before selling", l.Cash())
	}
}

func TestLedger_CreditPartial(t *testing.T) {
	l := newTestLedger(0, 5, nil)
	l.CreditOre(world.TileIron, 3)
	if got := l.CreditOre(world.TileGold, 4); got != 2 {
		t.Fatalf("accepted %d, want 2", got)
	}
	if got := l.CreditOre(world.TileDirt, 1); got != 0 {
		t.Fatal("dirt credited as ore")
	}
	if l.CargoUsed() != 5 || l.CargoFree() != 0 {
		t.Fatalf("used=%d free=%d", l.CargoUsed(), l.CargoFree())
	}
}

func TestLedger_SellAllOreDrains(t *testing.T) {
	sink := progress.NewLocal()
	l := newTestLedger(100, 20, sink)
	l.CreditOre(world.TileCopper, 3)
	l.CreditOre(world.TileGold, 2)

	want := 3*30 + 2*250
	if got := l.SellAllOre(); got != want {
		t.Fatalf("first sale = %d, want %d", got, want)
	}
	if got := l.SellAllOre(); got != 0 {
		t.Fatalf("second sale = %d, want 0", got)
	}
	if l.CargoUsed() != 0 || len(l.Ore()) != 0 {
		t.Fatalf("hold not empty: %v", l.Ore())
	}
	if l.Cash() != 100+want {
		t.Fatalf("cash = %d", l.Cash())
	}
	if sink.XP() != want/progress.XPPerCashDiv {
		t.Fatalf("xp = %d", sink.XP())
	}
}

func TestLedger_SpendAtomic(t *testing.T) {
	l := newTestLedger(50, 1, nil)
	if l.Spend(60) || l.Cash() != 50 {
		t.Fatalf("overspend accepted, cash = %d", l.Cash())
	}
	if l.Spend(-5) || l.Cash() != 50 {
		t.Fatal("negative spend accepted")
	}
	if !l.Spend(50) || l.Cash() != 0 {
		t.Fatalf("exact spend failed, cash = %d", l.Cash())
	}
}

func TestLedger_UpgradeCargo(t *testing.T) {
	l := newTestLedger(400, 10, nil)
	if err := l.UpgradeCargo(); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	l.Earn(100)
	if err := l.UpgradeCargo(); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if l.CargoCapacity() != 20 || l.Cash() != 0 {
		t.Fatalf("capacity=%d cash=%d", l.CargoCapacity(), l.Cash())
	}
	if err := l.UpgradeCargo(); !errors.Is(err, ledger.ErrAlreadyMaxTier) {
		t.Fatalf("err = %v, want ErrAlreadyMaxTier", err)
	}
}

func TestLedger_RecordDepthMonotonic(t *testing.T) {
	sink := progress.NewLocal()
	l := newTestLedger(0, 1, sink)
	for _, d := range []int{3, 1, 7, 7, 2} {
		l.RecordDepth(d)
	}
	if l.MaxDepth() != 7 {
		t.Fatalf("max depth = %d, want 7", l.MaxDepth())
	}
	if sink.XP() != 7*progress.XPPerDepth {
		t.Fatalf("xp = %d", sink.XP())
	}
}

func TestLedger_Reset(t *testing.T) {
	l := newTestLedger(600, 10, nil)
	_ = l.UpgradeCargo()
	l.CreditOre(world.TileSilver, 4)
	l.RecordDepth(12)
	l.Reset()
	if l.Cash() != 600 || l.CargoCapacity() != 10 || l.CargoUsed() != 0 || l.MaxDepth() != 0 {
		t.Fatalf("after reset: cash=%d cap=%d used=%d depth=%d", l.Cash(), l.CargoCapacity(), l.CargoUsed(), l.MaxDepth())
	}
}
