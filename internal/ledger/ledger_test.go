package ledger

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/atmx/synth-engine/internal/model"
)

func TestApprovedAssets(t *testing.T) {
	l := New([]string{"weth", "wbtc"})

	if !l.Approved("weth") || !l.Approved("wbtc") {
		t.Error("configured assets should be approved")
	}
	if l.Approved("doge") {
		t.Error("unknown asset should not be approved")
	}

	assets := l.Assets()
	if len(assets) != 2 || assets[0] != "weth" || assets[1] != "wbtc" {
		t.Errorf("assets should keep construction order, got %v", assets)
	}
}

func TestPosition_EmptyForUnknownUser(t *testing.T) {
	l := New([]string{"weth"})

	p := l.Position("nobody")
	if !p.IsEmpty() {
		t.Error("unknown user should have an empty position")
	}
	if !p.Balance("weth").IsZero() || !p.Debt.IsZero() {
		t.Error("unknown user balances should be zero")
	}
}

func TestApply_CommitsAndCopies(t *testing.T) {
	l := New([]string{"weth"})

	staged := model.NewPosition()
	staged.Collateral["weth"] = uint256.NewInt(100)
	staged.Debt = uint256.NewInt(40)
	l.Apply(map[string]model.Position{"alice": staged})

	committed := l.Position("alice")
	if got := committed.Balance("weth"); !got.Eq(uint256.NewInt(100)) {
		t.Errorf("balance: got %s, want 100", got.Dec())
	}
	if got := committed.Debt; !got.Eq(uint256.NewInt(40)) {
		t.Errorf("debt: got %s, want 40", got.Dec())
	}

	// Mutating the staged position after Apply must not leak through.
	staged.Collateral["weth"].SetUint64(1)
	if got := l.Position("alice").Balance("weth"); !got.Eq(uint256.NewInt(100)) {
		t.Errorf("ledger aliased staged state: got %s", got.Dec())
	}

	// Mutating a returned copy must not leak into the ledger.
	p := l.Position("alice")
	p.Collateral["weth"].SetUint64(7)
	p.Debt.SetUint64(0)
	after := l.Position("alice")
	if got := after.Balance("weth"); !got.Eq(uint256.NewInt(100)) {
		t.Errorf("ledger aliased returned copy: got %s", got.Dec())
	}
	if got := after.Debt; !got.Eq(uint256.NewInt(40)) {
		t.Errorf("ledger debt aliased returned copy: got %s", got.Dec())
	}
}
