// Package model defines the core domain types shared across the engine.
// All balances are 18-decimal fixed-point uint256 values — never
// float64 for money.
package model

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Position is one user's collateral and debt balances. A position is
// created implicitly on first deposit; a position with zero balances is
// indistinguishable from a non-existent one.
type Position struct {
	// Collateral maps approved asset IDs to deposited amounts in
	// asset-native 18-decimal fixed-point units.
	Collateral map[string]*uint256.Int

	// Debt is the outstanding synthetic-asset liability, numerically
	// equal to USD owed under the 1:1 peg.
	Debt *uint256.Int
}

// NewPosition returns an empty position.
func NewPosition() Position {
	return Position{
		Collateral: make(map[string]*uint256.Int),
		Debt:       uint256.NewInt(0),
	}
}

// Clone returns a deep copy. Balances are copied so the original and
// the clone never alias.
func (p Position) Clone() Position {
	c := Position{
		Collateral: make(map[string]*uint256.Int, len(p.Collateral)),
		Debt:       uint256.NewInt(0),
	}
	for asset, amount := range p.Collateral {
		c.Collateral[asset] = new(uint256.Int).Set(amount)
	}
	if p.Debt != nil {
		c.Debt.Set(p.Debt)
	}
	return c
}

// Balance returns the collateral balance for one asset, zero if none.
func (p Position) Balance(asset string) *uint256.Int {
	if amount, ok := p.Collateral[asset]; ok {
		return new(uint256.Int).Set(amount)
	}
	return uint256.NewInt(0)
}

// IsEmpty reports whether the position holds no collateral and no debt.
func (p Position) IsEmpty() bool {
	if p.Debt != nil && !p.Debt.IsZero() {
		return false
	}
	for _, amount := range p.Collateral {
		if !amount.IsZero() {
			return false
		}
	}
	return true
}

// JournalEntry is an immutable record of one committed ledger mutation.
// Once created, these are never modified or deleted.
type JournalEntry struct {
	ID           string          `json:"id" db:"id"`
	Op           string          `json:"op" db:"op"` // deposit, mint, redeem, burn, liquidate
	User         string          `json:"user" db:"user_id"`
	Counterparty string          `json:"counterparty,omitempty" db:"counterparty"` // liquidator, if any
	Asset        string          `json:"asset,omitempty" db:"asset"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	HealthFactor string          `json:"health_factor" db:"health_factor"` // post-op, "max" when debt-free
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}
