package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

// MemoryBank is an in-memory multi-asset balance ledger implementing
// both collaborator interfaces. Used by the dev server and tests.
type MemoryBank struct {
	mu       sync.Mutex
	balances map[string]map[string]*uint256.Int // asset -> account -> balance
}

// NewMemoryBank creates an empty bank.
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{balances: make(map[string]map[string]*uint256.Int)}
}

// SetBalance sets an account's balance for an asset. Test/dev seeding.
func (b *MemoryBank) SetBalance(asset, account string, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.account(asset, account).Set(amount)
}

// Balance returns an account's balance for an asset.
func (b *MemoryBank) Balance(asset, account string) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(uint256.Int).Set(b.account(asset, account))
}

// account returns the mutable balance cell, creating it at zero.
// Caller must hold b.mu.
func (b *MemoryBank) account(asset, acct string) *uint256.Int {
	accounts, ok := b.balances[asset]
	if !ok {
		accounts = make(map[string]*uint256.Int)
		b.balances[asset] = accounts
	}
	bal, ok := accounts[acct]
	if !ok {
		bal = uint256.NewInt(0)
		accounts[acct] = bal
	}
	return bal
}

func (b *MemoryBank) transfer(asset, from, to string, amount *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	src := b.account(asset, from)
	if src.Lt(amount) {
		return fmt.Errorf("%w: %s has %s %s, need %s", ErrInsufficientBalance, from, src.Dec(), asset, amount.Dec())
	}
	src.Sub(src, amount)
	dst := b.account(asset, to)
	dst.Add(dst, amount)
	return nil
}

// Collateral returns the transfer interface for one asset, with the
// given account as engine custody (the source of Transfer pushes).
func (b *MemoryBank) Collateral(asset, custodian string) CollateralToken {
	return &collateralToken{bank: b, asset: asset, custodian: custodian}
}

// Synthetic returns the synthetic-asset ledger for the given
// denomination, with minting privileged to the minter account.
func (b *MemoryBank) Synthetic(denom, minter string) SyntheticToken {
	return &syntheticToken{bank: b, denom: denom, minter: minter}
}

type collateralToken struct {
	bank      *MemoryBank
	asset     string
	custodian string
}

func (t *collateralToken) Transfer(_ context.Context, to string, amount *uint256.Int) error {
	return t.bank.transfer(t.asset, t.custodian, to, amount)
}

func (t *collateralToken) TransferFrom(_ context.Context, from, to string, amount *uint256.Int) error {
	return t.bank.transfer(t.asset, from, to, amount)
}

type syntheticToken struct {
	bank   *MemoryBank
	denom  string
	minter string
}

func (t *syntheticToken) Mint(_ context.Context, to string, amount *uint256.Int) error {
	t.bank.mu.Lock()
	defer t.bank.mu.Unlock()

	bal := t.bank.account(t.denom, to)
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return fmt.Errorf("%s: mint overflows balance of %s", t.denom, to)
	}
	bal.Set(sum)
	return nil
}

func (t *syntheticToken) Burn(_ context.Context, from string, amount *uint256.Int) error {
	if from != t.minter {
		return fmt.Errorf("%w: burn from %s", ErrNotMinter, from)
	}
	t.bank.mu.Lock()
	defer t.bank.mu.Unlock()

	bal := t.bank.account(t.denom, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: burn %s exceeds %s", ErrInsufficientBalance, amount.Dec(), bal.Dec())
	}
	bal.Sub(bal, amount)
	return nil
}

func (t *syntheticToken) TransferFrom(_ context.Context, from, to string, amount *uint256.Int) error {
	return t.bank.transfer(t.denom, from, to, amount)
}
