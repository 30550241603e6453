// Package token defines the external token collaborators the engine
// moves assets through: the synthetic-asset ledger (mint/burn/transfer,
// with minting privileged to the engine) and one collateral transfer
// interface per approved asset.
//
// The engine depends only on these interfaces. MemoryBank implements
// both for development and tests; a deployment substitutes real token
// ledgers.
package token

import (
	"context"
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when a transfer or burn exceeds
	// the holder's balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	// ErrNotMinter is returned when an account other than the registered
	// minter attempts to mint.
	ErrNotMinter = errors.New("token: minting not authorized")
)

// SyntheticToken is the synthetic-asset ledger. Mint is privileged to
// the engine; Burn destroys units held by the engine after it has
// pulled them in.
type SyntheticToken interface {
	Mint(ctx context.Context, to string, amount *uint256.Int) error
	Burn(ctx context.Context, from string, amount *uint256.Int) error
	TransferFrom(ctx context.Context, from, to string, amount *uint256.Int) error
}

// CollateralToken moves one collateral asset. Transfer pushes out of
// engine custody; TransferFrom pulls from a user into custody.
type CollateralToken interface {
	Transfer(ctx context.Context, to string, amount *uint256.Int) error
	TransferFrom(ctx context.Context, from, to string, amount *uint256.Int) error
}
