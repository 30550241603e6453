// Package limits implements optional per-user exposure limits layered
// over the solvency invariant: a ceiling on synthetic debt and a cap on
// collateral held per asset.
//
// The health factor alone bounds leverage, not absolute size. A single
// user absorbing most of the approved collateral or synthetic supply
// concentrates liquidation risk; these limits keep any one position
// small enough to unwind.
package limits

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrDebtCeilingExceeded is returned when an operation would push a
	// user's synthetic debt beyond the per-user ceiling.
	ErrDebtCeilingExceeded = errors.New("limits: debt ceiling exceeded")

	// ErrCollateralCapExceeded is returned when a deposit would push a
	// user's balance in one asset beyond the per-asset cap.
	ErrCollateralCapExceeded = errors.New("limits: collateral cap exceeded")
)

// PositionLimits bounds one user's exposure. A nil or zero field
// disables that check.
type PositionLimits struct {
	// MaxDebt is the maximum synthetic debt a single user may carry,
	// in 18-decimal fixed-point.
	MaxDebt *uint256.Int

	// MaxCollateralPerAsset is the maximum balance a single user may
	// hold in any one collateral asset, in 18-decimal fixed-point.
	MaxCollateralPerAsset *uint256.Int
}

// CheckDebt validates a user's prospective total debt.
func (l *PositionLimits) CheckDebt(newDebt *uint256.Int) error {
	if l == nil || l.MaxDebt == nil || l.MaxDebt.IsZero() {
		return nil
	}
	if newDebt.Gt(l.MaxDebt) {
		return ErrDebtCeilingExceeded
	}
	return nil
}

// CheckCollateral validates a user's prospective balance in one asset.
func (l *PositionLimits) CheckCollateral(newBalance *uint256.Int) error {
	if l == nil || l.MaxCollateralPerAsset == nil || l.MaxCollateralPerAsset.IsZero() {
		return nil
	}
	if newBalance.Gt(l.MaxCollateralPerAsset) {
		return ErrCollateralCapExceeded
	}
	return nil
}
