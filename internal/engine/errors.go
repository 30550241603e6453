package engine

import "errors"

var (
	// ErrInvalidAmount is returned for zero amounts. Negative amounts
	// cannot be represented and are rejected at the API boundary.
	ErrInvalidAmount = errors.New("engine: amount must be positive")

	// ErrAssetNotApproved is returned for assets outside the approved
	// collateral set.
	ErrAssetNotApproved = errors.New("engine: asset not approved as collateral")

	// ErrTransferFailed is returned when a collateral or synthetic-asset
	// movement is declined by the token collaborator.
	ErrTransferFailed = errors.New("engine: token transfer failed")

	// ErrMintFailed is returned when the synthetic-asset ledger declines
	// a mint request.
	ErrMintFailed = errors.New("engine: synthetic mint failed")

	// ErrHealthFactorBroken is returned when an operation would leave a
	// position below the minimum health factor. The actual value travels
	// in the wrapped message.
	ErrHealthFactorBroken = errors.New("engine: health factor below minimum")

	// ErrHealthFactorOK is returned when liquidation is attempted on a
	// solvent position.
	ErrHealthFactorOK = errors.New("engine: health factor not below minimum")

	// ErrHealthFactorNotImproved is returned when a liquidation fails to
	// raise the victim's health factor.
	ErrHealthFactorNotImproved = errors.New("engine: liquidation did not improve health factor")

	// ErrInsufficientCollateral is returned when a redemption or seizure
	// exceeds the position's collateral balance.
	ErrInsufficientCollateral = errors.New("engine: insufficient collateral balance")

	// ErrInsufficientDebt is returned when a burn or debt cover exceeds
	// the position's outstanding debt.
	ErrInsufficientDebt = errors.New("engine: insufficient debt")

	// ErrReentrantCall is returned when a mutating operation is entered
	// while another is mid-flight inside an external collaborator call.
	ErrReentrantCall = errors.New("engine: reentrant call rejected")
)
