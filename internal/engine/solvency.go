package engine

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/atmx/synth-engine/internal/fixed"
	"github.com/atmx/synth-engine/internal/metrics"
	"github.com/atmx/synth-engine/internal/model"
)

// positionView reads a position from either the committed ledger or a
// staged transaction.
type positionView interface {
	position(user string) model.Position
}

type ledgerView struct{ eng *Engine }

func (v ledgerView) position(user string) model.Position {
	return v.eng.ledger.Position(user)
}

// collateralValue sums the USD value of every non-zero collateral
// balance, enumerating assets in configuration order.
func (e *Engine) collateralValue(ctx context.Context, v positionView, user string) (*uint256.Int, error) {
	p := v.position(user)
	total := uint256.NewInt(0)

	for _, asset := range e.ledger.Assets() {
		bal := p.Collateral[asset]
		if bal == nil || bal.IsZero() {
			continue
		}
		usd, err := e.oracle.ValueInUSD(ctx, asset, bal)
		if err != nil {
			metrics.OracleErrors.Inc()
			return nil, err
		}
		total, err = fixed.Add(total, usd)
		if err != nil {
			return nil, err
		}
	}
	return total, nil
}

// healthFactor computes (collateralValue × 50/100) × 1e18 / debt. A
// debt-free position is unconditionally safe and returns the maximal
// sentinel instead of attempting the division.
func (e *Engine) healthFactor(ctx context.Context, v positionView, user string) (*uint256.Int, error) {
	p := v.position(user)
	if p.Debt.IsZero() {
		return new(uint256.Int).Set(MaxHealthFactor), nil
	}

	value, err := e.collateralValue(ctx, v, user)
	if err != nil {
		return nil, err
	}
	adjusted, err := fixed.MulDiv(value, liquidationThreshold, liquidationPrecision)
	if err != nil {
		return nil, err
	}
	return fixed.MulDiv(adjusted, fixed.Wad, p.Debt)
}

// assertHealthy is the single solvency gate: it fails when the health
// factor is strictly below the minimum.
func (e *Engine) assertHealthy(ctx context.Context, v positionView, user string) error {
	hf, err := e.healthFactor(ctx, v, user)
	if err != nil {
		return err
	}
	if hf.Lt(MinHealthFactor) {
		metrics.HealthCheckFailures.Inc()
		return fmt.Errorf("%w: %s", ErrHealthFactorBroken, fixed.ToDecimal(hf))
	}
	return nil
}

// healthFactorString renders a health factor for journal entries,
// swallowing oracle errors: the journal is observational and must not
// fail a committed operation.
func (e *Engine) healthFactorString(ctx context.Context, v positionView, user string) string {
	hf, err := e.healthFactor(ctx, v, user)
	if err != nil {
		return ""
	}
	return hfString(hf)
}

func hfString(hf *uint256.Int) string {
	if hf.Eq(MaxHealthFactor) {
		return "max"
	}
	return fixed.ToDecimal(hf).String()
}

// --- public read-only surface ---

// TotalCollateralValue returns the USD value of a user's collateral.
func (e *Engine) TotalCollateralValue(ctx context.Context, user string) (*uint256.Int, error) {
	return e.collateralValue(ctx, ledgerView{e}, user)
}

// HealthFactor returns a user's current health factor, MaxHealthFactor
// when the position is debt-free.
func (e *Engine) HealthFactor(ctx context.Context, user string) (*uint256.Int, error) {
	return e.healthFactor(ctx, ledgerView{e}, user)
}
