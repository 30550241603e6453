// Package oracle adapts external price sources into normalized USD
// valuations for the engine's approved collateral assets.
//
// Raw quotes carry 8 implied decimal places; the adapter normalizes
// them to 18-decimal fixed-point by a constant 1e10 scale factor.
// Non-positive quotes are rejected outright rather than allowed to
// flow into a valuation, and stale quotes are rejected when a maximum
// quote age is configured.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/atmx/synth-engine/internal/fixed"
)

// QuoteDecimals is the implied decimal precision of raw quotes.
const QuoteDecimals = 8

// feedScale lifts an 8-decimal raw price to 18-decimal fixed-point.
var feedScale = uint256.NewInt(1e10)

var (
	// ErrUnknownAsset is returned for assets outside the approved set.
	ErrUnknownAsset = errors.New("oracle: asset not in approved set")

	// ErrInvalidQuote is returned when a source reports a non-positive
	// price. A zero or negative price must never produce a USD value.
	ErrInvalidQuote = errors.New("oracle: invalid price quote")

	// ErrStaleQuote is returned when a quote is older than the
	// configured maximum age.
	ErrStaleQuote = errors.New("oracle: stale price quote")

	// ErrConfigMismatch is returned at construction when the asset and
	// price-source lists have different lengths.
	ErrConfigMismatch = errors.New("oracle: asset and price source lists length mismatch")
)

// Quote is a raw reading from a price source: a signed 8-decimal price
// and the time it was last updated.
type Quote struct {
	Price     int64     `json:"price"` // 8 implied decimals
	UpdatedAt time.Time `json:"updated_at"`
}

// PriceSource returns the latest quote for one price feed.
type PriceSource interface {
	LatestQuote(ctx context.Context) (Quote, error)
}

// Adapter maps approved assets to their price sources and converts raw
// quotes into normalized USD valuations. The asset set is fixed at
// construction; the enumeration order is the construction order.
type Adapter struct {
	assets  []string
	sources map[string]PriceSource
	maxAge  time.Duration // 0 disables the staleness check
	now     func() time.Time
}

// NewAdapter pairs each asset with its price source in order. The two
// lists must have equal length.
func NewAdapter(assets []string, sources []PriceSource, maxAge time.Duration) (*Adapter, error) {
	if len(assets) != len(sources) {
		return nil, fmt.Errorf("%w: %d assets, %d sources", ErrConfigMismatch, len(assets), len(sources))
	}
	byAsset := make(map[string]PriceSource, len(assets))
	for i, asset := range assets {
		if _, dup := byAsset[asset]; dup {
			return nil, fmt.Errorf("%w: duplicate asset %q", ErrConfigMismatch, asset)
		}
		byAsset[asset] = sources[i]
	}
	return &Adapter{
		assets:  append([]string(nil), assets...),
		sources: byAsset,
		maxAge:  maxAge,
		now:     time.Now,
	}, nil
}

// Assets returns the approved assets in construction order.
func (a *Adapter) Assets() []string {
	return append([]string(nil), a.assets...)
}

// Quote fetches and validates the raw quote for an asset.
func (a *Adapter) Quote(ctx context.Context, asset string) (Quote, error) {
	src, ok := a.sources[asset]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	q, err := src.LatestQuote(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %s: %v", ErrInvalidQuote, asset, err)
	}
	if q.Price <= 0 {
		return Quote{}, fmt.Errorf("%w: %s: price %d", ErrInvalidQuote, asset, q.Price)
	}
	if a.maxAge > 0 && a.now().Sub(q.UpdatedAt) > a.maxAge {
		return Quote{}, fmt.Errorf("%w: %s: updated %s", ErrStaleQuote, asset, q.UpdatedAt.Format(time.RFC3339))
	}
	return q, nil
}

// normalizedPrice returns the asset's USD price in 18-decimal
// fixed-point.
func (a *Adapter) normalizedPrice(ctx context.Context, asset string) (*uint256.Int, error) {
	q, err := a.Quote(ctx, asset)
	if err != nil {
		return nil, err
	}
	price := uint256.NewInt(uint64(q.Price))
	return new(uint256.Int).Mul(price, feedScale), nil
}

// ValueInUSD converts an asset amount into its USD value:
// amount × price / 1e18, truncating toward zero.
func (a *Adapter) ValueInUSD(ctx context.Context, asset string, amount *uint256.Int) (*uint256.Int, error) {
	price, err := a.normalizedPrice(ctx, asset)
	if err != nil {
		return nil, err
	}
	return fixed.MulDiv(amount, price, fixed.Wad)
}

// AmountForUSDValue is the inverse of ValueInUSD: the native asset
// amount worth the given USD value, usd × 1e18 / price, truncating
// toward zero. Used by liquidation to size the collateral payout.
func (a *Adapter) AmountForUSDValue(ctx context.Context, asset string, usd *uint256.Int) (*uint256.Int, error) {
	price, err := a.normalizedPrice(ctx, asset)
	if err != nil {
		return nil, err
	}
	// normalizedPrice rejects non-positive quotes, so price > 0 here.
	return fixed.MulDiv(usd, fixed.Wad, price)
}
