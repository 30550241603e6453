// Package fixed provides checked 18-decimal fixed-point arithmetic on
// 256-bit unsigned integers.
//
// All engine-internal amounts, prices, and ratios are uint256 values
// scaled by 1e18 ("wad"). Division truncates toward zero; addition,
// subtraction, and multiplication fail explicitly on overflow or
// underflow — never silent wraparound. shopspring/decimal is used only
// at the API boundary for human-readable amounts.
package fixed

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// WadDecimals is the fixed-point scale used throughout the engine.
const WadDecimals = 18

// Wad is 1e18, the fixed-point unit.
var Wad = uint256.NewInt(1e18)

var (
	// ErrOverflow is returned when an addition or multiplication exceeds
	// the 256-bit range.
	ErrOverflow = errors.New("fixed: arithmetic overflow")

	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("fixed: arithmetic underflow")

	// ErrOutOfRange is returned when a decimal cannot be represented as
	// a non-negative 18-decimal fixed-point value.
	ErrOutOfRange = errors.New("fixed: value out of range")
)

// Add returns a + b, failing on overflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return sum, nil
}

// Sub returns a - b, failing on underflow.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrUnderflow
	}
	return diff, nil
}

// Mul returns a * b, failing on overflow.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	prod, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return prod, nil
}

// MulDiv returns (a * b) / den with truncating division. The caller
// must guarantee den is non-zero.
func MulDiv(a, b, den *uint256.Int) (*uint256.Int, error) {
	prod, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Div(prod, den), nil
}

// FromDecimal converts a decimal amount into its 18-decimal fixed-point
// representation, truncating toward zero. Negative values and values
// exceeding the 256-bit range fail with ErrOutOfRange.
func FromDecimal(d decimal.Decimal) (*uint256.Int, error) {
	scaled := d.Shift(WadDecimals).Truncate(0)
	if scaled.Sign() < 0 {
		return nil, ErrOutOfRange
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, ErrOutOfRange
	}
	return v, nil
}

// ToDecimal converts an 18-decimal fixed-point value back into a
// decimal. The conversion is exact.
func ToDecimal(v *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v.ToBig(), -WadDecimals)
}
