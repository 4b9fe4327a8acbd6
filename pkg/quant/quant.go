// Package quant holds the fixed-point conventions shared by the pool.
//
// Amounts are int64 base units. Odds, margins, fees and ratios are scaled
// by Multiplier. Withdrawal fractions are scaled by FractionScale.
// Products are taken in 256-bit space so a*b never wraps before the division.
package quant

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

const (
	// Multiplier is the scale of odds, margins and fees (1.0 = 1e9).
	Multiplier int64 = 1_000_000_000

	// FractionScale is the scale of liquidity withdrawal fractions (100% = 1e12).
	FractionScale int64 = 1_000_000_000_000
)

// TimeStamp is a unix time in seconds.
type TimeStamp = int64

func u256(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func toInt64(x *uint256.Int, op string) int64 {
	if !x.IsUint64() || x.Uint64() > math.MaxInt64 {
		panic(fmt.Sprintf("QUANT_OVERFLOW: %s = %s", op, x.Dec()))
	}
	return int64(x.Uint64())
}

func abs(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

// MulDiv returns a*b/c truncated. Panics on negative input, zero divisor
// or an int64 overflow of the result.
func MulDiv(a, b, c int64) int64 {
	if a < 0 || b < 0 || c <= 0 {
		panic(fmt.Sprintf("QUANT_MULDIV_DOMAIN: %d * %d / %d", a, b, c))
	}
	x := u256(uint64(a))
	x.Mul(x, u256(uint64(b)))
	x.Div(x, u256(uint64(c)))
	return toInt64(x, "muldiv")
}

// MulDivSigned returns a*b/c truncated toward zero. c must be positive.
func MulDivSigned(a, b, c int64) int64 {
	if c <= 0 {
		panic(fmt.Sprintf("QUANT_MULDIV_DOMAIN: %d * %d / %d", a, b, c))
	}
	x := u256(abs(a))
	x.Mul(x, u256(abs(b)))
	x.Div(x, u256(uint64(c)))
	r := toInt64(x, "muldiv")
	if (a < 0) != (b < 0) {
		return -r
	}
	return r
}

// ApplyOdds returns amount*odds/Multiplier, the payout owed on a stake.
func ApplyOdds(amount, odds int64) int64 {
	return MulDiv(amount, odds, Multiplier)
}

// Share returns value*fraction/FractionScale.
func Share(value, fraction int64) int64 {
	return MulDiv(value, fraction, FractionScale)
}
