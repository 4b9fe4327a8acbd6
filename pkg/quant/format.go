package quant

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// FormatFixed renders a Multiplier-scaled value, e.g. 1902955904 -> "1.902955904".
func FormatFixed(v int64) string {
	return decimal.New(v, -9).String()
}

// FormatUnits renders base units with the given number of decimals.
func FormatUnits(v int64, decimals int32) string {
	return decimal.New(v, -decimals).StringFixed(decimals)
}

// ParseFixed parses a decimal string such as "0.05" into Multiplier scale.
// More than nine fractional digits is an error.
func ParseFixed(s string) (int64, error) {
	return parseScaled(s, 9)
}

// ParseUnits parses a decimal amount into base units with the given decimals.
func ParseUnits(s string, decimals int32) (int64, error) {
	return parseScaled(s, decimals)
}

func parseScaled(s string, exp int32) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	scaled := d.Shift(exp)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("decimal %q has more than %d fractional digits", s, exp)
	}
	if scaled.Abs().GreaterThan(maxInt64) {
		return 0, fmt.Errorf("decimal %q out of range", s)
	}
	return scaled.IntPart(), nil
}
