// Package fixedpoint converts on-chain fixed-point integers into bounded
// ratios without going through float64 until the very last step.
package fixedpoint

import (
	"errors"
	"fmt"
	"math"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// WadDecimals is the scale of 1e18 fixed-point values (LLTV, IRM targets).
const WadDecimals = 18

var (
	ErrInvalidAmount  = errors.New("invalid fixed-point amount")
	ErrNegativeAmount = errors.New("fixed-point amount is negative")
)

// Wad is 1e18 as an integer.
var Wad = sdkmath.NewIntWithDecimal(1, WadDecimals)

// ParseWad parses a base-10 integer string as emitted by indexers and RPCs.
func ParseWad(s string) (sdkmath.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if v.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrNegativeAmount, s)
	}
	return v, nil
}

// WadToDec converts a 1e18-scaled integer to a decimal. A nil Int is zero.
func WadToDec(v sdkmath.Int) sdkmath.LegacyDec {
	return ScaleToDec(v, WadDecimals)
}

// ScaleToDec converts a token amount with the given decimals to a decimal.
// LegacyDec carries 18 digits of precision, so scales above that are divided
// down and rounded at the 18th digit.
func ScaleToDec(v sdkmath.Int, decimals uint8) sdkmath.LegacyDec {
	if v.IsNil() {
		return sdkmath.LegacyZeroDec()
	}
	if decimals <= sdkmath.LegacyPrecision {
		return sdkmath.LegacyNewDecFromIntWithPrec(v, int64(decimals))
	}
	denom := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntWithDecimal(1, int(decimals)))
	return sdkmath.LegacyNewDecFromInt(v).Quo(denom)
}

// RatioDec returns num/den clamped to [0,1]. A zero or negative denominator
// yields zero.
func RatioDec(num, den sdkmath.LegacyDec) sdkmath.LegacyDec {
	if num.IsNil() || den.IsNil() || !den.IsPositive() || !num.IsPositive() {
		return sdkmath.LegacyZeroDec()
	}
	r := num.Quo(den)
	if r.GT(sdkmath.LegacyOneDec()) {
		return sdkmath.LegacyOneDec()
	}
	return r
}

// ClampDec01 bounds d to [0,1].
func ClampDec01(d sdkmath.LegacyDec) sdkmath.LegacyDec {
	switch {
	case d.IsNil() || d.IsNegative():
		return sdkmath.LegacyZeroDec()
	case d.GT(sdkmath.LegacyOneDec()):
		return sdkmath.LegacyOneDec()
	default:
		return d
	}
}

// DecToFloat converts a decimal to float64. Conversion failures map to zero.
func DecToFloat(d sdkmath.LegacyDec) float64 {
	if d.IsNil() {
		return 0
	}
	f, err := d.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Ratio is the float counterpart of RatioDec used for USD-denominated
// figures. Non-finite operands and non-positive denominators yield zero.
func Ratio(num, den float64) float64 {
	if !finite(num) || !finite(den) || den <= 0 || num <= 0 {
		return 0
	}
	return Clamp01(num / den)
}

// Quotient is num/den without the upper clamp; used where the caller needs
// values above 1 (coverage multiples). Zero-safe like Ratio.
func Quotient(num, den float64) float64 {
	if !finite(num) || !finite(den) || den <= 0 || num <= 0 {
		return 0
	}
	q := num / den
	if !finite(q) {
		return math.MaxFloat64
	}
	return q
}

// Clamp bounds x to [lo,hi]. NaN maps to lo.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clamp01 bounds x to [0,1].
func Clamp01(x float64) float64 { return Clamp(x, 0, 1) }

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
