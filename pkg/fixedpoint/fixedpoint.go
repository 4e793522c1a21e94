// Package fixedpoint implements the signed fixed-point representation used
// throughout the validation engine for attested numeric values.
//
// Every value carries an implied scale of two decimal places: the integer
// 6816445 represents 68164.45. Fractional digits beyond the scale are
// truncated, never rounded; missing fractional digits are zero-padded.
//
// Examples:
//
//	Parse("68164.45")   → 6816445
//	Parse("68164.4523") → 6816445   (truncated)
//	Parse("68164.4")    → 6816440   (padded)
//	Parse("-12.5")      → -1250
//
// Values are *big.Int so that downstream arithmetic (deviation ratios,
// weighted score sums) never overflows regardless of magnitude.
package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"
)

// Scale is the number of implied fractional decimal digits.
const Scale = 2

// unit is 10^Scale, the multiplier between whole units and scaled values.
var unit = big.NewInt(100)

// Unit returns 10^Scale as a fresh big.Int, safe for the caller to mutate.
func Unit() *big.Int {
	return new(big.Int).Set(unit)
}

// Compose builds a scaled value from raw digit runs, applying the truncate
// and zero-pad normalization. intDigits and fracDigits must contain ASCII
// digits only (either may be empty). A value with no digits at all is zero.
func Compose(negative bool, intDigits, fracDigits string) *big.Int {
	if len(fracDigits) > Scale {
		fracDigits = fracDigits[:Scale]
	}
	for len(fracDigits) < Scale {
		fracDigits += "0"
	}

	combined := intDigits + fracDigits
	combined = strings.TrimLeft(combined, "0")
	if combined == "" {
		return new(big.Int)
	}

	v, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		// Callers guarantee digit-only input.
		return new(big.Int)
	}
	if negative {
		v.Neg(v)
	}
	return v
}

// Parse parses a decimal literal into a scaled value. It accepts an optional
// leading minus sign, a run of integer digits, and an optional fractional
// part separated by a single dot. At least one digit must be present.
func Parse(s string) (*big.Int, error) {
	raw := s
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	intPart, fracPart, found := strings.Cut(s, ".")
	if found && strings.Contains(fracPart, ".") {
		return nil, fmt.Errorf("invalid fixed-point literal %q: multiple decimal points", raw)
	}
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("invalid fixed-point literal %q: no digits", raw)
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return nil, fmt.Errorf("invalid fixed-point literal %q: non-digit character", raw)
	}

	return Compose(negative, intPart, fracPart), nil
}

// MustParse parses a decimal literal and panics on error. Useful in tests
// and static fixtures.
func MustParse(s string) *big.Int {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Format renders a scaled value as a decimal string with exactly Scale
// fractional digits: 6816445 → "68164.45", -1250 → "-12.50", 0 → "0.00".
func Format(v *big.Int) string {
	if v == nil {
		return "0.00"
	}
	abs := new(big.Int).Abs(v)
	q, r := new(big.Int).QuoRem(abs, unit, new(big.Int))
	sign := ""
	if v.Sign() < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%s.%02d", sign, q.String(), r.Int64())
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
