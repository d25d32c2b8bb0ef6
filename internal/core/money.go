package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount bounds parsed amounts so that cents always fit in an int64.
var maxAmount = decimal.New(1, 15)

// ParseDecimalToCents converts a user-typed amount to cents.
//
// Dot and comma are both accepted as the decimal separator. Digits past the
// second decimal are rounded half-up. Signs, exponents, grouping separators,
// zero and anything that rounds to zero are rejected with ErrInvalidAmount.
//
//	ParseDecimalToCents("12,34")  -> 1234
//	ParseDecimalToCents("12.345") -> 1235
//	ParseDecimalToCents("0.004")  -> ErrInvalidAmount
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if !isPlainDecimal(s) {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.GreaterThanOrEqual(maxAmount) {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0).IntPart()
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// isPlainDecimal accepts digits with at most one dot and at least one digit.
func isPlainDecimal(s string) bool {
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// Decimal returns the amount in currency units as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Units returns the amount in currency units, the representation stored in the
// Amount column and summed by the analyzer.
func (m Money) Units() float64 {
	return m.Decimal().InexactFloat64()
}

// MoneyFromUnits converts a stored unit amount back to cents, rounding half away from zero.
func MoneyFromUnits(v float64) Money {
	return Money{Cents: decimal.NewFromFloat(v).Shift(2).Round(0).IntPart()}
}

// String formats the amount with two decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
