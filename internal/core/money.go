package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units together with the number of decimal
// places of its currency (0 for TWD or JPY, 2 for EUR).
type Money struct {
	Minor    int64
	Exponent int32
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Minor, -m.Exponent)
}

// String formats the amount with exactly Exponent decimal places.
func (m Money) String() string {
	return m.Decimal().StringFixed(m.Exponent)
}

// FormatAmount formats minor units for display.
func FormatAmount(minor int64, exponent int32) string {
	return Money{Minor: minor, Exponent: exponent}.String()
}

// ParseAmount parses a positive decimal string into minor units, rounding
// half up beyond exponent places. Both "12.34" and "12,34" are accepted.
//
//	ParseAmount("12.345", 2) -> 1235
//	ParseAmount("120", 0)    -> 120
func ParseAmount(s string, exponent int32) (int64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	minor := d.Shift(exponent).Round(0)
	if !minor.IsPositive() || minor.GreaterThan(decimal.NewFromInt(1<<62)) {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}
