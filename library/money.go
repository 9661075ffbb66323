package library

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is an amount of money in minor units.
type Cents int64

var hundred = decimal.NewFromInt(100)

// ParseCents parses a decimal amount such as "0.50" or "12". Amounts with
// more than two fractional digits or below zero are rejected.
func ParseCents(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a decimal amount", ErrInvalidAmount, s)
	}
	return CentsFromDecimal(d)
}

// CentsFromDecimal converts a decimal amount to cents.
func CentsFromDecimal(d decimal.Decimal) (Cents, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, d)
	}
	scaled := d.Mul(hundred)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has sub-cent precision", ErrInvalidAmount, d)
	}
	return Cents(scaled.IntPart()), nil
}

// Decimal returns c as a decimal amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}
