package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNegativeEurAmount is returned when constructing an EurAmount below zero.
var ErrNegativeEurAmount = errors.New("EUR amount cannot be negative")

// EurAmount is a non-negative amount denominated in EUR.
// The zero value is a valid zero amount.
type EurAmount struct {
	value decimal.Decimal
}

// NewEurAmount creates an EurAmount, rejecting negative values.
func NewEurAmount(value decimal.Decimal) (EurAmount, error) {
	if value.IsNegative() {
		return EurAmount{}, fmt.Errorf("%w: %s", ErrNegativeEurAmount, value.String())
	}
	return EurAmount{value: value}, nil
}

// ParseEurAmount parses a decimal string into an EurAmount.
func ParseEurAmount(s string) (EurAmount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return EurAmount{}, fmt.Errorf("invalid EUR amount %q: %w", s, err)
	}
	return NewEurAmount(d)
}

// ZeroEur returns a zero EurAmount.
func ZeroEur() EurAmount {
	return EurAmount{value: decimal.Zero}
}

// Value returns the decimal value.
func (a EurAmount) Value() decimal.Decimal {
	return a.value
}

// Add returns a + other.
func (a EurAmount) Add(other EurAmount) EurAmount {
	return EurAmount{value: a.value.Add(other.value)}
}

// SubtractFloored returns a - other, floored at zero.
func (a EurAmount) SubtractFloored(other EurAmount) EurAmount {
	diff := a.value.Sub(other.value)
	if diff.IsNegative() {
		return ZeroEur()
	}
	return EurAmount{value: diff}
}

// IsZero returns true if the amount is zero.
func (a EurAmount) IsZero() bool {
	return a.value.IsZero()
}

// GreaterThan reports whether a > other.
func (a EurAmount) GreaterThan(other EurAmount) bool {
	return a.value.GreaterThan(other.value)
}

// Equal compares by value, so 10 equals 10.00.
func (a EurAmount) Equal(other EurAmount) bool {
	return a.value.Equal(other.value)
}

// String formats the amount with two decimals.
func (a EurAmount) String() string {
	return a.value.StringFixed(2) + " EUR"
}
