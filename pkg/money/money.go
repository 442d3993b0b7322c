package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Validation errors returned by the constructors in this package.
var (
	ErrNegativeAmount  = errors.New("amount cannot be negative")
	ErrInvalidCurrency = errors.New("currency code must be 3 uppercase letters")
)

// ConversionScale is the number of decimal places kept after a currency conversion.
const ConversionScale = 2

// Currency is an ISO 4217 currency code.
type Currency struct {
	code string
}

// NewCurrency creates a Currency after validating the code is exactly 3 uppercase letters.
func NewCurrency(code string) (Currency, error) {
	if !currencyCodeRe.MatchString(code) {
		return Currency{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return Currency{code: code}, nil
}

// ParseCurrency trims and upper-cases the input before validating it.
// Source files are not always consistent about casing.
func ParseCurrency(code string) (Currency, error) {
	return NewCurrency(strings.ToUpper(strings.TrimSpace(code)))
}

// MustCurrency creates a Currency and panics on error. Intended for package-level variable
// initialization only.
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// Code returns the ISO 4217 currency code.
func (c Currency) Code() string {
	return c.code
}

// String returns the currency code.
func (c Currency) String() string {
	return c.code
}

// IsZero reports whether the currency was never set.
func (c Currency) IsZero() bool {
	return c.code == ""
}

// Currencies that appear in bank exposure files.
var (
	EUR = MustCurrency("EUR")
	USD = MustCurrency("USD")
	GBP = MustCurrency("GBP")
	CHF = MustCurrency("CHF")
	JPY = MustCurrency("JPY")
)

// MonetaryAmount is a non-negative amount tagged with its original currency.
// Fields are unexported to enforce immutability.
type MonetaryAmount struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMonetaryAmount validates and creates a MonetaryAmount.
func NewMonetaryAmount(amount decimal.Decimal, currency Currency) (MonetaryAmount, error) {
	if amount.IsNegative() {
		return MonetaryAmount{}, fmt.Errorf("%w: %s", ErrNegativeAmount, amount.String())
	}
	if currency.IsZero() {
		return MonetaryAmount{}, ErrInvalidCurrency
	}
	return MonetaryAmount{amount: amount, currency: currency}, nil
}

// ParseMonetaryAmount parses an amount string and currency code.
func ParseMonetaryAmount(amount string, currency string) (MonetaryAmount, error) {
	cur, err := ParseCurrency(currency)
	if err != nil {
		return MonetaryAmount{}, err
	}

	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return MonetaryAmount{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	return NewMonetaryAmount(d, cur)
}

// Amount returns the decimal amount.
func (m MonetaryAmount) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency.
func (m MonetaryAmount) Currency() Currency {
	return m.currency
}

// IsIn reports whether the amount is already denominated in c.
func (m MonetaryAmount) IsIn(c Currency) bool {
	return m.currency == c
}

// IsZero returns true if the amount is zero.
func (m MonetaryAmount) IsZero() bool {
	return m.amount.IsZero()
}

// ConvertAt multiplies the amount by rate and rounds half-up to ConversionScale places.
// The caller is responsible for the rate being positive.
func (m MonetaryAmount) ConvertAt(rate decimal.Decimal) decimal.Decimal {
	return m.amount.Mul(rate).Round(ConversionScale)
}

// Equal returns true if both the amount and currency of m and other are equal.
func (m MonetaryAmount) Equal(other MonetaryAmount) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String formats the value as "<amount> <currency>", for example "100.00 USD".
func (m MonetaryAmount) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(ConversionScale), m.currency.Code())
}
