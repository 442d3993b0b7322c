package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bcbs239/regtech/pkg/money"
)

// inverseScale is the precision kept when inverting a quoted rate.
const inverseScale = 10

// ExchangeRate quotes how many units of To one unit of From buys.
type ExchangeRate struct {
	from money.Currency
	to   money.Currency
	rate decimal.Decimal
}

// NewExchangeRate validates that the rate is strictly positive.
func NewExchangeRate(from, to money.Currency, rate decimal.Decimal) (ExchangeRate, error) {
	if from.IsZero() || to.IsZero() {
		return ExchangeRate{}, fmt.Errorf("exchange rate currencies must be set")
	}
	if !rate.IsPositive() {
		return ExchangeRate{}, fmt.Errorf("exchange rate %s/%s must be positive, got %s", from, to, rate)
	}
	return ExchangeRate{from: from, to: to, rate: rate}, nil
}

func (r ExchangeRate) From() money.Currency  { return r.from }
func (r ExchangeRate) To() money.Currency    { return r.to }
func (r ExchangeRate) Rate() decimal.Decimal { return r.rate }

// Inverse returns the To/From quote.
func (r ExchangeRate) Inverse() ExchangeRate {
	return ExchangeRate{
		from: r.to,
		to:   r.from,
		rate: decimal.NewFromInt(1).DivRound(r.rate, inverseScale),
	}
}

// Pair returns the "FROM/TO" label of the quote.
func (r ExchangeRate) Pair() string {
	return r.from.Code() + "/" + r.to.Code()
}
