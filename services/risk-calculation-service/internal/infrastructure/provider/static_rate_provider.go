package provider

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

var _ port.ExchangeRateProvider = (*StaticRateProvider)(nil)

// defaultStaticRates maps "FROM/TO" to a rate decimal string.
var defaultStaticRates = map[string]string{
	"USD/EUR": "0.9217",
	"GBP/EUR": "1.1655",
	"CHF/EUR": "1.0460",
	"JPY/EUR": "0.0062",
	"CAD/EUR": "0.6790",
	"SEK/EUR": "0.0876",
	"NOK/EUR": "0.0858",
	"DKK/EUR": "0.1341",
	"PLN/EUR": "0.2315",
}

// StaticRateProvider returns fixed exchange rates. It is intended for
// development, testing, and CI environments.
type StaticRateProvider struct {
	rates map[string]decimal.Decimal
}

// NewStaticRateProvider creates a StaticRateProvider over the built-in table,
// extended or overridden by extra ("USD/EUR" -> "0.92").
func NewStaticRateProvider(extra map[string]string) (*StaticRateProvider, error) {
	rates := make(map[string]decimal.Decimal, len(defaultStaticRates)+len(extra))
	for _, table := range []map[string]string{defaultStaticRates, extra} {
		for pair, s := range table {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("invalid static rate for %s: %w", pair, err)
			}
			if !d.IsPositive() {
				return nil, fmt.Errorf("static rate for %s must be positive, got %s", pair, s)
			}
			rates[pair] = d
		}
	}
	return &StaticRateProvider{rates: rates}, nil
}

// Rate returns the static rate for the pair, or the inverse of the opposite pair.
func (p *StaticRateProvider) Rate(_ context.Context, from, to money.Currency) (valueobject.ExchangeRate, error) {
	if d, ok := p.rates[from.Code()+"/"+to.Code()]; ok {
		return valueobject.NewExchangeRate(from, to, d)
	}
	if d, ok := p.rates[to.Code()+"/"+from.Code()]; ok {
		rate, err := valueobject.NewExchangeRate(to, from, d)
		if err != nil {
			return valueobject.ExchangeRate{}, err
		}
		return rate.Inverse(), nil
	}
	return valueobject.ExchangeRate{}, fmt.Errorf("no static rate available for %s/%s", from, to)
}
