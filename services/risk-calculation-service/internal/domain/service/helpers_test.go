package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/pkg/testutil"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// fakeRates serves fixed X/EUR rates and counts lookups.
type fakeRates struct {
	mu    sync.Mutex
	rates map[string]decimal.Decimal
	calls map[string]int
}

func newFakeRates(rates map[string]string) *fakeRates {
	f := &fakeRates{rates: map[string]decimal.Decimal{}, calls: map[string]int{}}
	for k, v := range rates {
		f.rates[k] = decimal.RequireFromString(v)
	}
	return f
}

func (f *fakeRates) Rate(_ context.Context, from, to money.Currency) (valueobject.ExchangeRate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[from.Code()]++
	r, ok := f.rates[from.Code()]
	if !ok {
		return valueobject.ExchangeRate{}, fmt.Errorf("no quote for %s", from)
	}
	return valueobject.NewExchangeRate(from, to, r)
}

func (f *fakeRates) callsFor(code string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[code]
}

func exposure(t *testing.T, ref, counterparty, amount, currency, country, product string) model.ExposureRecording {
	t.Helper()
	batch, err := valueobject.NewBatchID(testutil.TestBatchID)
	require.NoError(t, err)
	id, err := valueobject.ExposureIDFromSource(batch, ref)
	require.NoError(t, err)
	instrument, err := valueobject.NewInstrumentID("INS-" + ref)
	require.NoError(t, err)
	cp, err := valueobject.NewCounterpartyRef(counterparty, "Name of "+counterparty, "")
	require.NoError(t, err)
	amt, err := money.ParseMonetaryAmount(amount, currency)
	require.NoError(t, err)
	cls, err := model.NewExposureClassification(product, valueobject.InstrumentTypeLoan,
		valueobject.BalanceSheetOn, valueobject.MustCountryCode(country))
	require.NoError(t, err)
	e, err := model.NewExposureRecording(id, ref, instrument, cp, amt, cls)
	require.NoError(t, err)
	return e
}

func eur(t *testing.T, s string) valueobject.EurAmount {
	t.Helper()
	a, err := valueobject.ParseEurAmount(s)
	require.NoError(t, err)
	return a
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
