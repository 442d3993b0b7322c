package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// ErrInvalidMitigationValue is returned for negative mitigation values.
var ErrInvalidMitigationValue = errors.New("invalid mitigation value")

// MitigationEngine converts raw mitigation records to EUR and nets them against exposures.
type MitigationEngine struct {
	valuation *ValuationService
}

// NewMitigationEngine creates a new MitigationEngine.
func NewMitigationEngine(valuation *ValuationService) *MitigationEngine {
	return &MitigationEngine{valuation: valuation}
}

// Create converts value to EUR and returns the resulting Mitigation.
func (e *MitigationEngine) Create(
	ctx context.Context,
	counterpartyID string,
	mitigationType valueobject.MitigationType,
	value decimal.Decimal,
	currency money.Currency,
) (model.Mitigation, error) {
	if value.IsNegative() {
		return model.Mitigation{}, fmt.Errorf("%w: %s must not be negative", ErrInvalidMitigationValue, value)
	}
	amount, err := money.NewMonetaryAmount(value, currency)
	if err != nil {
		return model.Mitigation{}, err
	}
	eur, err := e.valuation.Convert(ctx, amount)
	if err != nil {
		return model.Mitigation{}, fmt.Errorf("failed to value mitigation: %w", err)
	}
	return model.NewMitigation(counterpartyID, mitigationType, eur)
}

// FromRecord parses and converts a raw mitigation record.
func (e *MitigationEngine) FromRecord(ctx context.Context, r model.MitigationRecord) (model.Mitigation, error) {
	mitigationType, err := valueobject.NewMitigationType(r.Type)
	if err != nil {
		return model.Mitigation{}, err
	}
	currency, err := money.ParseCurrency(r.Currency)
	if err != nil {
		return model.Mitigation{}, err
	}
	return e.Create(ctx, r.CounterpartyID, mitigationType, r.Value, currency)
}

// Net returns gross minus every mitigation that applies to exposure, floored at zero.
// Mitigations of other counterparties are ignored.
func Net(exposure model.ExposureRecording, gross valueobject.EurAmount, mitigations []model.Mitigation) valueobject.EurAmount {
	matched := valueobject.ZeroEur()
	for _, m := range mitigations {
		if m.AppliesTo(exposure) {
			matched = matched.Add(m.EurValue())
		}
	}
	return gross.SubtractFloored(matched)
}

// MitigationIndex is the per-counterparty sum of mitigation values. Looking an
// exposure up in the index gives the same result as Net over the full list.
type MitigationIndex struct {
	totals map[string]valueobject.EurAmount
}

// GroupByCounterparty builds a MitigationIndex.
func GroupByCounterparty(mitigations []model.Mitigation) MitigationIndex {
	totals := make(map[string]valueobject.EurAmount, len(mitigations))
	for _, m := range mitigations {
		totals[m.CounterpartyKey()] = totals[m.CounterpartyKey()].Add(m.EurValue())
	}
	return MitigationIndex{totals: totals}
}

// For returns the total mitigation applicable to exposure.
func (i MitigationIndex) For(exposure model.ExposureRecording) valueobject.EurAmount {
	return i.totals[exposure.Counterparty().MatchKey()]
}

// Net returns gross netted against the exposure's mitigations.
func (i MitigationIndex) Net(exposure model.ExposureRecording, gross valueobject.EurAmount) valueobject.EurAmount {
	return gross.SubtractFloored(i.For(exposure))
}

// Len returns the number of counterparties with mitigations.
func (i MitigationIndex) Len() int { return len(i.totals) }
