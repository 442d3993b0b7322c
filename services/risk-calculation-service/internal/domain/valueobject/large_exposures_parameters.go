package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultRegulatoryReference is the article the default limits come from.
const DefaultRegulatoryReference = "CRR Art. 395"

// LargeExposuresParameters holds the capital base and percentages for the large exposures regime.
type LargeExposuresParameters struct {
	limitPercent                   decimal.Decimal
	classificationThresholdPercent decimal.Decimal
	eligibleCapital                EurAmount
	regulatoryReference            string
}

// NewLargeExposuresParameters validates both percentages in (0,100] and eligibleCapital > 0.
func NewLargeExposuresParameters(
	limitPercent decimal.Decimal,
	classificationThresholdPercent decimal.Decimal,
	eligibleCapital decimal.Decimal,
	regulatoryReference string,
) (LargeExposuresParameters, error) {
	if err := validatePercent("limit", limitPercent); err != nil {
		return LargeExposuresParameters{}, err
	}
	if err := validatePercent("classification threshold", classificationThresholdPercent); err != nil {
		return LargeExposuresParameters{}, err
	}
	if !eligibleCapital.IsPositive() {
		return LargeExposuresParameters{}, fmt.Errorf("eligible capital must be positive, got %s", eligibleCapital)
	}
	if regulatoryReference == "" {
		regulatoryReference = DefaultRegulatoryReference
	}
	return LargeExposuresParameters{
		limitPercent:                   limitPercent,
		classificationThresholdPercent: classificationThresholdPercent,
		eligibleCapital:                EurAmount{value: eligibleCapital},
		regulatoryReference:            regulatoryReference,
	}, nil
}

func validatePercent(name string, p decimal.Decimal) error {
	if !p.IsPositive() || p.GreaterThan(hundred) {
		return fmt.Errorf("%s percent must be in (0, 100], got %s", name, p)
	}
	return nil
}

// AbsoluteLimit is eligibleCapital * limitPercent / 100.
func (p LargeExposuresParameters) AbsoluteLimit() EurAmount {
	return EurAmount{value: p.eligibleCapital.value.Mul(p.limitPercent).Div(hundred)}
}

// AbsoluteClassificationThreshold is eligibleCapital * classificationThresholdPercent / 100.
func (p LargeExposuresParameters) AbsoluteClassificationThreshold() EurAmount {
	return EurAmount{value: p.eligibleCapital.value.Mul(p.classificationThresholdPercent).Div(hundred)}
}

func (p LargeExposuresParameters) LimitPercent() decimal.Decimal { return p.limitPercent }
func (p LargeExposuresParameters) ClassificationThresholdPercent() decimal.Decimal {
	return p.classificationThresholdPercent
}
func (p LargeExposuresParameters) EligibleCapital() EurAmount  { return p.eligibleCapital }
func (p LargeExposuresParameters) RegulatoryReference() string { return p.regulatoryReference }
