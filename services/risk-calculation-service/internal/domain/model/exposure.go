package model

import (
	"fmt"
	"strings"

	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// ExposureClassification carries the raw attributes classifiers work from.
type ExposureClassification struct {
	productType      string
	instrumentType   valueobject.InstrumentType
	balanceSheetType valueobject.BalanceSheetType
	country          valueobject.CountryCode
}

// NewExposureClassification validates the classification attributes.
// productType is free text from the bank file and is normalized for matching.
func NewExposureClassification(
	productType string,
	instrumentType valueobject.InstrumentType,
	balanceSheetType valueobject.BalanceSheetType,
	country valueobject.CountryCode,
) (ExposureClassification, error) {
	if instrumentType.IsZero() {
		return ExposureClassification{}, fmt.Errorf("instrument type is required")
	}
	if country.IsZero() {
		return ExposureClassification{}, fmt.Errorf("country is required")
	}
	if balanceSheetType == (valueobject.BalanceSheetType{}) {
		balanceSheetType = valueobject.BalanceSheetOn
	}
	return ExposureClassification{
		productType:      valueobject.NormalizeCode(productType),
		instrumentType:   instrumentType,
		balanceSheetType: balanceSheetType,
		country:          country,
	}, nil
}

func (c ExposureClassification) ProductType() string                            { return c.productType }
func (c ExposureClassification) InstrumentType() valueobject.InstrumentType     { return c.instrumentType }
func (c ExposureClassification) BalanceSheetType() valueobject.BalanceSheetType { return c.balanceSheetType }
func (c ExposureClassification) Country() valueobject.CountryCode               { return c.country }

// ExposureRecording is one parsed exposure of a batch, in its original currency.
// It is immutable after creation.
type ExposureRecording struct {
	id             valueobject.ExposureID
	sourceRef      string
	instrumentID   valueobject.InstrumentID
	counterparty   valueobject.CounterpartyRef
	amount         money.MonetaryAmount
	classification ExposureClassification
}

// NewExposureRecording creates an ExposureRecording. sourceRef is the identifier the
// bank used for the exposure and is kept for the results file.
func NewExposureRecording(
	id valueobject.ExposureID,
	sourceRef string,
	instrumentID valueobject.InstrumentID,
	counterparty valueobject.CounterpartyRef,
	amount money.MonetaryAmount,
	classification ExposureClassification,
) (ExposureRecording, error) {
	if id.IsZero() {
		return ExposureRecording{}, fmt.Errorf("exposure ID is required")
	}
	if counterparty.ID() == "" {
		return ExposureRecording{}, fmt.Errorf("counterparty is required")
	}
	if amount.Currency().IsZero() {
		return ExposureRecording{}, fmt.Errorf("exposure amount is required")
	}
	if classification.Country().IsZero() {
		return ExposureRecording{}, fmt.Errorf("exposure classification is required")
	}
	sourceRef = strings.TrimSpace(sourceRef)
	if sourceRef == "" {
		sourceRef = id.String()
	}
	return ExposureRecording{
		id:             id,
		sourceRef:      sourceRef,
		instrumentID:   instrumentID,
		counterparty:   counterparty,
		amount:         amount,
		classification: classification,
	}, nil
}

func (e ExposureRecording) ID() valueobject.ExposureID                { return e.id }
func (e ExposureRecording) SourceRef() string                         { return e.sourceRef }
func (e ExposureRecording) InstrumentID() valueobject.InstrumentID    { return e.instrumentID }
func (e ExposureRecording) Counterparty() valueobject.CounterpartyRef { return e.counterparty }
func (e ExposureRecording) Amount() money.MonetaryAmount              { return e.amount }
func (e ExposureRecording) Classification() ExposureClassification    { return e.classification }
