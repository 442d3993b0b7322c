package postgres

import (
	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// exposureRow is one calculated_exposures row as scanned.
type exposureRow struct {
	id               string
	sourceRef        string
	instrumentID     string
	counterpartyID   string
	counterpartyName string
	counterpartyLEI  string
	amount           string
	currency         string
	productType      string
	instrumentType   string
	balanceSheetType string
	country          string
	gross            string
	mitigation       string
	region           string
	sector           string
	breach           bool
	reporting        bool
}

// restore rebuilds the classified exposure through the domain constructors, so
// a row that no longer validates is reported instead of loaded.
func (r exposureRow) restore() (model.ClassifiedExposure, error) {
	id, err := valueobject.ParseExposureID(r.id)
	if err != nil {
		return model.ClassifiedExposure{}, err
	}
	var instrument valueobject.InstrumentID
	if r.instrumentID != "" {
		if instrument, err = valueobject.NewInstrumentID(r.instrumentID); err != nil {
			return model.ClassifiedExposure{}, err
		}
	}
	counterparty, err := valueobject.NewCounterpartyRef(r.counterpartyID, r.counterpartyName, r.counterpartyLEI)
	if err != nil {
		return model.ClassifiedExposure{}, err
	}
	amount, err := money.ParseMonetaryAmount(r.amount, r.currency)
	if err != nil {
		return model.ClassifiedExposure{}, err
	}
	instrumentType, err := valueobject.NewInstrumentType(r.instrumentType)
	if err != nil {
		return model.ClassifiedExposure{}, err
	}
	balanceSheet, err := valueobject.NewBalanceSheetType(r.balanceSheetType)
	if err != nil {
		return model.ClassifiedExposure{}, err
	}
	country, err := valueobject.NewCountryCode(r.country)
	if err != nil {
		return model.ClassifiedExposure{}, err
	}
	cls, err := model.NewExposureClassification(r.productType, instrumentType, balanceSheet, country)
	if err != nil {
		return model.ClassifiedExposure{}, err
	}
	exposure, err := model.NewExposureRecording(id, r.sourceRef, instrument, counterparty, amount, cls)
	if err != nil {
		return model.ClassifiedExposure{}, err
	}

	gross, err := valueobject.ParseEurAmount(r.gross)
	if err != nil {
		return model.ClassifiedExposure{}, err
	}
	mitigation, err := valueobject.ParseEurAmount(r.mitigation)
	if err != nil {
		return model.ClassifiedExposure{}, err
	}
	region, err := valueobject.NewGeographicRegion(r.region)
	if err != nil {
		return model.ClassifiedExposure{}, err
	}
	sector, err := valueobject.NewEconomicSector(r.sector)
	if err != nil {
		return model.ClassifiedExposure{}, err
	}
	return model.NewClassifiedExposure(exposure, gross, mitigation, region, sector,
		model.LimitAssessment{Breach: r.breach, RequiresReporting: r.reporting})
}
