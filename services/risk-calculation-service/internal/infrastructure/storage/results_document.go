package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// ResultsFormatVersion is written into every results document.
const ResultsFormatVersion = "1.0"

const resultsKeyPrefix = "calculated"

var hundred = decimal.NewFromInt(100)

// ResultsDocument is the JSON layout of a stored analysis. Monetary values are
// fixed-point strings so downstream readers never see binary floating point.
type ResultsDocument struct {
	FormatVersion       string               `json:"format_version"`
	BatchID             string               `json:"batch_id"`
	BankID              string               `json:"bank_id"`
	BankName            string               `json:"bank_name,omitempty"`
	CalculatedAt        time.Time            `json:"calculated_at"`
	Summary             ResultsSummary       `json:"summary"`
	CalculatedExposures []CalculatedExposure `json:"calculated_exposures"`
}

type ResultsSummary struct {
	TotalExposures       int                     `json:"total_exposures"`
	TotalAmountEUR       string                  `json:"total_amount_eur"`
	GeographicBreakdown  map[string]BreakdownRow `json:"geographic_breakdown"`
	SectorBreakdown      map[string]BreakdownRow `json:"sector_breakdown"`
	ConcentrationIndices ConcentrationIndices    `json:"concentration_indices"`
}

type BreakdownRow struct {
	AmountEUR  string `json:"amount_eur"`
	Percentage string `json:"percentage"`
}

type ConcentrationIndices struct {
	HerfindahlGeographic string `json:"herfindahl_geographic"`
	HerfindahlSector     string `json:"herfindahl_sector"`
}

// CalculatedExposure is one exposure line of the results document.
type CalculatedExposure struct {
	ExposureID         string `json:"exposure_id"`
	InstrumentID       string `json:"instrument_id,omitempty"`
	CounterpartyRef    string `json:"counterparty_ref"`
	OriginalAmount     string `json:"original_amount"`
	OriginalCurrency   string `json:"original_currency"`
	EurAmount          string `json:"eur_amount"`
	MitigatedAmountEUR string `json:"mitigated_amount_eur"`
	NetExposureEUR     string `json:"net_exposure_eur"`
	PercentageOfTotal  string `json:"percentage_of_total"`
	Country            string `json:"country"`
	GeographicRegion   string `json:"geographic_region"`
	EconomicSector     string `json:"economic_sector"`
	LimitBreach        bool   `json:"limit_breach"`
	RequiresReporting  bool   `json:"requires_reporting"`
}

// BuildResultsDocument lays out a finished analysis. Breakdown keys are the
// lower-cased category names; exposure shares are of the net portfolio total.
func BuildResultsDocument(result port.AnalysisResult, now time.Time) ResultsDocument {
	a := result.Analysis
	calculatedAt, ok := a.AnalyzedAt()
	if !ok {
		calculatedAt = now
	}
	total := a.TotalPortfolio()

	doc := ResultsDocument{
		FormatVersion: ResultsFormatVersion,
		BatchID:       a.BatchID().String(),
		BankID:        result.BankID,
		BankName:      result.BankName,
		CalculatedAt:  calculatedAt.UTC(),
		Summary: ResultsSummary{
			TotalExposures:      len(result.Exposures),
			TotalAmountEUR:      total.Value().StringFixed(2),
			GeographicBreakdown: breakdownRows(a.GeographicBreakdown()),
			SectorBreakdown:     breakdownRows(a.SectorBreakdown()),
			ConcentrationIndices: ConcentrationIndices{
				HerfindahlGeographic: a.GeographicHHI().Value().StringFixed(2),
				HerfindahlSector:     a.SectorHHI().Value().StringFixed(2),
			},
		},
		CalculatedExposures: make([]CalculatedExposure, 0, len(result.Exposures)),
	}

	for _, c := range result.Exposures {
		e := c.Exposure()
		doc.CalculatedExposures = append(doc.CalculatedExposures, CalculatedExposure{
			ExposureID:         e.ID().String(),
			InstrumentID:       e.InstrumentID().String(),
			CounterpartyRef:    e.Counterparty().ID(),
			OriginalAmount:     e.Amount().Amount().String(),
			OriginalCurrency:   e.Amount().Currency().Code(),
			EurAmount:          c.GrossEur().Value().StringFixed(2),
			MitigatedAmountEUR: c.MitigationEur().Value().StringFixed(2),
			NetExposureEUR:     c.NetExposure().Value().StringFixed(2),
			PercentageOfTotal:  shareOf(c.NetExposure(), total).StringFixed(valueobject.PercentageScale),
			Country:            e.Classification().Country().String(),
			GeographicRegion:   c.Region().String(),
			EconomicSector:     c.Sector().String(),
			LimitBreach:        c.Assessment().Breach,
			RequiresReporting:  c.Assessment().RequiresReporting,
		})
	}
	return doc
}

// ResultsObjectKey returns calculated/calc_<batch>_<yyyyMMdd_HHmmss>.json.
func ResultsObjectKey(batchID string, at time.Time) string {
	return fmt.Sprintf("%s/calc_%s_%s.json", resultsKeyPrefix, batchID, at.UTC().Format("20060102_150405"))
}

func breakdownRows(b valueobject.Breakdown) map[string]BreakdownRow {
	rows := make(map[string]BreakdownRow, b.Len())
	for _, k := range b.Keys() {
		s, _ := b.Share(k)
		rows[strings.ToLower(k)] = BreakdownRow{
			AmountEUR:  s.Amount().Value().StringFixed(2),
			Percentage: s.Percentage().StringFixed(valueobject.PercentageScale),
		}
	}
	return rows
}

func shareOf(amount, total valueobject.EurAmount) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return amount.Value().Mul(hundred).DivRound(total.Value(), valueobject.PercentageScale)
}
