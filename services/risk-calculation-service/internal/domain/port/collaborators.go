package port

import (
	"context"
	"time"

	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// ExchangeRateProvider supplies the rate to convert one unit of from into to.
type ExchangeRateProvider interface {
	Rate(ctx context.Context, from, to money.Currency) (valueobject.ExchangeRate, error)
}

// BatchData is a parsed batch as produced by the ingestion subsystem.
type BatchData struct {
	BatchID     valueobject.BatchID
	BankID      string
	BankName    string
	Exposures   []model.ExposureRecording
	Mitigations []model.MitigationRecord
	// Skipped counts source exposures dropped because they could not be parsed.
	Skipped int
}

// ExposureSource loads a parsed batch from the location in a BatchIngested event.
type ExposureSource interface {
	Load(ctx context.Context, uri string) (BatchData, error)
}

// AnalysisResult is everything the results file is built from.
type AnalysisResult struct {
	Analysis  model.PortfolioAnalysis
	Exposures []model.ClassifiedExposure
	BankID    string
	BankName  string
}

// ResultStore writes the results file and returns its URI.
type ResultStore interface {
	Store(ctx context.Context, result AnalysisResult) (string, error)
}

// Metrics records pipeline instruments.
type Metrics interface {
	ChunkProcessed(ctx context.Context, size int, took time.Duration)
	AnalysisFinished(ctx context.Context, state valueobject.ProcessingState)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) ChunkProcessed(context.Context, int, time.Duration)            {}
func (NopMetrics) AnalysisFinished(context.Context, valueobject.ProcessingState) {}
