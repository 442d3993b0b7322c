package port

import (
	"context"
	"errors"
	"time"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// Repository errors.
var (
	ErrAnalysisNotFound = errors.New("portfolio analysis not found")
	ErrVersionConflict  = errors.New("portfolio analysis version conflict")
)

// PortfolioAnalysisRepository defines the persistence port for PortfolioAnalysis aggregates.
type PortfolioAnalysisRepository interface {
	// Save persists the analysis, its pending domain events and the given exposures
	// in one transaction. Version 1 starts a new run and supersedes a previous
	// COMPLETED or FAILED run of the same batch, discarding its exposures. Later
	// versions require the stored version to be exactly one lower, otherwise
	// ErrVersionConflict is returned.
	Save(ctx context.Context, analysis model.PortfolioAnalysis, exposures ...model.ClassifiedExposure) error

	// FindByBatchID returns ErrAnalysisNotFound when no run exists for the batch.
	FindByBatchID(ctx context.Context, batchID valueobject.BatchID) (model.PortfolioAnalysis, error)

	// FindStale lists IN_PROGRESS analyses last updated before the cutoff.
	FindStale(ctx context.Context, before time.Time, limit int) ([]model.PortfolioAnalysis, error)

	// ListExposures returns the classified exposures saved for the batch's current run.
	ListExposures(ctx context.Context, batchID valueobject.BatchID) ([]model.ClassifiedExposure, error)
}
