package usecase

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

var tracer = otel.Tracer("github.com/bcbs239/regtech/services/risk-calculation-service/usecase")

func toAnalysisResponse(a model.PortfolioAnalysis, now time.Time) dto.AnalysisResponse {
	resp := dto.AnalysisResponse{
		BatchID:             a.BatchID().String(),
		State:               a.State().String(),
		ProcessedChunks:     len(a.ProcessedChunks()),
		CanResume:           a.CanResume(),
		TotalAmountEUR:      a.TotalPortfolio().Value().StringFixed(2),
		GeographicBreakdown: toShares(a.GeographicBreakdown()),
		SectorBreakdown:     toShares(a.SectorBreakdown()),
		GeographicHHI:       toHHI(a.GeographicHHI()),
		SectorHHI:           toHHI(a.SectorHHI()),
		StartedAt:           a.StartedAt(),
		LastUpdatedAt:       a.LastUpdatedAt(),
		Version:             a.Version(),
	}
	if p, ok := a.Progress(); ok {
		resp.TotalExposures = p.Total()
		resp.ProcessedExposures = p.Processed()
		resp.PercentComplete = p.Percent().StringFixed(2)
	}
	if last, ok := a.LastProcessedChunkIndex(); ok {
		resp.LastChunkIndex = &last
	}
	if rate, ok := a.ProcessingRate(); ok {
		resp.ExposuresPerSecond = &rate
	}
	if eta, ok := a.EstimatedCompletion(now); ok {
		resp.EstimatedCompletion = &eta
	}
	if at, ok := a.AnalyzedAt(); ok {
		resp.AnalyzedAt = &at
	}
	resp.FailureReason, _ = a.FailureReason()
	return resp
}

func toShares(b valueobject.Breakdown) map[string]dto.ShareResponse {
	out := make(map[string]dto.ShareResponse, b.Len())
	for _, k := range b.Keys() {
		s, _ := b.Share(k)
		out[k] = dto.ShareResponse{
			AmountEUR:  s.Amount().Value().StringFixed(2),
			Percentage: s.Percentage().StringFixed(valueobject.PercentageScale),
		}
	}
	return out
}

func toHHI(h valueobject.HHI) dto.HHIResponse {
	return dto.HHIResponse{Value: h.Value().StringFixed(2), Level: h.Level().String()}
}

// recordFailure moves analysis to FAILED with cause as the reason and persists it.
// Persistence problems are logged; the caller reports cause either way.
func recordFailure(
	ctx context.Context,
	repo port.PortfolioAnalysisRepository,
	metrics port.Metrics,
	logger *slog.Logger,
	analysis model.PortfolioAnalysis,
	cause error,
) model.PortfolioAnalysis {
	failed, err := analysis.Fail(cause.Error(), time.Now())
	if err != nil {
		logger.Error("failed to mark analysis as failed",
			"batch_id", analysis.BatchID().String(),
			"error", err,
			"cause", cause,
		)
		return analysis
	}
	if err := repo.Save(ctx, failed); err != nil {
		logger.Error("failed to save failed analysis",
			"batch_id", analysis.BatchID().String(),
			"error", err,
			"cause", cause,
		)
		return failed
	}
	metrics.AnalysisFinished(ctx, valueobject.StateFailed)
	return failed.ClearDomainEvents()
}
