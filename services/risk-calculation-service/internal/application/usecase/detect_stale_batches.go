package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// DefaultStaleLimit caps how many stale analyses one sweep looks at.
const DefaultStaleLimit = 100

// DetectStaleBatchesUseCase finds IN_PROGRESS analyses that stopped making
// progress and optionally fails them.
type DetectStaleBatchesUseCase struct {
	repo    port.PortfolioAnalysisRepository
	metrics port.Metrics
	logger  *slog.Logger
}

// NewDetectStaleBatchesUseCase creates a new DetectStaleBatchesUseCase.
func NewDetectStaleBatchesUseCase(repo port.PortfolioAnalysisRepository, metrics port.Metrics, logger *slog.Logger) *DetectStaleBatchesUseCase {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &DetectStaleBatchesUseCase{repo: repo, metrics: metrics, logger: logger}
}

// Execute runs one sweep.
func (uc *DetectStaleBatchesUseCase) Execute(ctx context.Context, req dto.DetectStaleBatchesRequest) (dto.DetectStaleBatchesResponse, error) {
	if req.Window <= 0 {
		return dto.DetectStaleBatchesResponse{}, fmt.Errorf("stale window must be positive, got %s", req.Window)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultStaleLimit
	}

	now := time.Now()
	candidates, err := uc.repo.FindStale(ctx, now.Add(-req.Window), limit)
	if err != nil {
		return dto.DetectStaleBatchesResponse{}, fmt.Errorf("failed to find stale analyses: %w", err)
	}

	resp := dto.DetectStaleBatchesResponse{Stale: []dto.StaleBatch{}}
	for _, a := range candidates {
		// The query and the aggregate must agree; skip rows that moved since.
		if !a.IsStale(now, req.Window) {
			continue
		}
		progress, _ := a.Progress()
		stale := dto.StaleBatch{
			BatchID:            a.BatchID().String(),
			LastUpdatedAt:      a.LastUpdatedAt(),
			ProcessedExposures: progress.Processed(),
			TotalExposures:     progress.Total(),
		}
		uc.logger.Warn("stale analysis detected",
			"batch_id", stale.BatchID,
			"last_updated_at", stale.LastUpdatedAt,
			"processed", stale.ProcessedExposures,
			"total", stale.TotalExposures,
		)

		if req.AutoFail {
			reason := fmt.Sprintf("stale: no progress since %s", a.LastUpdatedAt().Format(time.RFC3339))
			failed, err := a.Fail(reason, now)
			if err != nil {
				return resp, fmt.Errorf("failed to fail stale analysis %s: %w", stale.BatchID, err)
			}
			switch err := uc.repo.Save(ctx, failed); {
			case errors.Is(err, port.ErrVersionConflict):
				// A driver checkpointed in the meantime; the batch is alive after all.
				uc.logger.Info("stale analysis moved on, not failing", "batch_id", stale.BatchID)
				continue
			case err != nil:
				return resp, fmt.Errorf("failed to save stale analysis %s: %w", stale.BatchID, err)
			}
			uc.metrics.AnalysisFinished(ctx, valueobject.StateFailed)
			stale.Failed = true
			resp.Failed++
		}
		resp.Stale = append(resp.Stale, stale)
	}
	return resp, nil
}
