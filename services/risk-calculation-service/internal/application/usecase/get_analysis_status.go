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

// ErrInvalidBatchID is returned for a blank batch identifier.
var ErrInvalidBatchID = errors.New("invalid batch ID")

// GetAnalysisStatusUseCase handles retrieving the analysis of a batch.
type GetAnalysisStatusUseCase struct {
	repo   port.PortfolioAnalysisRepository
	logger *slog.Logger
}

// NewGetAnalysisStatusUseCase creates a new GetAnalysisStatusUseCase.
func NewGetAnalysisStatusUseCase(repo port.PortfolioAnalysisRepository, logger *slog.Logger) *GetAnalysisStatusUseCase {
	return &GetAnalysisStatusUseCase{repo: repo, logger: logger}
}

// Execute returns the state, progress, throughput and aggregates of a batch's analysis.
func (uc *GetAnalysisStatusUseCase) Execute(ctx context.Context, req dto.GetAnalysisStatusRequest) (dto.AnalysisResponse, error) {
	batchID, err := valueobject.NewBatchID(req.BatchID)
	if err != nil {
		return dto.AnalysisResponse{}, fmt.Errorf("%w: %v", ErrInvalidBatchID, err)
	}

	analysis, err := uc.repo.FindByBatchID(ctx, batchID)
	if err != nil {
		return dto.AnalysisResponse{}, fmt.Errorf("failed to find analysis for batch %s: %w", batchID, err)
	}
	return toAnalysisResponse(analysis, time.Now()), nil
}
