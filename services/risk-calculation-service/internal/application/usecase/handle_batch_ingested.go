package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// ErrInvalidBatchEvent marks an event that can never be processed and should not be retried.
var ErrInvalidBatchEvent = errors.New("invalid batch ingested event")

// Defaults for HandleBatchIngestedUseCase.
const (
	DefaultAnalyzeThreshold = 5000
	DefaultMaxEventAge      = 24 * time.Hour
)

// HandleBatchIngestedUseCase reacts to a batch becoming available: it loads the
// parsed batch and routes it to the single-pass or the chunked path by size.
type HandleBatchIngestedUseCase struct {
	source           port.ExposureSource
	repo             port.PortfolioAnalysisRepository
	analyze          *AnalyzePortfolioUseCase
	process          *ProcessBatchUseCase
	analyzeThreshold int
	maxEventAge      time.Duration
	logger           *slog.Logger
}

// NewHandleBatchIngestedUseCase creates a new HandleBatchIngestedUseCase. Batches
// with at most analyzeThreshold exposures take the single-pass path.
func NewHandleBatchIngestedUseCase(
	source port.ExposureSource,
	repo port.PortfolioAnalysisRepository,
	analyze *AnalyzePortfolioUseCase,
	process *ProcessBatchUseCase,
	analyzeThreshold int,
	maxEventAge time.Duration,
	logger *slog.Logger,
) *HandleBatchIngestedUseCase {
	if analyzeThreshold < 0 {
		analyzeThreshold = DefaultAnalyzeThreshold
	}
	if maxEventAge <= 0 {
		maxEventAge = DefaultMaxEventAge
	}
	return &HandleBatchIngestedUseCase{
		source:           source,
		repo:             repo,
		analyze:          analyze,
		process:          process,
		analyzeThreshold: analyzeThreshold,
		maxEventAge:      maxEventAge,
		logger:           logger,
	}
}

// Execute validates the event, skips batches that are already analyzed, and
// runs the analysis.
func (uc *HandleBatchIngestedUseCase) Execute(ctx context.Context, evt dto.BatchIngestedEvent) (dto.HandleBatchIngestedResponse, error) {
	batchID, err := uc.validate(evt)
	if err != nil {
		return dto.HandleBatchIngestedResponse{}, err
	}
	resp := dto.HandleBatchIngestedResponse{BatchID: batchID.String()}

	existing, err := uc.repo.FindByBatchID(ctx, batchID)
	switch {
	case err == nil && existing.State() == valueobject.StateCompleted:
		uc.logger.Info("batch already analyzed, skipping", "batch_id", batchID.String())
		resp.Skipped = true
		resp.SkipReason = "already completed"
		resp.Analysis = toAnalysisResponse(existing, time.Now())
		return resp, nil
	case err != nil && !errors.Is(err, port.ErrAnalysisNotFound):
		return resp, fmt.Errorf("failed to check existing analysis: %w", err)
	}

	batch, err := uc.source.Load(ctx, evt.S3URI)
	if err != nil {
		return resp, fmt.Errorf("failed to load batch %s from %s: %w", batchID, evt.S3URI, err)
	}
	if batch.BatchID.IsZero() {
		batch.BatchID = batchID
	}
	if batch.BatchID != batchID {
		return resp, fmt.Errorf("%w: event is for batch %s but %s contains batch %s",
			ErrInvalidBatchEvent, batchID, evt.S3URI, batch.BatchID)
	}
	if batch.BankID == "" {
		batch.BankID = evt.BankID
	}
	if batch.Skipped > 0 {
		uc.logger.Warn("malformed exposures skipped", "batch_id", batchID.String(), "skipped", batch.Skipped)
	}

	if len(batch.Exposures) <= uc.analyzeThreshold {
		resp.Analysis, err = uc.analyze.Execute(ctx, dto.AnalyzePortfolioRequest{Batch: batch})
		return resp, err
	}
	resp.Resumable = true
	resp.Analysis, err = uc.process.Execute(ctx, dto.ProcessBatchRequest{Batch: batch})
	return resp, err
}

func (uc *HandleBatchIngestedUseCase) validate(evt dto.BatchIngestedEvent) (valueobject.BatchID, error) {
	batchID, err := valueobject.NewBatchID(evt.BatchID)
	if err != nil {
		return valueobject.BatchID{}, fmt.Errorf("%w: %v", ErrInvalidBatchEvent, err)
	}
	if strings.TrimSpace(evt.BankID) == "" {
		return valueobject.BatchID{}, fmt.Errorf("%w: bank ID is required", ErrInvalidBatchEvent)
	}
	if strings.TrimSpace(evt.S3URI) == "" {
		return valueobject.BatchID{}, fmt.Errorf("%w: batch URI is required", ErrInvalidBatchEvent)
	}
	if evt.TotalExposures <= 0 {
		return valueobject.BatchID{}, fmt.Errorf("%w: total exposures must be positive, got %d",
			ErrInvalidBatchEvent, evt.TotalExposures)
	}
	if !evt.CompletedAt.IsZero() && time.Since(evt.CompletedAt) > uc.maxEventAge {
		return valueobject.BatchID{}, fmt.Errorf("%w: event from %s is older than %s",
			ErrInvalidBatchEvent, evt.CompletedAt.Format(time.RFC3339), uc.maxEventAge)
	}
	return batchID, nil
}
