package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/service"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// AnalyzePortfolioUseCase runs the whole pipeline over a small batch in one pass.
type AnalyzePortfolioUseCase struct {
	pipeline   *service.ExposurePipeline
	repo       port.PortfolioAnalysisRepository
	results    port.ResultStore
	metrics    port.Metrics
	thresholds valueobject.ConcentrationThresholds
	logger     *slog.Logger
}

// NewAnalyzePortfolioUseCase creates a new AnalyzePortfolioUseCase.
func NewAnalyzePortfolioUseCase(
	pipeline *service.ExposurePipeline,
	repo port.PortfolioAnalysisRepository,
	results port.ResultStore,
	metrics port.Metrics,
	thresholds valueobject.ConcentrationThresholds,
	logger *slog.Logger,
) *AnalyzePortfolioUseCase {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &AnalyzePortfolioUseCase{
		pipeline:   pipeline,
		repo:       repo,
		results:    results,
		metrics:    metrics,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Execute analyzes the batch, stores the results file and persists a COMPLETED
// analysis. A pipeline error is persisted as a FAILED analysis.
func (uc *AnalyzePortfolioUseCase) Execute(ctx context.Context, req dto.AnalyzePortfolioRequest) (dto.AnalysisResponse, error) {
	batch := req.Batch
	ctx, span := tracer.Start(ctx, "AnalyzePortfolio", trace.WithAttributes(
		attribute.String("batch_id", batch.BatchID.String()),
		attribute.Int("exposures", len(batch.Exposures)),
	))
	defer span.End()

	uc.logger.Info("analyzing portfolio",
		"batch_id", batch.BatchID.String(),
		"exposures", len(batch.Exposures),
		"mitigations", len(batch.Mitigations),
	)

	started := time.Now()
	classified, err := uc.classify(ctx, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return dto.AnalysisResponse{}, err
		}
		pending, perr := model.NewPortfolioAnalysis(batch.BatchID, uc.thresholds)
		if perr != nil {
			return dto.AnalysisResponse{}, fmt.Errorf("failed to analyze batch %s: %w", batch.BatchID, err)
		}
		failed := recordFailure(ctx, uc.repo, uc.metrics, uc.logger, pending, err)
		return toAnalysisResponse(failed, time.Now()), fmt.Errorf("failed to analyze batch %s: %w", batch.BatchID, err)
	}
	uc.metrics.ChunkProcessed(ctx, len(classified), time.Since(started))

	analysis, err := model.Analyze(batch.BatchID, classified, uc.thresholds, time.Now())
	if err != nil {
		return dto.AnalysisResponse{}, fmt.Errorf("failed to build analysis: %w", err)
	}

	uri, err := uc.results.Store(ctx, port.AnalysisResult{
		Analysis:  analysis,
		Exposures: classified,
		BankID:    batch.BankID,
		BankName:  batch.BankName,
	})
	if err != nil {
		span.RecordError(err)
		return dto.AnalysisResponse{}, fmt.Errorf("failed to store results: %w", err)
	}

	if err := uc.repo.Save(ctx, analysis, classified...); err != nil {
		return dto.AnalysisResponse{}, fmt.Errorf("failed to save analysis: %w", err)
	}
	uc.metrics.AnalysisFinished(ctx, analysis.State())

	uc.logger.Info("portfolio analyzed",
		"batch_id", batch.BatchID.String(),
		"total_eur", analysis.TotalPortfolio().String(),
		"hhi_geographic", analysis.GeographicHHI().Value().StringFixed(2),
		"hhi_sector", analysis.SectorHHI().Value().StringFixed(2),
		"result_uri", uri,
	)

	resp := toAnalysisResponse(analysis.ClearDomainEvents(), time.Now())
	resp.ResultURI = uri
	resp.SkippedExposures = batch.Skipped
	return resp, nil
}

func (uc *AnalyzePortfolioUseCase) classify(ctx context.Context, batch port.BatchData) ([]model.ClassifiedExposure, error) {
	index, err := uc.pipeline.PrepareMitigations(ctx, batch.Mitigations)
	if err != nil {
		return nil, err
	}
	return uc.pipeline.ProcessChunk(ctx, batch.Exposures, index)
}
