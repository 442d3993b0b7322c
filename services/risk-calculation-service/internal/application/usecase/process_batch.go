package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/service"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// DefaultChunkSize is the number of exposures per checkpoint when none is configured.
const DefaultChunkSize = 1000

// ProcessBatchConfig tunes chunked processing.
type ProcessBatchConfig struct {
	ChunkSize  int
	Workers    int
	Thresholds valueobject.ConcentrationThresholds
}

// ProcessBatchUseCase processes a large batch in checkpointed chunks. Chunks are
// computed in parallel and applied to the aggregate in index order, one at a
// time, with a save after each.
type ProcessBatchUseCase struct {
	pipeline *service.ExposurePipeline
	repo     port.PortfolioAnalysisRepository
	results  port.ResultStore
	metrics  port.Metrics
	cfg      ProcessBatchConfig
	logger   *slog.Logger
}

// NewProcessBatchUseCase creates a new ProcessBatchUseCase.
func NewProcessBatchUseCase(
	pipeline *service.ExposurePipeline,
	repo port.PortfolioAnalysisRepository,
	results port.ResultStore,
	metrics port.Metrics,
	cfg ProcessBatchConfig,
	logger *slog.Logger,
) *ProcessBatchUseCase {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &ProcessBatchUseCase{
		pipeline: pipeline,
		repo:     repo,
		results:  results,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}
}

type chunkResult struct {
	index      int
	classified []model.ClassifiedExposure
	took       time.Duration
}

// Execute processes the batch, resuming an IN_PROGRESS analysis after its last
// checkpoint. A COMPLETED analysis is returned as is. If ctx is cancelled the
// analysis stays IN_PROGRESS; a version conflict leaves it to the other driver;
// any other error marks it FAILED.
func (uc *ProcessBatchUseCase) Execute(ctx context.Context, req dto.ProcessBatchRequest) (dto.AnalysisResponse, error) {
	batch := req.Batch
	ctx, span := tracer.Start(ctx, "ProcessBatch", trace.WithAttributes(
		attribute.String("batch_id", batch.BatchID.String()),
		attribute.Int("exposures", len(batch.Exposures)),
		attribute.Int("chunk_size", uc.cfg.ChunkSize),
	))
	defer span.End()

	analysis, err := uc.load(ctx, batch)
	if err != nil {
		span.RecordError(err)
		return dto.AnalysisResponse{}, err
	}
	if analysis.State() == valueobject.StateCompleted {
		uc.logger.Info("batch already analyzed", "batch_id", batch.BatchID.String())
		return toAnalysisResponse(analysis, time.Now()), nil
	}

	// Resume from the processed offset; the chunk size may differ from the previous run.
	next, offset := 0, 0
	if last, ok := analysis.LastProcessedChunkIndex(); ok {
		next = last + 1
	}
	if progress, ok := analysis.Progress(); ok {
		offset = progress.Processed()
	}
	chunks := splitChunks(batch.Exposures[offset:], uc.cfg.ChunkSize)
	span.SetAttributes(
		attribute.Int("chunks", next+len(chunks)),
		attribute.Int("resume_from", next),
		attribute.Int("resume_offset", offset),
	)

	index, err := uc.pipeline.PrepareMitigations(ctx, batch.Mitigations)
	if err != nil {
		return uc.abort(ctx, span, analysis, err)
	}

	for start := 0; start < len(chunks); start += uc.cfg.Workers {
		end := min(start+uc.cfg.Workers, len(chunks))
		results, err := uc.computeWindow(ctx, chunks[start:end], next+start, index)
		if err != nil {
			return uc.abort(ctx, span, analysis, err)
		}
		for _, r := range results {
			analysis, err = uc.applyChunk(ctx, analysis, r)
			if errors.Is(err, port.ErrVersionConflict) {
				// Another driver owns the batch; its checkpoints stand.
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return toAnalysisResponse(analysis, time.Now()), err
			}
			if err != nil {
				return uc.abort(ctx, span, analysis, err)
			}
		}
	}

	return uc.finish(ctx, span, analysis, batch)
}

// load returns the analysis to continue: the stored one when it is COMPLETED or
// IN_PROGRESS, otherwise a freshly started run that supersedes it.
func (uc *ProcessBatchUseCase) load(ctx context.Context, batch port.BatchData) (model.PortfolioAnalysis, error) {
	total := len(batch.Exposures)

	existing, err := uc.repo.FindByBatchID(ctx, batch.BatchID)
	switch {
	case errors.Is(err, port.ErrAnalysisNotFound):
	case err != nil:
		return model.PortfolioAnalysis{}, fmt.Errorf("failed to load analysis for batch %s: %w", batch.BatchID, err)
	case existing.State() == valueobject.StateCompleted:
		return existing, nil
	case existing.State() == valueobject.StateInProgress:
		progress, _ := existing.Progress()
		if progress.Total() != total {
			return model.PortfolioAnalysis{}, fmt.Errorf(
				"cannot resume batch %s: analysis expects %d exposures, batch has %d",
				batch.BatchID, progress.Total(), total)
		}
		last, _ := existing.LastProcessedChunkIndex()
		uc.logger.Info("resuming analysis",
			"batch_id", batch.BatchID.String(),
			"processed", progress.Processed(),
			"total", total,
			"last_chunk", last,
			"can_resume", existing.CanResume(),
		)
		return existing, nil
	default:
		uc.logger.Info("superseding previous analysis",
			"batch_id", batch.BatchID.String(),
			"previous_state", existing.State().String(),
		)
	}

	fresh, err := model.NewPortfolioAnalysis(batch.BatchID, uc.cfg.Thresholds)
	if err != nil {
		return model.PortfolioAnalysis{}, err
	}
	started, err := fresh.StartProcessing(total, time.Now())
	if err != nil {
		return model.PortfolioAnalysis{}, fmt.Errorf("failed to start processing: %w", err)
	}
	if err := uc.repo.Save(ctx, started); err != nil {
		return model.PortfolioAnalysis{}, fmt.Errorf("failed to save started analysis: %w", err)
	}
	uc.logger.Info("analysis started", "batch_id", batch.BatchID.String(), "total", total)
	return started.ClearDomainEvents(), nil
}

// computeWindow runs the pipeline over a window of chunks in parallel. The
// results are returned in chunk order.
func (uc *ProcessBatchUseCase) computeWindow(
	ctx context.Context,
	window [][]model.ExposureRecording,
	firstIndex int,
	index service.MitigationIndex,
) ([]chunkResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.cfg.Workers)

	out := make([]chunkResult, len(window))
	for i, exposures := range window {
		g.Go(func() error {
			started := time.Now()
			classified, err := uc.pipeline.ProcessChunk(gctx, exposures, index)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", firstIndex+i, err)
			}
			out[i] = chunkResult{index: firstIndex + i, classified: classified, took: time.Since(started)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// applyChunk checkpoints one chunk. Save errors leave the stored analysis at
// its previous checkpoint.
func (uc *ProcessBatchUseCase) applyChunk(ctx context.Context, analysis model.PortfolioAnalysis, r chunkResult) (model.PortfolioAnalysis, error) {
	now := time.Now()
	meta, err := valueobject.NewChunkMetadata(r.index, len(r.classified), now, r.took)
	if err != nil {
		return analysis, err
	}
	updated, err := analysis.CompleteChunk(meta, r.classified, now)
	if err != nil {
		return analysis, fmt.Errorf("failed to apply chunk %d: %w", r.index, err)
	}
	if err := uc.repo.Save(ctx, updated, r.classified...); err != nil {
		return analysis, fmt.Errorf("failed to checkpoint chunk %d: %w", r.index, err)
	}
	uc.metrics.ChunkProcessed(ctx, meta.Size(), meta.ProcessingTime())

	progress, _ := updated.Progress()
	uc.logger.Debug("chunk checkpointed",
		"batch_id", updated.BatchID().String(),
		"chunk", r.index,
		"size", meta.Size(),
		"processed", progress.Processed(),
		"total", progress.Total(),
		"took", r.took,
	)
	return updated.ClearDomainEvents(), nil
}

func (uc *ProcessBatchUseCase) finish(
	ctx context.Context,
	span trace.Span,
	analysis model.PortfolioAnalysis,
	batch port.BatchData,
) (dto.AnalysisResponse, error) {
	completed, err := analysis.Complete(time.Now())
	if err != nil {
		return uc.abort(ctx, span, analysis, err)
	}

	exposures, err := uc.repo.ListExposures(ctx, batch.BatchID)
	if err != nil {
		return toAnalysisResponse(analysis, time.Now()), fmt.Errorf("failed to load calculated exposures: %w", err)
	}
	uri, err := uc.results.Store(ctx, port.AnalysisResult{
		Analysis:  completed,
		Exposures: exposures,
		BankID:    batch.BankID,
		BankName:  batch.BankName,
	})
	if err != nil {
		return uc.abort(ctx, span, analysis, fmt.Errorf("failed to store results: %w", err))
	}

	if err := uc.repo.Save(ctx, completed); err != nil {
		return toAnalysisResponse(analysis, time.Now()), fmt.Errorf("failed to save completed analysis: %w", err)
	}
	uc.metrics.AnalysisFinished(ctx, completed.State())

	uc.logger.Info("batch processed",
		"batch_id", batch.BatchID.String(),
		"chunks", len(completed.ProcessedChunks()),
		"total_eur", completed.TotalPortfolio().String(),
		"result_uri", uri,
	)

	resp := toAnalysisResponse(completed.ClearDomainEvents(), time.Now())
	resp.ResultURI = uri
	resp.SkippedExposures = batch.Skipped
	return resp, nil
}

// abort handles a processing error. Cancellation leaves the analysis IN_PROGRESS
// so it can be resumed; anything else fails it.
func (uc *ProcessBatchUseCase) abort(
	ctx context.Context,
	span trace.Span,
	analysis model.PortfolioAnalysis,
	cause error,
) (dto.AnalysisResponse, error) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	if ctx.Err() != nil {
		uc.logger.Warn("processing interrupted, analysis left in progress",
			"batch_id", analysis.BatchID().String(),
			"error", cause,
		)
		return toAnalysisResponse(analysis, time.Now()), cause
	}

	failed := recordFailure(ctx, uc.repo, uc.metrics, uc.logger, analysis, cause)
	return toAnalysisResponse(failed, time.Now()), fmt.Errorf("failed to process batch %s: %w", analysis.BatchID(), cause)
}

func splitChunks(exposures []model.ExposureRecording, size int) [][]model.ExposureRecording {
	var chunks [][]model.ExposureRecording
	for start := 0; start < len(exposures); start += size {
		end := min(start+size, len(exposures))
		chunks = append(chunks, exposures[start:end])
	}
	return chunks
}
