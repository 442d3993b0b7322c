package model

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/bcbs239/regtech/pkg/events"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/event"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// ErrIllegalStateTransition is returned when a lifecycle method is called from a
// state that does not allow it. It signals a driver bug, not a data problem.
var ErrIllegalStateTransition = errors.New("illegal state transition")

// phase is the state-specific part of a PortfolioAnalysis. Only the phases below
// implement it, so a progress counter cannot exist without a started analysis.
type phase interface {
	state() valueobject.ProcessingState
}

type pendingPhase struct{}

type inProgressPhase struct {
	progress valueobject.ProcessingProgress
	chunks   []valueobject.ChunkMetadata
}

type completedPhase struct {
	progress valueobject.ProcessingProgress
	chunks   []valueobject.ChunkMetadata
}

type failedPhase struct {
	reason      string
	progress    valueobject.ProcessingProgress
	hasProgress bool
	chunks      []valueobject.ChunkMetadata
}

func (pendingPhase) state() valueobject.ProcessingState    { return valueobject.StatePending }
func (inProgressPhase) state() valueobject.ProcessingState { return valueobject.StateInProgress }
func (completedPhase) state() valueobject.ProcessingState  { return valueobject.StateCompleted }
func (failedPhase) state() valueobject.ProcessingState     { return valueobject.StateFailed }

// PortfolioAnalysis is the aggregate root of the risk calculation domain. It is
// immutable; every transition returns a new instance with the version bumped.
type PortfolioAnalysis struct {
	batchID    valueobject.BatchID
	thresholds valueobject.ConcentrationThresholds
	phase      phase

	totalPortfolio valueobject.EurAmount
	regionTotals   map[string]valueobject.EurAmount
	sectorTotals   map[string]valueobject.EurAmount

	geographicBreakdown valueobject.Breakdown
	sectorBreakdown     valueobject.Breakdown
	geographicHHI       valueobject.HHI
	sectorHHI           valueobject.HHI

	startedAt     time.Time
	lastUpdatedAt time.Time
	analyzedAt    time.Time
	version       int
	events        events.EventCollector
}

// NewPortfolioAnalysis creates a PENDING analysis with version 0. It is not
// persisted until its first transition.
func NewPortfolioAnalysis(batchID valueobject.BatchID, thresholds valueobject.ConcentrationThresholds) (PortfolioAnalysis, error) {
	if batchID.IsZero() {
		return PortfolioAnalysis{}, fmt.Errorf("batch ID is required")
	}
	a := PortfolioAnalysis{
		batchID:      batchID,
		thresholds:   thresholds,
		phase:        pendingPhase{},
		regionTotals: map[string]valueobject.EurAmount{},
		sectorTotals: map[string]valueobject.EurAmount{},
	}
	if err := a.recompute(); err != nil {
		return PortfolioAnalysis{}, err
	}
	return a, nil
}

// Analyze builds a COMPLETED analysis from a fully classified batch in one step.
// The result has no chunk history and cannot be resumed.
func Analyze(
	batchID valueobject.BatchID,
	classified []ClassifiedExposure,
	thresholds valueobject.ConcentrationThresholds,
	now time.Time,
) (PortfolioAnalysis, error) {
	a, err := NewPortfolioAnalysis(batchID, thresholds)
	if err != nil {
		return PortfolioAnalysis{}, err
	}
	now = now.UTC()

	a = a.accumulate(classified)
	if err := a.recompute(); err != nil {
		return PortfolioAnalysis{}, err
	}

	progress, err := valueobject.RestoreProgress(len(classified), len(classified), now, now)
	if err != nil {
		return PortfolioAnalysis{}, err
	}
	a.phase = completedPhase{progress: progress}
	a.startedAt = now
	a.lastUpdatedAt = now
	a.analyzedAt = now
	a.version = 1
	a.events = a.events.Record(event.NewAnalysisCompleted(a.completedData(now)))
	return a, nil
}

// StartProcessing moves a PENDING analysis to IN_PROGRESS for totalExposures exposures.
func (a PortfolioAnalysis) StartProcessing(totalExposures int, now time.Time) (PortfolioAnalysis, error) {
	if a.State() != valueobject.StatePending {
		return PortfolioAnalysis{}, a.illegal("start processing", valueobject.StatePending)
	}
	now = now.UTC()
	progress, err := valueobject.InitialProgress(totalExposures, now)
	if err != nil {
		return PortfolioAnalysis{}, err
	}

	updated := a.clone()
	updated.phase = inProgressPhase{progress: progress}
	updated.startedAt = now
	updated.lastUpdatedAt = now
	updated.version = a.version + 1
	updated.events = updated.events.Record(event.NewAnalysisStarted(a.batchID.String(), totalExposures, now))
	return updated, nil
}

// CompleteChunk folds one processed chunk into the running totals. Chunks must be
// applied in index order and meta.Size must equal len(classified).
func (a PortfolioAnalysis) CompleteChunk(meta valueobject.ChunkMetadata, classified []ClassifiedExposure, now time.Time) (PortfolioAnalysis, error) {
	p, ok := a.phase.(inProgressPhase)
	if !ok {
		return PortfolioAnalysis{}, a.illegal("complete chunk", valueobject.StateInProgress)
	}
	if want := len(p.chunks); meta.Index() != want {
		return PortfolioAnalysis{}, fmt.Errorf("%w: chunk %d applied out of order, expected chunk %d",
			ErrIllegalStateTransition, meta.Index(), want)
	}
	if meta.Size() != len(classified) {
		return PortfolioAnalysis{}, fmt.Errorf("chunk %d declares %d exposures but carries %d",
			meta.Index(), meta.Size(), len(classified))
	}
	progress, err := p.progress.Advance(meta.Size(), now)
	if err != nil {
		return PortfolioAnalysis{}, fmt.Errorf("chunk %d: %w", meta.Index(), err)
	}

	updated := a.accumulate(classified)
	if err := updated.recompute(); err != nil {
		return PortfolioAnalysis{}, err
	}
	chunks := make([]valueobject.ChunkMetadata, len(p.chunks), len(p.chunks)+1)
	copy(chunks, p.chunks)
	updated.phase = inProgressPhase{progress: progress, chunks: append(chunks, meta)}
	updated.lastUpdatedAt = progress.LastUpdateAt()
	updated.version = a.version + 1
	updated.events = updated.events.Record(event.NewChunkCompleted(event.ChunkCompletedData{
		BatchID:            a.batchID.String(),
		ChunkIndex:         meta.Index(),
		ChunkSize:          meta.Size(),
		ProcessedExposures: progress.Processed(),
		TotalExposures:     progress.Total(),
		ProcessingMillis:   meta.ProcessingTime().Milliseconds(),
		ExposuresPerSecond: meta.ExposuresPerSecond(),
	}, progress.LastUpdateAt()))
	return updated, nil
}

// Complete finalizes an IN_PROGRESS analysis once every exposure has been processed.
// Progress and chunks are kept for audit.
func (a PortfolioAnalysis) Complete(now time.Time) (PortfolioAnalysis, error) {
	p, ok := a.phase.(inProgressPhase)
	if !ok {
		return PortfolioAnalysis{}, a.illegal("complete", valueobject.StateInProgress)
	}
	if !p.progress.IsComplete() {
		return PortfolioAnalysis{}, fmt.Errorf("%w: cannot complete: processed %d of %d exposures",
			ErrIllegalStateTransition, p.progress.Processed(), p.progress.Total())
	}
	now = a.notBeforeLastUpdate(now)

	updated := a.clone()
	updated.phase = completedPhase{progress: p.progress, chunks: p.chunks}
	updated.lastUpdatedAt = now
	updated.analyzedAt = now
	updated.version = a.version + 1
	updated.events = updated.events.Record(event.NewAnalysisCompleted(updated.completedData(now)))
	return updated, nil
}

// Fail marks the analysis FAILED. Any non-COMPLETED analysis can fail; partial
// progress and chunks are kept for diagnosis.
func (a PortfolioAnalysis) Fail(reason string, now time.Time) (PortfolioAnalysis, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return PortfolioAnalysis{}, fmt.Errorf("failure reason is required")
	}

	var failed failedPhase
	switch p := a.phase.(type) {
	case completedPhase:
		return PortfolioAnalysis{}, fmt.Errorf("%w: cannot fail: analysis is already COMPLETED", ErrIllegalStateTransition)
	case pendingPhase, nil:
		failed = failedPhase{reason: reason}
	case inProgressPhase:
		failed = failedPhase{reason: reason, progress: p.progress, hasProgress: true, chunks: p.chunks}
	case failedPhase:
		failed = p
		failed.reason = reason
	}
	now = a.notBeforeLastUpdate(now)

	updated := a.clone()
	updated.phase = failed
	updated.lastUpdatedAt = now
	updated.version = a.version + 1

	data := event.AnalysisFailedData{BatchID: a.batchID.String(), Reason: reason, FailedAt: now}
	if failed.hasProgress {
		data.ProcessedExposures = failed.progress.Processed()
		data.TotalExposures = failed.progress.Total()
	}
	updated.events = updated.events.Record(event.NewAnalysisFailed(data))
	return updated, nil
}

// CanResume reports whether the analysis is IN_PROGRESS with at least one chunk recorded.
func (a PortfolioAnalysis) CanResume() bool {
	p, ok := a.phase.(inProgressPhase)
	return ok && len(p.chunks) > 0
}

// LastProcessedChunkIndex returns the index of the last applied chunk, if any.
func (a PortfolioAnalysis) LastProcessedChunkIndex() (int, bool) {
	chunks := a.ProcessedChunks()
	if len(chunks) == 0 {
		return 0, false
	}
	return chunks[len(chunks)-1].Index(), true
}

// ProcessingRate is the observed throughput in exposures per second across all
// recorded chunks. It is false when no chunk has a measurable duration.
func (a PortfolioAnalysis) ProcessingRate() (float64, bool) {
	var rates, weights []float64
	for _, c := range a.ProcessedChunks() {
		secs := c.ProcessingTime().Seconds()
		if secs <= 0 {
			continue
		}
		rates = append(rates, c.ExposuresPerSecond())
		weights = append(weights, secs)
	}
	if len(rates) == 0 {
		return 0, false
	}
	// Weighting each chunk rate by its duration yields total size / total time.
	return stat.Mean(rates, weights), true
}

// EstimatedCompletion extrapolates the observed rate over the remaining exposures.
// Only IN_PROGRESS analyses with a known rate have an estimate.
func (a PortfolioAnalysis) EstimatedCompletion(now time.Time) (time.Time, bool) {
	p, ok := a.phase.(inProgressPhase)
	if !ok {
		return time.Time{}, false
	}
	rate, ok := a.ProcessingRate()
	if !ok || rate <= 0 {
		return time.Time{}, false
	}
	remaining := time.Duration(float64(p.progress.Remaining()) / rate * float64(time.Second))
	return now.UTC().Add(remaining), true
}

// IsStale reports whether an IN_PROGRESS analysis has not moved for longer than window.
func (a PortfolioAnalysis) IsStale(now time.Time, window time.Duration) bool {
	if _, ok := a.phase.(inProgressPhase); !ok {
		return false
	}
	return now.Sub(a.lastUpdatedAt) > window
}

// --- Accessors ---

func (a PortfolioAnalysis) BatchID() valueobject.BatchID                    { return a.batchID }
func (a PortfolioAnalysis) Thresholds() valueobject.ConcentrationThresholds { return a.thresholds }
func (a PortfolioAnalysis) TotalPortfolio() valueobject.EurAmount           { return a.totalPortfolio }
func (a PortfolioAnalysis) GeographicBreakdown() valueobject.Breakdown      { return a.geographicBreakdown }
func (a PortfolioAnalysis) SectorBreakdown() valueobject.Breakdown          { return a.sectorBreakdown }
func (a PortfolioAnalysis) GeographicHHI() valueobject.HHI                  { return a.geographicHHI }
func (a PortfolioAnalysis) SectorHHI() valueobject.HHI                      { return a.sectorHHI }
func (a PortfolioAnalysis) StartedAt() time.Time                            { return a.startedAt }
func (a PortfolioAnalysis) LastUpdatedAt() time.Time                        { return a.lastUpdatedAt }
func (a PortfolioAnalysis) Version() int                                    { return a.version }

// State returns the lifecycle state.
func (a PortfolioAnalysis) State() valueobject.ProcessingState {
	if a.phase == nil {
		return valueobject.StatePending
	}
	return a.phase.state()
}

// AnalyzedAt returns when the analysis completed, and false if it has not.
func (a PortfolioAnalysis) AnalyzedAt() (time.Time, bool) {
	return a.analyzedAt, !a.analyzedAt.IsZero()
}

// Progress returns the processing counter. PENDING analyses, and analyses that
// failed before starting, have none.
func (a PortfolioAnalysis) Progress() (valueobject.ProcessingProgress, bool) {
	switch p := a.phase.(type) {
	case inProgressPhase:
		return p.progress, true
	case completedPhase:
		return p.progress, true
	case failedPhase:
		return p.progress, p.hasProgress
	default:
		return valueobject.ProcessingProgress{}, false
	}
}

// ProcessedChunks returns a copy of the chunk history.
func (a PortfolioAnalysis) ProcessedChunks() []valueobject.ChunkMetadata {
	var chunks []valueobject.ChunkMetadata
	switch p := a.phase.(type) {
	case inProgressPhase:
		chunks = p.chunks
	case completedPhase:
		chunks = p.chunks
	case failedPhase:
		chunks = p.chunks
	}
	if len(chunks) == 0 {
		return nil
	}
	out := make([]valueobject.ChunkMetadata, len(chunks))
	copy(out, chunks)
	return out
}

// FailureReason returns the reason recorded by Fail.
func (a PortfolioAnalysis) FailureReason() (string, bool) {
	if p, ok := a.phase.(failedPhase); ok {
		return p.reason, true
	}
	return "", false
}

// DomainEvents returns all uncommitted domain events.
func (a PortfolioAnalysis) DomainEvents() []events.DomainEvent {
	return a.events.Events()
}

// ClearDomainEvents returns a new PortfolioAnalysis with domain events cleared.
func (a PortfolioAnalysis) ClearDomainEvents() PortfolioAnalysis {
	updated := a.clone()
	updated.events = events.EventCollector{}
	return updated
}

func (a PortfolioAnalysis) illegal(action string, expected valueobject.ProcessingState) error {
	return fmt.Errorf("%w: cannot %s: current state is %s, expected %s",
		ErrIllegalStateTransition, action, a.State(), expected)
}

// accumulate returns a copy with the net amounts of classified added to the
// running totals. The receiver's maps are never written.
func (a PortfolioAnalysis) accumulate(classified []ClassifiedExposure) PortfolioAnalysis {
	updated := a.clone()
	for _, c := range classified {
		net := c.NetExposure()
		updated.totalPortfolio = updated.totalPortfolio.Add(net)
		updated.regionTotals[c.Region().String()] = updated.regionTotals[c.Region().String()].Add(net)
		updated.sectorTotals[c.Sector().String()] = updated.sectorTotals[c.Sector().String()].Add(net)
	}
	return updated
}

// recompute derives breakdowns and indices from the running totals.
func (a *PortfolioAnalysis) recompute() error {
	geo, err := valueobject.NewBreakdown(a.regionTotals, a.totalPortfolio)
	if err != nil {
		return fmt.Errorf("failed to build geographic breakdown: %w", err)
	}
	sec, err := valueobject.NewBreakdown(a.sectorTotals, a.totalPortfolio)
	if err != nil {
		return fmt.Errorf("failed to build sector breakdown: %w", err)
	}
	a.geographicBreakdown = geo
	a.sectorBreakdown = sec
	a.geographicHHI = valueobject.CalculateHHI(geo, a.thresholds)
	a.sectorHHI = valueobject.CalculateHHI(sec, a.thresholds)
	return nil
}

func (a PortfolioAnalysis) completedData(now time.Time) event.AnalysisCompletedData {
	progress, _ := a.Progress()
	return event.AnalysisCompletedData{
		BatchID:         a.batchID.String(),
		TotalExposures:  progress.Total(),
		TotalAmountEUR:  a.totalPortfolio.Value().StringFixed(2),
		GeographicHHI:   a.geographicHHI.Value().StringFixed(2),
		GeographicLevel: a.geographicHHI.Level().String(),
		SectorHHI:       a.sectorHHI.Value().StringFixed(2),
		SectorLevel:     a.sectorHHI.Level().String(),
		ProcessedChunks: len(a.ProcessedChunks()),
		CompletedAt:     now,
	}
}

func (a PortfolioAnalysis) notBeforeLastUpdate(now time.Time) time.Time {
	now = now.UTC()
	if now.Before(a.lastUpdatedAt) {
		return a.lastUpdatedAt
	}
	return now
}

// clone creates a copy that shares no maps with the receiver.
func (a PortfolioAnalysis) clone() PortfolioAnalysis {
	cloned := a
	cloned.regionTotals = maps.Clone(a.regionTotals)
	cloned.sectorTotals = maps.Clone(a.sectorTotals)
	if cloned.regionTotals == nil {
		cloned.regionTotals = map[string]valueobject.EurAmount{}
	}
	if cloned.sectorTotals == nil {
		cloned.sectorTotals = map[string]valueobject.EurAmount{}
	}
	return cloned
}
