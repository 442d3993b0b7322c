package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// ErrCorruptSnapshot is returned when persisted analysis data cannot be turned
// back into a consistent aggregate. Missing breakdowns are never defaulted.
var ErrCorruptSnapshot = errors.New("corrupt portfolio analysis snapshot")

// ChunkSnapshot is the persisted form of a ChunkMetadata.
type ChunkSnapshot struct {
	Index          int           `json:"index"`
	Size           int           `json:"size"`
	ProcessedAt    time.Time     `json:"processed_at"`
	ProcessingTime time.Duration `json:"processing_time_ns"`
}

// Snapshot is the flat, persistable state of a PortfolioAnalysis.
type Snapshot struct {
	BatchID            string
	State              string
	FailureReason      string
	TotalExposures     int
	ProcessedExposures int
	HasProgress        bool
	Chunks             []ChunkSnapshot
	TotalPortfolio     decimal.Decimal
	RegionTotals       map[string]decimal.Decimal
	SectorTotals       map[string]decimal.Decimal
	ModerateThreshold  decimal.Decimal
	HighThreshold      decimal.Decimal
	StartedAt          time.Time
	LastUpdatedAt      time.Time
	AnalyzedAt         time.Time
	Version            int
}

// Snapshot flattens the aggregate for persistence.
func (a PortfolioAnalysis) Snapshot() Snapshot {
	s := Snapshot{
		BatchID:           a.batchID.String(),
		State:             a.State().String(),
		TotalPortfolio:    a.totalPortfolio.Value(),
		RegionTotals:      make(map[string]decimal.Decimal, len(a.regionTotals)),
		SectorTotals:      make(map[string]decimal.Decimal, len(a.sectorTotals)),
		ModerateThreshold: a.thresholds.Moderate(),
		HighThreshold:     a.thresholds.High(),
		StartedAt:         a.startedAt,
		LastUpdatedAt:     a.lastUpdatedAt,
		AnalyzedAt:        a.analyzedAt,
		Version:           a.version,
	}
	for k, v := range a.regionTotals {
		s.RegionTotals[k] = v.Value()
	}
	for k, v := range a.sectorTotals {
		s.SectorTotals[k] = v.Value()
	}
	if p, ok := a.Progress(); ok {
		s.HasProgress = true
		s.TotalExposures = p.Total()
		s.ProcessedExposures = p.Processed()
	}
	s.FailureReason, _ = a.FailureReason()
	for _, c := range a.ProcessedChunks() {
		s.Chunks = append(s.Chunks, ChunkSnapshot{
			Index:          c.Index(),
			Size:           c.Size(),
			ProcessedAt:    c.ProcessedAt(),
			ProcessingTime: c.ProcessingTime(),
		})
	}
	return s
}

// Reconstruct rebuilds a PortfolioAnalysis from persisted data without emitting
// events. Breakdowns and indices are recomputed from the stored totals, so a
// snapshot whose totals are missing or do not add up is rejected.
func Reconstruct(s Snapshot) (PortfolioAnalysis, error) {
	corrupt := func(format string, args ...any) (PortfolioAnalysis, error) {
		return PortfolioAnalysis{}, fmt.Errorf("%w: batch %s: %s", ErrCorruptSnapshot, s.BatchID, fmt.Sprintf(format, args...))
	}

	batchID, err := valueobject.NewBatchID(s.BatchID)
	if err != nil {
		return corrupt("%v", err)
	}
	state, err := valueobject.NewProcessingState(s.State)
	if err != nil {
		return corrupt("%v", err)
	}
	thresholds, err := valueobject.NewConcentrationThresholds(s.ModerateThreshold, s.HighThreshold)
	if err != nil {
		return corrupt("%v", err)
	}
	if s.RegionTotals == nil {
		return corrupt("missing geographic breakdown")
	}
	if s.SectorTotals == nil {
		return corrupt("missing sector breakdown")
	}

	total, err := valueobject.NewEurAmount(s.TotalPortfolio)
	if err != nil {
		return corrupt("total portfolio: %v", err)
	}
	regions, err := restoreTotals(s.RegionTotals, func(k string) error {
		_, err := valueobject.NewGeographicRegion(k)
		return err
	})
	if err != nil {
		return corrupt("geographic breakdown: %v", err)
	}
	sectors, err := restoreTotals(s.SectorTotals, func(k string) error {
		_, err := valueobject.NewEconomicSector(k)
		return err
	})
	if err != nil {
		return corrupt("sector breakdown: %v", err)
	}

	a := PortfolioAnalysis{
		batchID:        batchID,
		thresholds:     thresholds,
		totalPortfolio: total,
		regionTotals:   regions,
		sectorTotals:   sectors,
		startedAt:      s.StartedAt.UTC(),
		lastUpdatedAt:  s.LastUpdatedAt.UTC(),
		version:        s.Version,
	}
	if !s.AnalyzedAt.IsZero() {
		a.analyzedAt = s.AnalyzedAt.UTC()
	}
	if err := a.recompute(); err != nil {
		return corrupt("%v", err)
	}

	chunks, err := restoreChunks(s.Chunks)
	if err != nil {
		return corrupt("%v", err)
	}
	if len(chunks) > 0 {
		covered := 0
		for _, c := range chunks {
			covered += c.Size()
		}
		if covered != s.ProcessedExposures {
			return corrupt("chunk history covers %d exposures, progress reports %d", covered, s.ProcessedExposures)
		}
	}
	var progress valueobject.ProcessingProgress
	if s.HasProgress {
		progress, err = valueobject.RestoreProgress(s.TotalExposures, s.ProcessedExposures, s.StartedAt, s.LastUpdatedAt)
		if err != nil {
			return corrupt("%v", err)
		}
	}

	switch state {
	case valueobject.StatePending:
		a.phase = pendingPhase{}
	case valueobject.StateInProgress:
		if !s.HasProgress {
			return corrupt("IN_PROGRESS analysis has no progress")
		}
		a.phase = inProgressPhase{progress: progress, chunks: chunks}
	case valueobject.StateCompleted:
		if !s.HasProgress {
			return corrupt("COMPLETED analysis has no progress")
		}
		a.phase = completedPhase{progress: progress, chunks: chunks}
	case valueobject.StateFailed:
		a.phase = failedPhase{reason: s.FailureReason, progress: progress, hasProgress: s.HasProgress, chunks: chunks}
	}
	return a, nil
}

func restoreTotals(in map[string]decimal.Decimal, validKey func(string) error) (map[string]valueobject.EurAmount, error) {
	out := make(map[string]valueobject.EurAmount, len(in))
	for k, v := range in {
		if err := validKey(k); err != nil {
			return nil, err
		}
		amount, err := valueobject.NewEurAmount(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = amount
	}
	return out, nil
}

func restoreChunks(in []ChunkSnapshot) ([]valueobject.ChunkMetadata, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]valueobject.ChunkMetadata, 0, len(in))
	for i, c := range in {
		if c.Index != i {
			return nil, fmt.Errorf("chunk history has index %d at position %d", c.Index, i)
		}
		meta, err := valueobject.NewChunkMetadata(c.Index, c.Size, c.ProcessedAt, c.ProcessingTime)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}
