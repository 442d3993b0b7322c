package service

import (
	"context"
	"fmt"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
)

// ExposurePipeline runs Valuation, Protection, Classification and limit checks
// over a chunk of exposures. It holds no per-batch state and is safe for
// concurrent use by multiple workers.
type ExposurePipeline struct {
	rates      port.ExchangeRateProvider
	geographic GeographicClassifier
	sectors    *SectorClassifier
	limits     LargeExposureLimitChecker
}

// NewExposurePipeline creates a new ExposurePipeline.
func NewExposurePipeline(
	rates port.ExchangeRateProvider,
	geographic GeographicClassifier,
	sectors *SectorClassifier,
	limits LargeExposureLimitChecker,
) *ExposurePipeline {
	return &ExposurePipeline{
		rates:      rates,
		geographic: geographic,
		sectors:    sectors,
		limits:     limits,
	}
}

// PrepareMitigations converts every mitigation record of a batch to EUR and
// groups them by counterparty. Rate lookups are shared across the records.
func (p *ExposurePipeline) PrepareMitigations(ctx context.Context, records []model.MitigationRecord) (MitigationIndex, error) {
	engine := NewMitigationEngine(NewValuationService(NewChunkRateCache(p.rates)))

	mitigations := make([]model.Mitigation, 0, len(records))
	for i, r := range records {
		m, err := engine.FromRecord(ctx, r)
		if err != nil {
			return MitigationIndex{}, fmt.Errorf("mitigation %d (counterparty %q): %w", i, r.CounterpartyID, err)
		}
		mitigations = append(mitigations, m)
	}
	return GroupByCounterparty(mitigations), nil
}

// ProcessChunk classifies exposures in order. It stops at the first exposure
// that cannot be valued or classified, or when ctx is cancelled.
func (p *ExposurePipeline) ProcessChunk(
	ctx context.Context,
	exposures []model.ExposureRecording,
	mitigations MitigationIndex,
) ([]model.ClassifiedExposure, error) {
	valuation := NewValuationService(NewChunkRateCache(p.rates))

	out := make([]model.ClassifiedExposure, 0, len(exposures))
	for _, e := range exposures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		gross, err := valuation.Convert(ctx, e.Amount())
		if err != nil {
			return nil, fmt.Errorf("exposure %s: %w", e.SourceRef(), err)
		}
		mitigated := mitigations.For(e)
		net := gross.SubtractFloored(mitigated)

		cls := e.Classification()
		c, err := model.NewClassifiedExposure(
			e,
			gross,
			mitigated,
			p.geographic.Classify(cls.Country()),
			p.sectors.Classify(cls.ProductType(), cls.InstrumentType()),
			p.limits.Check(net),
		)
		if err != nil {
			return nil, fmt.Errorf("exposure %s: %w", e.SourceRef(), err)
		}
		out = append(out, c)
	}
	return out, nil
}
