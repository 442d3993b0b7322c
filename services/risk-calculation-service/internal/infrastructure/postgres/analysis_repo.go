package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bcbs239/regtech/pkg/events"
	sharedpg "github.com/bcbs239/regtech/pkg/postgres"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// PortfolioAnalysisRepo implements port.PortfolioAnalysisRepository using PostgreSQL.
type PortfolioAnalysisRepo struct {
	pool *pgxpool.Pool
}

// NewPortfolioAnalysisRepo creates a new PortfolioAnalysisRepo.
func NewPortfolioAnalysisRepo(pool *pgxpool.Pool) *PortfolioAnalysisRepo {
	return &PortfolioAnalysisRepo{pool: pool}
}

const analysisColumns = `
	batch_id, state, failure_reason, has_progress, total_exposures, processed_exposures,
	chunks, total_portfolio_eur, geographic_totals, sector_totals,
	hhi_geographic, hhi_geographic_level, hhi_sector, hhi_sector_level,
	moderate_threshold, high_threshold, started_at, last_updated_at, analyzed_at, version`

// startRunSQL inserts a new run. An existing row is only replaced when its run
// has finished; an IN_PROGRESS row belongs to a live driver.
const startRunSQL = `
	INSERT INTO portfolio_analyses (` + analysisColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	ON CONFLICT (batch_id) DO UPDATE SET
		state = EXCLUDED.state,
		failure_reason = EXCLUDED.failure_reason,
		has_progress = EXCLUDED.has_progress,
		total_exposures = EXCLUDED.total_exposures,
		processed_exposures = EXCLUDED.processed_exposures,
		chunks = EXCLUDED.chunks,
		total_portfolio_eur = EXCLUDED.total_portfolio_eur,
		geographic_totals = EXCLUDED.geographic_totals,
		sector_totals = EXCLUDED.sector_totals,
		hhi_geographic = EXCLUDED.hhi_geographic,
		hhi_geographic_level = EXCLUDED.hhi_geographic_level,
		hhi_sector = EXCLUDED.hhi_sector,
		hhi_sector_level = EXCLUDED.hhi_sector_level,
		moderate_threshold = EXCLUDED.moderate_threshold,
		high_threshold = EXCLUDED.high_threshold,
		started_at = EXCLUDED.started_at,
		last_updated_at = EXCLUDED.last_updated_at,
		analyzed_at = EXCLUDED.analyzed_at,
		version = EXCLUDED.version
	WHERE portfolio_analyses.state IN ('COMPLETED', 'FAILED')
`

const updateRunSQL = `
	UPDATE portfolio_analyses SET
		state = $2,
		failure_reason = $3,
		has_progress = $4,
		total_exposures = $5,
		processed_exposures = $6,
		chunks = $7,
		total_portfolio_eur = $8,
		geographic_totals = $9,
		sector_totals = $10,
		hhi_geographic = $11,
		hhi_geographic_level = $12,
		hhi_sector = $13,
		hhi_sector_level = $14,
		moderate_threshold = $15,
		high_threshold = $16,
		started_at = $17,
		last_updated_at = $18,
		analyzed_at = $19,
		version = $20
	WHERE batch_id = $1 AND version = $20 - 1
`

const insertExposureSQL = `
	INSERT INTO calculated_exposures (
		batch_id, exposure_id, source_ref, instrument_id,
		counterparty_id, counterparty_name, counterparty_lei,
		original_amount, original_currency, product_type, instrument_type, balance_sheet_type, country,
		gross_eur, mitigation_eur, net_eur, geographic_region, economic_sector,
		limit_breach, requires_reporting
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
`

const insertOutboxSQL = `
	INSERT INTO outbox (id, aggregate_id, aggregate_type, event_type, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// Save persists the analysis with optimistic concurrency control. The given
// exposures and the analysis' domain events are written in the same transaction.
func (r *PortfolioAnalysisRepo) Save(ctx context.Context, analysis model.PortfolioAnalysis, exposures ...model.ClassifiedExposure) error {
	args, err := analysisArgs(analysis)
	if err != nil {
		return err
	}
	entries, err := events.NewOutboxEntries(analysis.DomainEvents())
	if err != nil {
		return fmt.Errorf("failed to build outbox entries: %w", err)
	}
	batchID := analysis.BatchID().String()

	return sharedpg.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		query := updateRunSQL
		if analysis.Version() == 1 {
			query = startRunSQL
		}
		result, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to save portfolio analysis: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("%w: batch %s at version %d", port.ErrVersionConflict, batchID, analysis.Version())
		}

		if analysis.Version() == 1 {
			if _, err := tx.Exec(ctx, `DELETE FROM calculated_exposures WHERE batch_id = $1`, batchID); err != nil {
				return fmt.Errorf("failed to discard previous exposures: %w", err)
			}
		}
		if err := insertExposures(ctx, tx, batchID, exposures); err != nil {
			return err
		}

		for _, e := range entries {
			_, err := tx.Exec(ctx, insertOutboxSQL,
				e.ID, e.AggregateID, e.AggregateType, e.EventType, e.Payload, e.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert outbox event: %w", err)
			}
		}
		return nil
	})
}

func analysisArgs(a model.PortfolioAnalysis) ([]any, error) {
	s := a.Snapshot()

	chunks := s.Chunks
	if chunks == nil {
		chunks = []model.ChunkSnapshot{}
	}
	chunksJSON, err := json.Marshal(chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chunks: %w", err)
	}
	regionsJSON, err := json.Marshal(s.RegionTotals)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geographic totals: %w", err)
	}
	sectorsJSON, err := json.Marshal(s.SectorTotals)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sector totals: %w", err)
	}

	var analyzedAt *time.Time
	if !s.AnalyzedAt.IsZero() {
		analyzedAt = &s.AnalyzedAt
	}

	return []any{
		s.BatchID,
		s.State,
		s.FailureReason,
		s.HasProgress,
		s.TotalExposures,
		s.ProcessedExposures,
		chunksJSON,
		s.TotalPortfolio.String(),
		regionsJSON,
		sectorsJSON,
		a.GeographicHHI().Value().String(),
		a.GeographicHHI().Level().String(),
		a.SectorHHI().Value().String(),
		a.SectorHHI().Level().String(),
		s.ModerateThreshold.String(),
		s.HighThreshold.String(),
		s.StartedAt,
		s.LastUpdatedAt,
		analyzedAt,
		s.Version,
	}, nil
}

func insertExposures(ctx context.Context, tx pgx.Tx, batchID string, exposures []model.ClassifiedExposure) error {
	if len(exposures) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range exposures {
		e := c.Exposure()
		cls := e.Classification()
		lei := ""
		if code, ok := e.Counterparty().LEI(); ok {
			lei = code.String()
		}
		batch.Queue(insertExposureSQL,
			batchID,
			e.ID().UUID(),
			e.SourceRef(),
			e.InstrumentID().String(),
			e.Counterparty().ID(),
			e.Counterparty().Name(),
			lei,
			e.Amount().Amount().String(),
			e.Amount().Currency().Code(),
			cls.ProductType(),
			cls.InstrumentType().String(),
			cls.BalanceSheetType().String(),
			cls.Country().String(),
			c.GrossEur().Value().String(),
			c.MitigationEur().Value().String(),
			c.NetExposure().Value().String(),
			c.Region().String(),
			c.Sector().String(),
			c.Assessment().Breach,
			c.Assessment().RequiresReporting,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range exposures {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("failed to insert calculated exposure %s: %w", exposures[i].Exposure().SourceRef(), err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert calculated exposures: %w", err)
	}
	return nil
}

const selectAnalysisSQL = `
	SELECT batch_id, state, failure_reason, has_progress, total_exposures, processed_exposures,
		chunks, total_portfolio_eur::text, geographic_totals, sector_totals,
		moderate_threshold::text, high_threshold::text, started_at, last_updated_at, analyzed_at, version
	FROM portfolio_analyses
`

// FindByBatchID retrieves the current run of a batch.
func (r *PortfolioAnalysisRepo) FindByBatchID(ctx context.Context, batchID valueobject.BatchID) (model.PortfolioAnalysis, error) {
	row := r.pool.QueryRow(ctx, selectAnalysisSQL+` WHERE batch_id = $1`, batchID.String())
	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PortfolioAnalysis{}, fmt.Errorf("%w: batch %s", port.ErrAnalysisNotFound, batchID)
	}
	return a, err
}

// FindStale lists IN_PROGRESS analyses last updated before the cutoff, oldest first.
func (r *PortfolioAnalysisRepo) FindStale(ctx context.Context, before time.Time, limit int) ([]model.PortfolioAnalysis, error) {
	rows, err := r.pool.Query(ctx, selectAnalysisSQL+`
		WHERE state = 'IN_PROGRESS' AND last_updated_at < $1
		ORDER BY last_updated_at
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale analyses: %w", err)
	}
	defer rows.Close()

	var analyses []model.PortfolioAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return analyses, nil
}

func scanAnalysis(row pgx.Row) (model.PortfolioAnalysis, error) {
	var (
		s                     model.Snapshot
		chunksJSON            []byte
		regionsJSON           []byte
		sectorsJSON           []byte
		total, moderate, high string
		analyzedAt            *time.Time
	)
	err := row.Scan(
		&s.BatchID, &s.State, &s.FailureReason, &s.HasProgress, &s.TotalExposures, &s.ProcessedExposures,
		&chunksJSON, &total, &regionsJSON, &sectorsJSON,
		&moderate, &high, &s.StartedAt, &s.LastUpdatedAt, &analyzedAt, &s.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PortfolioAnalysis{}, err
		}
		return model.PortfolioAnalysis{}, fmt.Errorf("failed to scan portfolio analysis: %w", err)
	}

	if err := json.Unmarshal(chunksJSON, &s.Chunks); err != nil {
		return model.PortfolioAnalysis{}, fmt.Errorf("%w: chunks: %v", model.ErrCorruptSnapshot, err)
	}
	if err := json.Unmarshal(regionsJSON, &s.RegionTotals); err != nil {
		return model.PortfolioAnalysis{}, fmt.Errorf("%w: geographic totals: %v", model.ErrCorruptSnapshot, err)
	}
	if err := json.Unmarshal(sectorsJSON, &s.SectorTotals); err != nil {
		return model.PortfolioAnalysis{}, fmt.Errorf("%w: sector totals: %v", model.ErrCorruptSnapshot, err)
	}
	if s.TotalPortfolio, err = decimal.NewFromString(total); err != nil {
		return model.PortfolioAnalysis{}, fmt.Errorf("%w: total portfolio: %v", model.ErrCorruptSnapshot, err)
	}
	if s.ModerateThreshold, err = decimal.NewFromString(moderate); err != nil {
		return model.PortfolioAnalysis{}, fmt.Errorf("%w: moderate threshold: %v", model.ErrCorruptSnapshot, err)
	}
	if s.HighThreshold, err = decimal.NewFromString(high); err != nil {
		return model.PortfolioAnalysis{}, fmt.Errorf("%w: high threshold: %v", model.ErrCorruptSnapshot, err)
	}
	if analyzedAt != nil {
		s.AnalyzedAt = *analyzedAt
	}
	return model.Reconstruct(s)
}

// ListExposures returns the calculated exposures of the batch's current run in insertion order.
func (r *PortfolioAnalysisRepo) ListExposures(ctx context.Context, batchID valueobject.BatchID) ([]model.ClassifiedExposure, error) {
	const query = `
		SELECT exposure_id::text, source_ref, instrument_id,
			counterparty_id, counterparty_name, counterparty_lei,
			original_amount::text, original_currency, product_type, instrument_type, balance_sheet_type, country,
			gross_eur::text, mitigation_eur::text, geographic_region, economic_sector,
			limit_breach, requires_reporting
		FROM calculated_exposures
		WHERE batch_id = $1
		ORDER BY seq
	`
	rows, err := r.pool.Query(ctx, query, batchID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query calculated exposures: %w", err)
	}
	defer rows.Close()

	var out []model.ClassifiedExposure
	for rows.Next() {
		var er exposureRow
		err := rows.Scan(
			&er.id, &er.sourceRef, &er.instrumentID,
			&er.counterpartyID, &er.counterpartyName, &er.counterpartyLEI,
			&er.amount, &er.currency, &er.productType, &er.instrumentType, &er.balanceSheetType, &er.country,
			&er.gross, &er.mitigation, &er.region, &er.sector,
			&er.breach, &er.reporting,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calculated exposure: %w", err)
		}
		c, err := er.restore()
		if err != nil {
			return nil, fmt.Errorf("invalid calculated exposure %s in database: %w", er.sourceRef, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
