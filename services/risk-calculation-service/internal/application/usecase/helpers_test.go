package usecase_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/pkg/events"
	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/pkg/testutil"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/service"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// --- In-memory repository ---

// inMemoryRepo stores snapshots so every read goes through Reconstruct, and
// applies the same version rules as the Postgres repository.
type inMemoryRepo struct {
	mu        sync.Mutex
	analyses  map[string]model.Snapshot
	exposures map[string][]model.ClassifiedExposure
	events    []events.DomainEvent
	saves     int
	saveErr   error
	// chunkErr fails only saves that carry exposures.
	chunkErr error
}

func newInMemoryRepo() *inMemoryRepo {
	return &inMemoryRepo{
		analyses:  map[string]model.Snapshot{},
		exposures: map[string][]model.ClassifiedExposure{},
	}
}

func (r *inMemoryRepo) Save(_ context.Context, a model.PortfolioAnalysis, exposures ...model.ClassifiedExposure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	if r.chunkErr != nil && len(exposures) > 0 {
		return r.chunkErr
	}

	id := a.BatchID().String()
	stored, exists := r.analyses[id]
	if a.Version() == 1 {
		if exists && stored.State == valueobject.StateInProgress.String() {
			return port.ErrVersionConflict
		}
		delete(r.exposures, id)
	} else if !exists || stored.Version != a.Version()-1 {
		return port.ErrVersionConflict
	}
	// Same primary key as calculated_exposures.
	seen := make(map[string]bool, len(r.exposures[id]))
	for _, e := range r.exposures[id] {
		seen[e.Exposure().ID().String()] = true
	}
	for _, e := range exposures {
		key := e.Exposure().ID().String()
		if seen[key] {
			return fmt.Errorf("duplicate exposure %s in batch %s", key, id)
		}
		seen[key] = true
	}

	r.analyses[id] = a.Snapshot()
	r.exposures[id] = append(r.exposures[id], exposures...)
	r.events = append(r.events, a.DomainEvents()...)
	r.saves++
	return nil
}

func (r *inMemoryRepo) FindByBatchID(_ context.Context, batchID valueobject.BatchID) (model.PortfolioAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.analyses[batchID.String()]
	if !ok {
		return model.PortfolioAnalysis{}, port.ErrAnalysisNotFound
	}
	return model.Reconstruct(s)
}

func (r *inMemoryRepo) FindStale(_ context.Context, before time.Time, limit int) ([]model.PortfolioAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.PortfolioAnalysis
	for _, s := range r.analyses {
		if s.State != valueobject.StateInProgress.String() || !s.LastUpdatedAt.Before(before) {
			continue
		}
		a, err := model.Reconstruct(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *inMemoryRepo) ListExposures(_ context.Context, batchID valueobject.BatchID) ([]model.ClassifiedExposure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ClassifiedExposure(nil), r.exposures[batchID.String()]...), nil
}

func (r *inMemoryRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

func (r *inMemoryRepo) resetEvents() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.saves = 0
}

// --- Collaborators ---

type mockResultStore struct {
	mu      sync.Mutex
	stored  []port.AnalysisResult
	storeFn func(result port.AnalysisResult) (string, error)
}

func (m *mockResultStore) Store(_ context.Context, result port.AnalysisResult) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeFn != nil {
		return m.storeFn(result)
	}
	m.stored = append(m.stored, result)
	return fmt.Sprintf("memory://calculated/calc_%s.json", result.Analysis.BatchID()), nil
}

type mockRates struct {
	rates map[string]decimal.Decimal
}

func (m mockRates) Rate(_ context.Context, from, to money.Currency) (valueobject.ExchangeRate, error) {
	r, ok := m.rates[from.Code()]
	if !ok {
		return valueobject.ExchangeRate{}, fmt.Errorf("no quote for %s", from)
	}
	return valueobject.NewExchangeRate(from, to, r)
}

type mockExposureSource struct {
	batch   port.BatchData
	loadErr error
	loaded  []string
}

func (m *mockExposureSource) Load(_ context.Context, uri string) (port.BatchData, error) {
	m.loaded = append(m.loaded, uri)
	if m.loadErr != nil {
		return port.BatchData{}, m.loadErr
	}
	return m.batch, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newPipeline(t *testing.T) *service.ExposurePipeline {
	t.Helper()
	geo, err := service.NewGeographicClassifier(valueobject.MustCountryCode("IT"), nil)
	require.NoError(t, err)
	sectors, err := service.NewSectorClassifier(service.DefaultSectorRules())
	require.NoError(t, err)
	params, err := valueobject.NewLargeExposuresParameters(
		testutil.Dec("25"), testutil.Dec("10"), testutil.Dec("2500000000"), "")
	require.NoError(t, err)
	rates := mockRates{rates: map[string]decimal.Decimal{"USD": testutil.Dec("0.5")}}
	return service.NewExposurePipeline(rates, geo, sectors, service.NewLargeExposureLimitChecker(params))
}

// --- Fixtures ---

type row struct {
	ref, counterparty, amount, currency, country, product string
}

func batchOf(t *testing.T, id string, rows ...row) port.BatchData {
	t.Helper()
	batchID, err := valueobject.NewBatchID(id)
	require.NoError(t, err)

	data := port.BatchData{BatchID: batchID, BankID: testutil.TestBankID, BankName: "Banca Test"}
	for _, r := range rows {
		expID, err := valueobject.ExposureIDFromSource(batchID, r.ref)
		require.NoError(t, err)
		instrument, err := valueobject.NewInstrumentID("INS-" + r.ref)
		require.NoError(t, err)
		cp, err := valueobject.NewCounterpartyRef(r.counterparty, r.counterparty+" SpA", "")
		require.NoError(t, err)
		amt, err := money.ParseMonetaryAmount(r.amount, r.currency)
		require.NoError(t, err)
		cls, err := model.NewExposureClassification(r.product, valueobject.InstrumentTypeLoan,
			valueobject.BalanceSheetOn, valueobject.MustCountryCode(r.country))
		require.NoError(t, err)
		e, err := model.NewExposureRecording(expID, r.ref, instrument, cp, amt, cls)
		require.NoError(t, err)
		data.Exposures = append(data.Exposures, e)
	}
	return data
}

// scenarioBatch is 600 EUR Italy/Corporate, 300 EUR Germany/Corporate and
// 200 USD (100 EUR) USA/Retail.
func scenarioBatch(t *testing.T) port.BatchData {
	return batchOf(t, testutil.TestBatchID,
		row{"EXP001", "CP-IT", "600", "EUR", "IT", "CORPORATE_LOAN"},
		row{"EXP002", "CP-DE", "300", "EUR", "DE", "CORPORATE_LOAN"},
		row{"EXP003", "CP-US", "200", "USD", "US", "RETAIL_MORTGAGE"},
	)
}

// fiveExposureBatch splits unevenly into chunks of two.
func fiveExposureBatch(t *testing.T) port.BatchData {
	return batchOf(t, testutil.TestBatchID2,
		row{"EXP001", "CP-1", "100", "EUR", "IT", "CORPORATE_LOAN"},
		row{"EXP002", "CP-2", "200", "EUR", "FR", "SOVEREIGN_BOND"},
		row{"EXP003", "CP-3", "300", "USD", "US", "INTERBANK"},
		row{"EXP004", "CP-4", "400", "EUR", "IT", "MORTGAGE"},
		row{"EXP005", "CP-5", "500", "EUR", "CH", "SME"},
	)
}
