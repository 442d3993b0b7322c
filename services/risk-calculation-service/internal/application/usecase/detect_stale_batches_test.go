package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/usecase"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/event"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

func seedInProgress(t *testing.T, repo *inMemoryRepo, id string, startedAt time.Time) {
	t.Helper()
	batchID, err := valueobject.NewBatchID(id)
	require.NoError(t, err)
	a, err := model.NewPortfolioAnalysis(batchID, valueobject.DefaultConcentrationThresholds())
	require.NoError(t, err)
	a, err = a.StartProcessing(10, startedAt)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), a))
}

func TestDetectStaleBatchesUseCase_Execute(t *testing.T) {
	t.Run("reports stale analyses only", func(t *testing.T) {
		repo := newInMemoryRepo()
		seedInProgress(t, repo, "batch_stale", time.Now().Add(-2*time.Hour))
		seedInProgress(t, repo, "batch_fresh", time.Now())
		repo.resetEvents()

		uc := usecase.NewDetectStaleBatchesUseCase(repo, nil, testLogger())
		resp, err := uc.Execute(context.Background(), dto.DetectStaleBatchesRequest{Window: 30 * time.Minute})
		require.NoError(t, err)

		require.Len(t, resp.Stale, 1)
		assert.Equal(t, "batch_stale", resp.Stale[0].BatchID)
		assert.Equal(t, 10, resp.Stale[0].TotalExposures)
		assert.False(t, resp.Stale[0].Failed)
		assert.Zero(t, resp.Failed)
		assert.Empty(t, repo.eventTypes())
	})

	t.Run("auto-fail moves stale analyses to failed", func(t *testing.T) {
		repo := newInMemoryRepo()
		seedInProgress(t, repo, "batch_stale", time.Now().Add(-2*time.Hour))
		repo.resetEvents()

		uc := usecase.NewDetectStaleBatchesUseCase(repo, nil, testLogger())
		resp, err := uc.Execute(context.Background(), dto.DetectStaleBatchesRequest{Window: 30 * time.Minute, AutoFail: true})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Failed)
		require.Len(t, resp.Stale, 1)
		assert.True(t, resp.Stale[0].Failed)

		batchID, _ := valueobject.NewBatchID("batch_stale")
		stored, err := repo.FindByBatchID(context.Background(), batchID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.StateFailed, stored.State())
		reason, ok := stored.FailureReason()
		require.True(t, ok)
		assert.Contains(t, reason, "stale: no progress since")
		assert.Equal(t, []string{event.TypeAnalysisFailed}, repo.eventTypes())
	})

	t.Run("rejects a non-positive window", func(t *testing.T) {
		uc := usecase.NewDetectStaleBatchesUseCase(newInMemoryRepo(), nil, testLogger())
		_, err := uc.Execute(context.Background(), dto.DetectStaleBatchesRequest{})
		require.Error(t, err)
	})
}
