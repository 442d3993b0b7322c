package scheduler_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/scheduler"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type mockDetector struct {
	mu       sync.Mutex
	requests []dto.DetectStaleBatchesRequest
	deadline bool
	resp     dto.DetectStaleBatchesResponse
	err      error
	called   chan struct{}
}

func (m *mockDetector) Execute(ctx context.Context, req dto.DetectStaleBatchesRequest) (dto.DetectStaleBatchesResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	_, m.deadline = ctx.Deadline()
	m.mu.Unlock()
	if m.called != nil {
		select {
		case m.called <- struct{}{}:
		default:
		}
	}
	return m.resp, m.err
}

func TestStaleBatchJob_Run(t *testing.T) {
	req := dto.DetectStaleBatchesRequest{Window: 30 * time.Minute, AutoFail: true, Limit: 10}

	t.Run("passes configured request", func(t *testing.T) {
		det := &mockDetector{resp: dto.DetectStaleBatchesResponse{
			Stale:  []dto.StaleBatch{{BatchID: "B1"}},
			Failed: 1,
		}}
		job := scheduler.NewStaleBatchJob(det, req, testLogger())

		require.NoError(t, job.Run(context.Background()))
		assert.Equal(t, []dto.DetectStaleBatchesRequest{req}, det.requests)
		assert.Equal(t, "stale-batch-monitor", job.Name())
	})

	t.Run("propagates detector error", func(t *testing.T) {
		det := &mockDetector{err: errors.New("db down")}
		err := scheduler.NewStaleBatchJob(det, req, testLogger()).Run(context.Background())
		assert.EqualError(t, err, "db down")
	})
}

func TestScheduler_RunNow(t *testing.T) {
	det := &mockDetector{}
	s := scheduler.New(time.Minute, testLogger())
	job := scheduler.NewStaleBatchJob(det, dto.DetectStaleBatchesRequest{Window: time.Minute}, testLogger())

	require.NoError(t, s.RunNow(job))
	assert.True(t, det.deadline, "runs are bounded by the scheduler timeout")

	det.err = errors.New("boom")
	assert.Error(t, s.RunNow(job))
}

func TestScheduler_AddJob(t *testing.T) {
	s := scheduler.New(0, testLogger())
	job := scheduler.NewStaleBatchJob(&mockDetector{}, dto.DetectStaleBatchesRequest{Window: time.Minute}, testLogger())

	t.Run("rejects invalid schedule", func(t *testing.T) {
		err := s.AddJob("not a schedule", job)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stale-batch-monitor")
	})

	t.Run("fires on schedule", func(t *testing.T) {
		det := &mockDetector{called: make(chan struct{}, 1)}
		fired := scheduler.NewStaleBatchJob(det, dto.DetectStaleBatchesRequest{Window: time.Minute}, testLogger())
		require.NoError(t, s.AddJob("@every 1s", fired))

		s.Start()
		defer s.Stop()

		select {
		case <-det.called:
		case <-time.After(5 * time.Second):
			t.Fatal("job did not run within 5s")
		}
	})
}
