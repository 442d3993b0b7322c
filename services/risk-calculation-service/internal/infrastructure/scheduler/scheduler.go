package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
)

// Job is a unit of background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules. A job still running when its next
// tick arrives is skipped for that tick.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Scheduler. Each run gets its own context bounded by timeout;
// zero means no bound.
func New(timeout time.Duration, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		logger:  logger.With("component", "scheduler"),
	}
}

// AddJob registers job on a standard five-field or descriptor schedule,
// e.g. "*/5 * * * *" or "@every 5m".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { _ = s.RunNow(job) }); err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}
	s.logger.Info("job registered", "job", job.Name(), "schedule", schedule)
	return nil
}

// RunNow executes job once, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed", "job", job.Name(), "error", err, "duration", time.Since(start))
		return err
	}
	s.logger.Debug("job completed", "job", job.Name(), "duration", time.Since(start))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// StaleBatchDetector is satisfied by *usecase.DetectStaleBatchesUseCase.
type StaleBatchDetector interface {
	Execute(ctx context.Context, req dto.DetectStaleBatchesRequest) (dto.DetectStaleBatchesResponse, error)
}

// StaleBatchJob sweeps for IN_PROGRESS analyses that stopped making progress.
type StaleBatchJob struct {
	detector StaleBatchDetector
	req      dto.DetectStaleBatchesRequest
	logger   *slog.Logger
}

func NewStaleBatchJob(detector StaleBatchDetector, req dto.DetectStaleBatchesRequest, logger *slog.Logger) *StaleBatchJob {
	return &StaleBatchJob{detector: detector, req: req, logger: logger}
}

func (j *StaleBatchJob) Name() string { return "stale-batch-monitor" }

func (j *StaleBatchJob) Run(ctx context.Context) error {
	resp, err := j.detector.Execute(ctx, j.req)
	if err != nil {
		return err
	}
	if len(resp.Stale) > 0 {
		j.logger.Warn("stale batches detected",
			"count", len(resp.Stale),
			"failed", resp.Failed,
			"window", j.req.Window,
		)
	}
	return nil
}
