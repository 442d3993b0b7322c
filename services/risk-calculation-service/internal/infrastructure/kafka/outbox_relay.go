package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bcbs239/regtech/pkg/events"
)

// Relay defaults.
const (
	DefaultRelayBatchSize = 100
	DefaultRelayInterval  = time.Second
)

// OutboxRelay drains the outbox table to the message broker. Delivery is at
// least once: entries are marked only after the broker accepted them.
type OutboxRelay struct {
	outbox    events.OutboxRepository
	publisher events.Publisher
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

// NewOutboxRelay creates a new OutboxRelay.
func NewOutboxRelay(outbox events.OutboxRepository, publisher events.Publisher, batchSize int, interval time.Duration, logger *slog.Logger) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = DefaultRelayBatchSize
	}
	if interval <= 0 {
		interval = DefaultRelayInterval
	}
	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger,
	}
}

// Run relays until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay starting", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return nil
		case <-ticker.C:
			// A full batch means there is probably more waiting.
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					if ctx.Err() == nil {
						r.logger.Error("outbox relay failed", "error", err)
					}
					break
				}
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// RelayOnce publishes one batch of pending entries and returns how many were sent.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch outbox entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := r.publisher.Publish(ctx, entries...); err != nil {
		return 0, err
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if err := r.outbox.MarkPublished(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to mark %d entries published: %w", len(ids), err)
	}

	r.logger.Debug("outbox entries relayed", "count", len(entries))
	return len(entries), nil
}
