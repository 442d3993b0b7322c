package valueobject

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ChunkMetadata records one processed chunk. It is append-only audit data.
type ChunkMetadata struct {
	index          int
	size           int
	processedAt    time.Time
	processingTime time.Duration
}

// NewChunkMetadata validates index >= 0, size > 0 and a non-negative duration.
func NewChunkMetadata(index, size int, processedAt time.Time, processingTime time.Duration) (ChunkMetadata, error) {
	if index < 0 {
		return ChunkMetadata{}, fmt.Errorf("chunk index must be >= 0, got %d", index)
	}
	if size <= 0 {
		return ChunkMetadata{}, fmt.Errorf("chunk size must be > 0, got %d", size)
	}
	if processingTime < 0 {
		return ChunkMetadata{}, fmt.Errorf("chunk processing time must be >= 0, got %s", processingTime)
	}
	return ChunkMetadata{
		index:          index,
		size:           size,
		processedAt:    processedAt.UTC(),
		processingTime: processingTime,
	}, nil
}

func (c ChunkMetadata) Index() int                    { return c.index }
func (c ChunkMetadata) Size() int                     { return c.size }
func (c ChunkMetadata) ProcessedAt() time.Time        { return c.processedAt }
func (c ChunkMetadata) ProcessingTime() time.Duration { return c.processingTime }

// ExposuresPerSecond is the chunk's throughput. A zero duration yields zero.
func (c ChunkMetadata) ExposuresPerSecond() float64 {
	secs := c.processingTime.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(c.size) / secs
}

// ProcessingProgress counts processed exposures against the batch total.
// Each update returns a new value.
type ProcessingProgress struct {
	total        int
	processed    int
	startedAt    time.Time
	lastUpdateAt time.Time
}

// InitialProgress starts a progress counter at zero.
func InitialProgress(total int, now time.Time) (ProcessingProgress, error) {
	if total < 0 {
		return ProcessingProgress{}, fmt.Errorf("total exposures must be >= 0, got %d", total)
	}
	now = now.UTC()
	return ProcessingProgress{total: total, startedAt: now, lastUpdateAt: now}, nil
}

// RestoreProgress rebuilds a counter from persisted values.
func RestoreProgress(total, processed int, startedAt, lastUpdateAt time.Time) (ProcessingProgress, error) {
	if total < 0 || processed < 0 || processed > total {
		return ProcessingProgress{}, fmt.Errorf("inconsistent progress: processed %d of %d", processed, total)
	}
	if lastUpdateAt.Before(startedAt) {
		return ProcessingProgress{}, fmt.Errorf("progress last update %s precedes start %s", lastUpdateAt, startedAt)
	}
	return ProcessingProgress{
		total:        total,
		processed:    processed,
		startedAt:    startedAt.UTC(),
		lastUpdateAt: lastUpdateAt.UTC(),
	}, nil
}

// Advance returns a counter moved forward by n exposures.
func (p ProcessingProgress) Advance(n int, now time.Time) (ProcessingProgress, error) {
	if n <= 0 {
		return p, fmt.Errorf("progress must advance by a positive count, got %d", n)
	}
	if p.processed+n > p.total {
		return p, fmt.Errorf("progress overrun: %d + %d exceeds total %d", p.processed, n, p.total)
	}
	now = now.UTC()
	if now.Before(p.lastUpdateAt) {
		now = p.lastUpdateAt
	}
	return ProcessingProgress{
		total:        p.total,
		processed:    p.processed + n,
		startedAt:    p.startedAt,
		lastUpdateAt: now,
	}, nil
}

func (p ProcessingProgress) Total() int              { return p.total }
func (p ProcessingProgress) Processed() int          { return p.processed }
func (p ProcessingProgress) Remaining() int          { return p.total - p.processed }
func (p ProcessingProgress) StartedAt() time.Time    { return p.startedAt }
func (p ProcessingProgress) LastUpdateAt() time.Time { return p.lastUpdateAt }
func (p ProcessingProgress) IsComplete() bool        { return p.processed == p.total }

// Percent is processed/total in 0-100 with two decimals. An empty batch is 100%.
func (p ProcessingProgress) Percent() decimal.Decimal {
	if p.total == 0 {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(int64(p.processed)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(p.total)), 2)
}
