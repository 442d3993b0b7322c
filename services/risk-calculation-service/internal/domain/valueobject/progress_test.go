package valueobject_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/pkg/testutil"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

func TestProcessingProgress(t *testing.T) {
	start := testutil.TestNow

	p, err := valueobject.InitialProgress(10, start)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Processed())
	assert.Equal(t, 10, p.Remaining())

	next, err := p.Advance(4, start.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, p.Processed(), "advance returns a new value")
	assert.Equal(t, 4, next.Processed())
	testutil.AssertDecimalEqual(t, "40", next.Percent())

	_, err = next.Advance(7, start.Add(2*time.Second))
	assert.Error(t, err, "overrun")

	_, err = next.Advance(0, start)
	assert.Error(t, err)

	clamped, err := next.Advance(1, start.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, clamped.LastUpdateAt().Before(clamped.StartedAt()))

	_, err = valueobject.InitialProgress(-1, start)
	assert.Error(t, err)
}

func TestRestoreProgress(t *testing.T) {
	_, err := valueobject.RestoreProgress(5, 6, testutil.TestNow, testutil.TestNow)
	assert.Error(t, err)
	_, err = valueobject.RestoreProgress(5, 1, testutil.TestNow, testutil.TestNow.Add(-time.Minute))
	assert.Error(t, err)

	p, err := valueobject.RestoreProgress(5, 5, testutil.TestNow, testutil.TestNow)
	require.NoError(t, err)
	assert.True(t, p.IsComplete())
}

func TestNewChunkMetadata(t *testing.T) {
	c, err := valueobject.NewChunkMetadata(0, 500, testutil.TestNow, 2*time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 250.0, c.ExposuresPerSecond(), 0.0001)

	_, err = valueobject.NewChunkMetadata(-1, 1, testutil.TestNow, 0)
	assert.Error(t, err)
	_, err = valueobject.NewChunkMetadata(0, 0, testutil.TestNow, 0)
	assert.Error(t, err)
	_, err = valueobject.NewChunkMetadata(0, 1, testutil.TestNow, -time.Second)
	assert.Error(t, err)
}

func TestExchangeRate(t *testing.T) {
	r, err := valueobject.NewExchangeRate(money.USD, money.EUR, testutil.Dec("0.8"))
	require.NoError(t, err)
	assert.Equal(t, "USD/EUR", r.Pair())

	inv := r.Inverse()
	assert.Equal(t, money.EUR, inv.From())
	testutil.AssertDecimalEqual(t, "1.25", inv.Rate())

	_, err = valueobject.NewExchangeRate(money.USD, money.EUR, testutil.Dec("0"))
	assert.Error(t, err)
	_, err = valueobject.NewExchangeRate(money.USD, money.EUR, testutil.Dec("-1.2"))
	assert.Error(t, err)
}

func TestProcessingState(t *testing.T) {
	s, err := valueobject.NewProcessingState("IN_PROGRESS")
	require.NoError(t, err)
	assert.Equal(t, valueobject.StateInProgress, s)
	assert.False(t, s.IsTerminal())
	assert.True(t, valueobject.StateFailed.IsTerminal())

	_, err = valueobject.NewProcessingState("RUNNING")
	assert.Error(t, err)
}
