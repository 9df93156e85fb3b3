package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      4 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestDoReturnsNonRetryableImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), fastConfig(3), zap.NewNop(), "test op", func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "non-retryable errors must not be retried")
}

func TestDoRetriesTransientErrorThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), zap.NewNop(), "test op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("deadlock detected")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsRetriesAndReturnsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(2), zap.NewNop(), "test op", func(ctx context.Context) error {
		calls++
		return fmt.Errorf("attempt %d: lock wait timeout exceeded", calls)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "one initial attempt plus two retries")
	assert.Contains(t, err.Error(), "attempt 3", "the last error wins")
}

func TestDoStopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastConfig(5), zap.NewNop(), "test op", func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("deadlock detected")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDelayGrowsAndCapsAtMaxDelay(t *testing.T) {
	cfg := Config{
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      50 * time.Millisecond,
		BackoffFactor: 2.0,
	}
	assert.Equal(t, 10*time.Millisecond, cfg.delayFor(1))
	assert.Equal(t, 20*time.Millisecond, cfg.delayFor(2))
	assert.Equal(t, 40*time.Millisecond, cfg.delayFor(3))
	assert.Equal(t, 50*time.Millisecond, cfg.delayFor(4), "delay must cap at MaxDelay")
	assert.Equal(t, 50*time.Millisecond, cfg.delayFor(10))
}

func TestDelayJitterStaysWithinBounds(t *testing.T) {
	cfg := Config{
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
	for i := 0; i < 100; i++ {
		d := cfg.delayFor(1)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 13*time.Millisecond)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("connection refused"), false},
		{"pg serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"wrapped pg deadlock", fmt.Errorf("deduct: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"mysql deadlock message", errors.New("Error 1213: Deadlock found when trying to get lock"), true},
		{"mysql lock wait message", errors.New("Error 1205: Lock wait timeout exceeded"), true},
		{"sqlite busy message", errors.New("database is locked"), true},
		{"serialize access message", errors.New("pq: could not serialize access due to concurrent update"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWrapAppliesPolicy(t *testing.T) {
	calls := 0
	op := Wrap(fastConfig(2), zap.NewNop(), "wrapped op", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("deadlock detected")
		}
		return nil
	})
	require.NoError(t, op(context.Background()))
	assert.Equal(t, 2, calls)
}
