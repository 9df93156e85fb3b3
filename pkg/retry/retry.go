// Package retry wraps storage operations with bounded exponential backoff
// for transient contention errors (deadlock, lock-wait timeout,
// serialization failure). Anything else propagates on first occurrence.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Config controls the backoff schedule.
type Config struct {
	MaxRetries    int           // retries after the first attempt
	InitialDelay  time.Duration // delay before the first retry
	MaxDelay      time.Duration // cap on the computed delay
	BackoffFactor float64       // multiplier per retry
	Jitter        bool          // scale delay by a random factor in [1.0, 1.25)
}

// DefaultConfig matches the storage layer's lock timeout behaviour: three
// retries starting at 50ms, doubling, capped at 2s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Operation is a retryable unit of work.
type Operation func(ctx context.Context) error

// Do runs op, retrying on retryable errors per cfg. The last retryable
// error is returned once retries are exhausted; non-retryable errors and
// context cancellation return immediately.
func Do(ctx context.Context, cfg Config, logger *zap.Logger, name string, op Operation) error {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig().InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = DefaultConfig().BackoffFactor
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := cfg.delayFor(attempt)
			logger.Warn("retrying after transient storage error",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// Wrap returns op wrapped with the retry policy, for callers that want a
// reusable retrying operation value instead of a one-shot call.
func Wrap(cfg Config, logger *zap.Logger, name string, op Operation) Operation {
	return func(ctx context.Context) error {
		return Do(ctx, cfg, logger, name, op)
	}
}

func (c Config) delayFor(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter {
		d *= 1.0 + rand.Float64()*0.25
	}
	return time.Duration(d)
}

// Postgres error codes that signal transient contention.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// messageSignals covers engines we only see through their driver error
// strings (mysql deadlock/lock-wait families, embedded sqlite).
var messageSignals = []string{
	"deadlock detected",
	"deadlock found",
	"lock wait timeout",
	"could not serialize access",
	"database is locked",
}

// IsRetryable classifies err as transient storage contention.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, signal := range messageSignals {
		if strings.Contains(msg, signal) {
			return true
		}
	}
	return false
}
