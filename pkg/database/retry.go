package database

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/trawell/rides-service/pkg/logger"
	"go.uber.org/zap"
)

// RetryConfig bounds the automatic retry of transient storage failures.
// Only lock contention and connection-level failures are retried; business
// errors surface to the caller on the first attempt.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig is tuned for short per-ride critical sections: a caller
// that loses a race on the ride row retries quickly a couple of times and
// then gives up with an error instead of hanging.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     1 * time.Second,
	}
}

// TxFunc runs inside a transaction. Returning an error rolls the whole
// transaction back.
type TxFunc func(tx pgx.Tx) error

// Pool is the subset of pgxpool.Pool needed to open transactions.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithinTransaction executes fn inside a transaction, retrying with
// exponential backoff and jitter when Postgres reports a serialization
// failure, deadlock, or connection problem. Everything else fails on the
// first attempt so the caller never sees a half-applied transition.
func WithinTransaction(ctx context.Context, pool Pool, cfg RetryConfig, fn TxFunc) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := runInTransaction(ctx, pool, fn)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		logger.WithContext(ctx).Warn("transient database failure, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		// Full jitter keeps racing callers from thundering back in lockstep.
		sleep := time.Duration(rand.Int63n(int64(backoff) + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		backoff *= 2
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return lastErr
}

func runInTransaction(ctx context.Context, pool Pool, fn TxFunc) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

// IsRetryable determines whether a storage error is transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01",                   // deadlock_detected
			"55P03",                   // lock_not_available
			"53300",                   // too_many_connections
			"08000", "08003", "08006", // connection_exception
			"57P03": // cannot_connect_now
			return true
		}
		// Constraint violations, data exceptions and syntax errors are
		// deterministic; retrying would only repeat them.
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"unexpected eof",
		"server closed",
		"timeout",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}
