package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	defaultReadAttempts = 3
	readRetryBackoff    = 50 * time.Millisecond
)

// ReadWithRetry runs an idempotent read, retrying transient connection errors.
// Writes must not go through here.
func ReadWithRetry[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= defaultReadAttempts; attempt++ {
		result, err = fn(ctx)
		if err == nil || !IsTransientErr(err) || attempt == defaultReadAttempts {
			return result, err
		}

		timer := time.NewTimer(time.Duration(attempt) * readRetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return result, err
}

// IsTransientErr reports connection-level failures that are safe to retry.
func IsTransientErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	return false
}
