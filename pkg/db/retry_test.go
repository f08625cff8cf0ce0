package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWithRetry(t *testing.T) {
	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		got, err := ReadWithRetry(context.Background(), func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, fmt.Errorf("query: %w", driver.ErrBadConn)
			}
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, got)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		_, err := ReadWithRetry(context.Background(), func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("syntax error")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		calls := 0
		_, err := ReadWithRetry(context.Background(), func(ctx context.Context) (int, error) {
			calls++
			return 0, driver.ErrBadConn
		})
		assert.ErrorIs(t, err, driver.ErrBadConn)
		assert.Equal(t, defaultReadAttempts, calls)
	})
}
