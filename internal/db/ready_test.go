package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitReady_RetriesUntilPingSucceeds(t *testing.T) {
	calls := 0
	err := WaitReady(context.Background(), "cache", time.Second, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitReady_ImmediateSuccess(t *testing.T) {
	start := time.Now()
	require.NoError(t, WaitReady(context.Background(), "db", time.Second, func(context.Context) error { return nil }))
	assert.Less(t, time.Since(start), readyFirstDelay)
}

func TestWaitReady_Timeout(t *testing.T) {
	err := WaitReady(context.Background(), "database", 120*time.Millisecond, func(context.Context) error {
		return errors.New("no primary")
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "database not ready")
	assert.Contains(t, err.Error(), "no primary")
}
