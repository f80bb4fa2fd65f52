package db

import (
	"context"
	"fmt"
	"time"
)

const (
	readyFirstDelay = 50 * time.Millisecond
	readyMaxDelay   = 2 * time.Second
)

// WaitReady calls ping until it succeeds or timeout expires, doubling the pause between
// attempts. The first attempt runs immediately. The last ping error is reported on timeout.
func WaitReady(ctx context.Context, what string, timeout time.Duration, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := readyFirstDelay
	for {
		err := ping(ctx)
		if err == nil {
			return nil
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s not ready after %s: %w (last error: %v)", what, timeout, ctx.Err(), err)
		case <-t.C:
		}
		delay = min(delay*2, readyMaxDelay)
	}
}
