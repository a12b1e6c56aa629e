// Package natsutil classifies and retries NATS client errors.
package natsutil

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes NATS timeouts, connection refused, disconnections, etc.
// Such errors are worth retrying; everything else is returned as is.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error indicates connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionReconnecting) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// Retry calls fn until it succeeds, fails with a non-connectivity error,
// or attempts are exhausted. Backoff doubles from base between attempts.
//
// Parameters:
//   - ctx: Context; cancellation stops retrying
//   - attempts: Maximum number of calls (at least 1)
//   - base: Initial backoff
//   - fn: Operation to run
//
// Returns:
//   - error: nil on success, otherwise the last error from fn or ctx.Err()
func Retry(ctx context.Context, attempts int, base time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	backoff := base
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !IsConnectivityError(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return err
}
