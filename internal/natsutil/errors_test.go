package natsutil

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

func TestIsConnectivityError(t *testing.T) {
	require.False(t, IsConnectivityError(nil))
	require.False(t, IsConnectivityError(jetstream.ErrKeyExists))
	require.True(t, IsConnectivityError(nats.ErrTimeout))
	require.True(t, IsConnectivityError(fmt.Errorf("get marker: %w", nats.ErrNoServers)))
	require.True(t, IsConnectivityError(errors.New("dial tcp: connection refused")))
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries connectivity errors", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 3, time.Millisecond, func(context.Context) error {
			calls++
			if calls < 3 {
				return nats.ErrTimeout
			}

			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("returns other errors immediately", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := Retry(ctx, 5, time.Millisecond, func(context.Context) error {
			calls++
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.Equal(t, 1, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, 2, time.Millisecond, func(context.Context) error {
			calls++
			return nats.ErrTimeout
		})
		require.ErrorIs(t, err, nats.ErrTimeout)
		require.Equal(t, 2, calls)
	})
}
