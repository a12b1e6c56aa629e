package marker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/presplit/types"
)

// testStore runs the behavior every MarkerStore must share.
func testStore(t *testing.T, store types.MarkerStore) {
	t.Helper()
	ctx := context.Background()
	id := types.MarkerID("app.events", types.KeyFromUint64(42))

	t.Run("unmarked by default", func(t *testing.T) {
		marked, err := store.IsMarked(ctx, id)
		require.NoError(t, err)
		require.False(t, marked)
	})

	t.Run("mark then check", func(t *testing.T) {
		require.NoError(t, store.Mark(ctx, id, 17))

		marked, err := store.IsMarked(ctx, id)
		require.NoError(t, err)
		require.True(t, marked)
	})

	t.Run("second mark is not an error", func(t *testing.T) {
		require.NoError(t, store.Mark(ctx, id, 99))

		marked, err := store.IsMarked(ctx, id)
		require.NoError(t, err)
		require.True(t, marked)
	})

	t.Run("ids are independent", func(t *testing.T) {
		other := types.MarkerID("app.other", types.KeyFromUint64(42))
		marked, err := store.IsMarked(ctx, other)
		require.NoError(t, err)
		require.False(t, marked)
	})
}
