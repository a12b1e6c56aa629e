package balancer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/presplit/balancer"
	"github.com/arloliu/presplit/catalog"
	"github.com/arloliu/presplit/internal/logging"
	"github.com/arloliu/presplit/types"
)

var sk = types.ShardKey{Namespace: "app.events", Field: "_id"}

func k(v uint64) types.Key { return types.KeyFromUint64(v) }

// faultyCatalog injects administrative failures into a Memory catalog.
type faultyCatalog struct {
	*catalog.Memory
	splitErr error
	moveErr  error
}

func (f *faultyCatalog) Split(ctx context.Context, key types.ShardKey, at types.Key) error {
	if f.splitErr != nil {
		return f.splitErr
	}

	return f.Memory.Split(ctx, key, at)
}

func (f *faultyCatalog) MoveChunk(ctx context.Context, key types.ShardKey, at types.Key, shard string) (int64, error) {
	if f.moveErr != nil {
		return 0, f.moveErr
	}

	return f.Memory.MoveChunk(ctx, key, at, shard)
}

func newBalancer(t *testing.T, cat types.ChunkCatalog, opts ...balancer.Option) *balancer.Balancer {
	t.Helper()

	b, err := balancer.New(cat, sk, opts...)
	require.NoError(t, err)

	return b
}

func newSharded(opts ...catalog.MemoryOption) *catalog.Memory {
	m := catalog.NewMemory(opts...)
	m.Shard(sk, "shard-0")

	return m
}

func TestNew_Validation(t *testing.T) {
	_, err := balancer.New(nil, sk)
	require.ErrorIs(t, err, types.ErrCatalogRequired)

	_, err = balancer.New(catalog.NewMemory(), types.ShardKey{Namespace: "app.events"})
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	b, err := balancer.New(catalog.NewMemory(), sk, balancer.WithLogger(nil), balancer.WithMetrics(nil))
	require.NoError(t, err)
	require.Equal(t, sk, b.ShardKey())
}

func TestChunkForKey(t *testing.T) {
	ctx := context.Background()
	cat := newSharded()
	b := newBalancer(t, cat)

	for _, at := range []uint64{10, 20} {
		_, _, err := b.SplitChunk(ctx, k(at))
		require.NoError(t, err)
	}

	for _, v := range []uint64{0, 9, 10, 19, 20, 1 << 40} {
		c, found, err := b.ChunkForKey(ctx, k(v))
		require.NoError(t, err)
		require.True(t, found)
		require.True(t, c.Min.Compare(k(v)) <= 0 && k(v).Less(c.Max), "key %d in %s", v, c)
	}

	c, _, err := b.ChunkForKey(ctx, k(10))
	require.NoError(t, err)
	require.Equal(t, k(10), c.Min, "lower bound is inclusive")
	require.Equal(t, k(20), c.Max)

	_, found, err := b.ChunkForKey(ctx, types.MaxKey)
	require.NoError(t, err)
	require.False(t, found, "keyspace extreme is reported as not found")
}

func TestSplitChunk(t *testing.T) {
	ctx := context.Background()

	t.Run("splits and returns both halves", func(t *testing.T) {
		cat := newSharded()
		b := newBalancer(t, cat)

		left, right, err := b.SplitChunk(ctx, k(500))
		require.NoError(t, err)
		require.Equal(t, types.MinKey, left.Min)
		require.Equal(t, k(500), left.Max)
		require.Equal(t, k(500), right.Min)
		require.Equal(t, types.MaxKey, right.Max)
	})

	t.Run("idempotent at an existing boundary", func(t *testing.T) {
		cat := newSharded()
		b := newBalancer(t, cat)

		left1, right1, err := b.SplitChunk(ctx, k(500))
		require.NoError(t, err)
		left2, right2, err := b.SplitChunk(ctx, k(500))
		require.NoError(t, err)

		require.Equal(t, left1, left2)
		require.Equal(t, right1, right2)

		splits, _ := cat.Mutations()
		require.Equal(t, 1, splits)
		require.Len(t, cat.Chunks(sk), 2)
	})

	t.Run("no left chunk at the keyspace minimum", func(t *testing.T) {
		b := newBalancer(t, newSharded())

		_, _, err := b.SplitChunk(ctx, types.MinKey)
		require.ErrorIs(t, err, types.ErrChunkNotFound)
	})

	t.Run("uncovered key", func(t *testing.T) {
		b := newBalancer(t, catalog.NewMemory())

		_, _, err := b.SplitChunk(ctx, k(1))
		require.ErrorIs(t, err, types.ErrChunkNotFound)
	})

	t.Run("administrative failure", func(t *testing.T) {
		boom := errors.New("lock busy")
		b := newBalancer(t, &faultyCatalog{Memory: newSharded(), splitErr: boom})

		_, _, err := b.SplitChunk(ctx, k(1))
		require.ErrorIs(t, err, types.ErrAdministrativeFailure)
		require.ErrorIs(t, err, boom)
	})
}

func TestMoveChunk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns document count", func(t *testing.T) {
		cat := newSharded(catalog.WithDocumentCounter(catalog.CountKeys([]types.Key{k(1), k(2)})))
		b := newBalancer(t, cat)

		count, err := b.MoveChunk(ctx, k(1), "shard-a")
		require.NoError(t, err)
		require.Equal(t, int64(2), count)
		require.Equal(t, "shard-a", cat.Chunks(sk)[0].Shard)
	})

	t.Run("already on destination is a logged no-op", func(t *testing.T) {
		logger := logging.NewTest(t)
		b := newBalancer(t, newSharded(), balancer.WithLogger(logger))

		count, err := b.MoveChunk(ctx, k(1), "shard-0")
		require.NoError(t, err)
		require.Equal(t, int64(0), count)
		require.Len(t, logger.Entries("WARN"), 1)
	})

	t.Run("other failures are fatal", func(t *testing.T) {
		boom := errors.New("migration aborted")
		b := newBalancer(t, &faultyCatalog{Memory: newSharded(), moveErr: boom})

		_, err := b.MoveChunk(ctx, k(1), "shard-a")
		require.ErrorIs(t, err, types.ErrAdministrativeFailure)
		require.ErrorIs(t, err, boom)
	})
}

func TestDivideChunk(t *testing.T) {
	ctx := context.Background()

	t.Run("single division returns the chunk unchanged", func(t *testing.T) {
		cat := newSharded()
		b := newBalancer(t, cat)

		pieces, err := b.DivideChunk(ctx, k(7), 1)
		require.NoError(t, err)
		require.Equal(t, cat.Chunks(sk), pieces)
	})

	t.Run("equal contiguous pieces", func(t *testing.T) {
		cat := newSharded()
		require.NoError(t, cat.Load(sk, []types.Chunk{
			{Min: types.MinKey, Max: k(100), Shard: "shard-0"},
			{Min: k(100), Max: k(200), Shard: "shard-0"},
			{Min: k(200), Max: types.MaxKey, Shard: "shard-0"},
		}))
		b := newBalancer(t, cat)

		pieces, err := b.DivideChunk(ctx, k(150), 4)
		require.NoError(t, err)
		require.Len(t, pieces, 4)
		require.Equal(t, k(100), pieces[0].Min)
		require.Equal(t, k(200), pieces[3].Max)
		for i := 1; i < len(pieces); i++ {
			require.Equal(t, pieces[i-1].Max, pieces[i].Min)
		}
		for _, p := range pieces {
			require.Equal(t, int64(25), p.Max.Sub(p.Min).Int64())
		}
	})

	t.Run("truncation skew goes to later pieces", func(t *testing.T) {
		cat := newSharded()
		require.NoError(t, cat.Load(sk, []types.Chunk{
			{Min: types.MinKey, Max: k(10), Shard: "shard-0"},
			{Min: k(10), Max: types.MaxKey, Shard: "shard-0"},
		}))
		b := newBalancer(t, cat)

		pieces, err := b.DivideChunk(ctx, k(0), 3)
		require.NoError(t, err)
		widths := make([]int64, 0, len(pieces))
		for _, p := range pieces {
			widths = append(widths, p.Max.Sub(p.Min).Int64())
		}
		require.Equal(t, []int64{3, 3, 4}, widths)
	})

	t.Run("rejects fewer than one division", func(t *testing.T) {
		b := newBalancer(t, newSharded())

		_, err := b.DivideChunk(ctx, k(1), 0)
		require.ErrorIs(t, err, types.ErrInvalidDivisions)
	})

	t.Run("chunk too narrow", func(t *testing.T) {
		cat := newSharded()
		require.NoError(t, cat.Load(sk, []types.Chunk{
			{Min: types.MinKey, Max: k(2), Shard: "shard-0"},
			{Min: k(2), Max: types.MaxKey, Shard: "shard-0"},
		}))
		b := newBalancer(t, cat)

		_, err := b.DivideChunk(ctx, k(0), 3)
		require.ErrorIs(t, err, types.ErrChunkTooNarrow)
	})

	t.Run("uncovered key yields nothing", func(t *testing.T) {
		b := newBalancer(t, newSharded())

		pieces, err := b.DivideChunk(ctx, types.MaxKey, 3)
		require.NoError(t, err)
		require.Empty(t, pieces)
	})
}

func collect(t *testing.T, b *balancer.Balancer, start, end types.Key) []types.Chunk {
	t.Helper()

	var out []types.Chunk
	for c, err := range b.ChunksForRange(context.Background(), start, end) {
		require.NoError(t, err)
		out = append(out, c)
	}

	return out
}

func TestChunksForRange(t *testing.T) {
	ctx := context.Background()
	cat := newSharded()
	b := newBalancer(t, cat)
	for _, at := range []uint64{10, 20, 30, 40} {
		_, _, err := b.SplitChunk(ctx, k(at))
		require.NoError(t, err)
	}

	t.Run("ascending and inclusive of both ends", func(t *testing.T) {
		chunks := collect(t, b, k(15), k(35))
		require.Len(t, chunks, 3)
		require.True(t, chunks[0].Contains(k(15)))
		require.True(t, chunks[2].Contains(k(35)))
		for i := 1; i < len(chunks); i++ {
			require.True(t, chunks[i-1].Min.Less(chunks[i].Min))
		}
	})

	t.Run("end on a boundary includes the chunk starting there", func(t *testing.T) {
		chunks := collect(t, b, k(10), k(30))
		require.Len(t, chunks, 3)
		require.Equal(t, k(30), chunks[2].Min)
	})

	t.Run("shared chunk yields one element", func(t *testing.T) {
		chunks := collect(t, b, k(11), k(19))
		require.Len(t, chunks, 1)
		require.Equal(t, k(10), chunks[0].Min)
	})

	t.Run("uncovered end yields nothing", func(t *testing.T) {
		require.Empty(t, collect(t, b, k(5), types.MaxKey))
	})

	t.Run("reversed range yields nothing", func(t *testing.T) {
		require.Empty(t, collect(t, b, k(35), k(15)))
	})
}

func TestBalanceRange_SingleChunkScenario(t *testing.T) {
	ctx := context.Background()

	docs := make([]types.Key, 0, 100)
	for v := range uint64(100) {
		docs = append(docs, k(v))
	}
	cat := newSharded(catalog.WithDocumentCounter(catalog.CountKeys(docs)))
	b := newBalancer(t, cat)

	total, err := b.BalanceRange(ctx, k(0), k(100), []string{"A", "B", "C"})
	require.NoError(t, err)
	require.Equal(t, int64(100), total)

	chunks := cat.Chunks(sk)
	require.Len(t, chunks, 4)

	inRange := chunks[:3]
	require.Equal(t, k(0), inRange[0].Min)
	require.Equal(t, k(100), inRange[2].Max)
	require.Equal(t, []string{"A", "B", "C"}, []string{inRange[0].Shard, inRange[1].Shard, inRange[2].Shard})
	require.Equal(t, k(33), inRange[0].Max)
	require.Equal(t, k(66), inRange[1].Max)

	require.Equal(t, k(100), chunks[3].Min)
	require.Equal(t, "shard-0", chunks[3].Shard, "chunk outside the range keeps its owner")
}

func TestBalanceRange_TrimsBothEnds(t *testing.T) {
	ctx := context.Background()
	cat := newSharded()
	require.NoError(t, cat.Load(sk, []types.Chunk{
		{Min: types.MinKey, Max: k(1000), Shard: "shard-0"},
		{Min: k(1000), Max: k(2000), Shard: "shard-0"},
		{Min: k(2000), Max: types.MaxKey, Shard: "shard-0"},
	}))
	b := newBalancer(t, cat)
	shards := []string{"A", "B"}

	_, err := b.BalanceRange(ctx, k(500), k(2500), shards)
	require.NoError(t, err)

	chunks := cat.Chunks(sk)
	require.Equal(t, types.MinKey, chunks[0].Min)
	require.Equal(t, k(500), chunks[0].Max)
	require.Equal(t, "shard-0", chunks[0].Shard)

	last := chunks[len(chunks)-1]
	require.Equal(t, k(2500), last.Min)
	require.Equal(t, "shard-0", last.Shard)

	inside := chunks[1 : len(chunks)-1]
	require.GreaterOrEqual(t, len(inside), len(shards))
	require.Len(t, inside, 6)
	require.Equal(t, k(500), inside[0].Min)
	require.Equal(t, k(2500), inside[len(inside)-1].Max)
	for i, c := range inside {
		require.Contains(t, shards, c.Shard)
		require.Equal(t, shards[i%len(shards)], c.Shard, "piece i of every chunk goes to shard i")
		if i > 0 {
			require.Equal(t, inside[i-1].Max, c.Min)
		}
	}
}

func TestBalanceRange_RepeatedRunIsSafe(t *testing.T) {
	ctx := context.Background()
	cat := newSharded()
	b := newBalancer(t, cat)

	_, err := b.BalanceRange(ctx, k(0), k(90), []string{"A", "B", "C"})
	require.NoError(t, err)
	before := cat.Chunks(sk)

	total, err := b.BalanceRange(ctx, k(0), k(90), []string{"A", "B", "C"})
	require.NoError(t, err)
	require.Equal(t, int64(0), total)

	after := cat.Chunks(sk)
	require.GreaterOrEqual(t, len(after), len(before))
	for _, c := range after {
		if c.Max.Compare(k(90)) <= 0 {
			require.Contains(t, []string{"A", "B", "C"}, c.Shard)
		}
	}
}

func TestBalanceRange_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no shards", func(t *testing.T) {
		b := newBalancer(t, newSharded())
		_, err := b.BalanceRange(ctx, k(0), k(10), nil)
		require.ErrorIs(t, err, types.ErrNoShards)
	})

	t.Run("reversed range", func(t *testing.T) {
		b := newBalancer(t, newSharded())
		_, err := b.BalanceRange(ctx, k(10), k(0), []string{"A"})
		require.ErrorIs(t, err, types.ErrInvalidRange)
	})

	t.Run("no chunks is not an error", func(t *testing.T) {
		cat := newSharded()
		b := newBalancer(t, cat)

		total, err := b.BalanceRange(ctx, k(0), types.MaxKey, []string{"A"})
		require.NoError(t, err)
		require.Equal(t, int64(0), total)

		splits, moves := cat.Mutations()
		require.Zero(t, splits)
		require.Zero(t, moves)
	})

	t.Run("move failure aborts", func(t *testing.T) {
		boom := errors.New("migration aborted")
		b := newBalancer(t, &faultyCatalog{Memory: newSharded(), moveErr: boom})

		_, err := b.BalanceRange(ctx, k(0), k(10), []string{"A"})
		require.ErrorIs(t, err, types.ErrAdministrativeFailure)
	})
}
