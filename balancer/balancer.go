package balancer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/big"
	"time"

	"github.com/arloliu/presplit/internal/logging"
	"github.com/arloliu/presplit/internal/metrics"
	"github.com/arloliu/presplit/types"
)

// Balancer provides range division and assignment services for one sharded namespace.
type Balancer struct {
	catalog types.ChunkCatalog
	key     types.ShardKey
	logger  types.Logger
	metrics types.MetricsCollector
}

// New creates a balancer for the namespace and field in sk.
//
// Parameters:
//   - catalog: Chunk catalog to query and command
//   - sk: Namespace and shard key field, fixed for the balancer's lifetime
//   - opts: Optional logger and metrics
//
// Returns:
//   - *Balancer: Ready to use balancer
//   - error: ErrCatalogRequired or ErrInvalidConfig
func New(catalog types.ChunkCatalog, sk types.ShardKey, opts ...Option) (*Balancer, error) {
	if catalog == nil {
		return nil, types.ErrCatalogRequired
	}
	if sk.Namespace == "" || sk.Field == "" {
		return nil, fmt.Errorf("%w: namespace and shard key field are required", types.ErrInvalidConfig)
	}

	b := &Balancer{
		catalog: catalog,
		key:     sk,
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// ShardKey returns the namespace and field the balancer operates on.
func (b *Balancer) ShardKey() types.ShardKey {
	return b.key
}

// ChunkForKey returns the chunk whose [Min, Max) contains key.
//
// A key no chunk covers (only possible at the keyspace extremes) is reported
// with found == false and a nil error.
func (b *Balancer) ChunkForKey(ctx context.Context, key types.Key) (types.Chunk, bool, error) {
	chunk, found, err := b.catalog.FindChunk(ctx, b.key, key)
	if err != nil {
		return types.Chunk{}, false, fmt.Errorf("find chunk for %s: %w", key, err)
	}

	return chunk, found, nil
}

// SplitChunk splits the chunk containing key at key.
//
// When key already is a chunk boundary no split command is issued and the
// two adjacent chunks are returned.
//
// Returns:
//   - left: Chunk with Max == key
//   - right: Chunk with Min == key
//   - error: ErrChunkNotFound when key is uncovered or has no left neighbour,
//     ErrAdministrativeFailure when the split command fails
func (b *Balancer) SplitChunk(ctx context.Context, key types.Key) (types.Chunk, types.Chunk, error) {
	var left, right types.Chunk

	chunk, found, err := b.ChunkForKey(ctx, key)
	if err != nil {
		return left, right, err
	}
	if !found {
		return left, right, fmt.Errorf("%w: split at %s", types.ErrChunkNotFound, key)
	}

	if chunk.Min == key {
		b.logger.Debug("split key is already a chunk boundary", "namespace", b.key.Namespace, "key", key)
		b.metrics.RecordSplit("boundary")
	} else {
		b.logger.Debug("splitting chunk", "chunk", chunk, "key", key)
		if err := b.catalog.Split(ctx, b.key, key); err != nil {
			b.metrics.RecordSplit("error")
			return left, right, fmt.Errorf("%w: split %s at %s: %w", types.ErrAdministrativeFailure, b.key.Namespace, key, err)
		}
		b.metrics.RecordSplit("split")
	}

	right, found, err = b.ChunkForKey(ctx, key)
	if err != nil {
		return left, right, err
	}
	if !found || right.Min != key {
		return left, right, fmt.Errorf("%w: no chunk starts at %s after split", types.ErrAdministrativeFailure, key)
	}

	if key == types.MinKey {
		return left, right, fmt.Errorf("%w: no chunk ends at the keyspace minimum", types.ErrChunkNotFound)
	}
	left, found, err = b.ChunkForKey(ctx, key.Prev())
	if err != nil {
		return left, right, err
	}
	if !found || left.Max != key {
		return left, right, fmt.Errorf("%w: no chunk ends at %s after split", types.ErrAdministrativeFailure, key)
	}

	return left, right, nil
}

// MoveChunk moves the chunk containing key to shard.
//
// A catalog report that the chunk already lives on shard is logged as a
// warning and returns 0 with a nil error. Any other failure is wrapped in
// ErrAdministrativeFailure.
//
// Returns:
//   - int64: Document count reported by the catalog
//   - error: Administrative failure
func (b *Balancer) MoveChunk(ctx context.Context, key types.Key, shard string) (int64, error) {
	count, err := b.catalog.MoveChunk(ctx, b.key, key, shard)
	if errors.Is(err, types.ErrChunkAlreadyOnShard) {
		b.logger.Warn("chunk is already on its destination shard",
			"namespace", b.key.Namespace, "key", key, "shard", shard, "error", err)
		b.metrics.RecordMove(shard, "noop")

		return 0, nil
	}
	if err != nil {
		b.metrics.RecordMove(shard, "error")
		return 0, fmt.Errorf("%w: move chunk at %s to %s: %w", types.ErrAdministrativeFailure, key, shard, err)
	}

	b.logger.Debug("chunk moved", "namespace", b.key.Namespace, "key", key, "shard", shard, "documents", count)
	b.metrics.RecordMove(shard, "moved")
	b.metrics.RecordMovedDocuments(shard, count)

	return count, nil
}

// DivideChunk cuts the chunk containing key into divisions pieces of equal key width.
//
// At each step the remaining chunk is split at min + (max-min)/remaining,
// the left piece is kept and the right piece carries on with one division
// fewer. Widths are truncated, so later pieces may be one unit wider than
// earlier ones. With divisions == 1 the chunk is returned unchanged.
//
// Returns:
//   - []types.Chunk: Exactly divisions contiguous chunks in key order, or
//     nil when no chunk contains key
//   - error: ErrInvalidDivisions, ErrChunkTooNarrow or a split failure
func (b *Balancer) DivideChunk(ctx context.Context, key types.Key, divisions int) ([]types.Chunk, error) {
	if divisions < 1 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInvalidDivisions, divisions)
	}

	remaining, found, err := b.ChunkForKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		b.logger.Debug("no chunk to divide", "namespace", b.key.Namespace, "key", key)
		return nil, nil
	}

	pieces := make([]types.Chunk, 0, divisions)
	for left := divisions; left >= 2; left-- {
		width := new(big.Int).Quo(remaining.Max.Sub(remaining.Min), big.NewInt(int64(left)))
		if width.Sign() <= 0 {
			return nil, fmt.Errorf("%w: %s into %d pieces", types.ErrChunkTooNarrow, remaining, left)
		}

		at := remaining.Min.Add(width)
		b.logger.Debug("splitting at", "key", at, "remaining_divisions", left)

		piece, rest, err := b.SplitChunk(ctx, at)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, piece)
		remaining = rest
	}

	return append(pieces, remaining), nil
}

// ChunksForRange yields every chunk intersecting [start, end] in ascending key order.
//
// The sequence is lazy and queries the catalog as it is consumed. When start
// and end share a chunk only that chunk is yielded; when either end is not
// covered by any chunk, or end sorts before start, nothing is yielded. A
// catalog failure is yielded as the final element.
func (b *Balancer) ChunksForRange(ctx context.Context, start, end types.Key) iter.Seq2[types.Chunk, error] {
	return func(yield func(types.Chunk, error) bool) {
		if end.Less(start) {
			return
		}

		first, found, err := b.ChunkForKey(ctx, start)
		if err != nil {
			yield(types.Chunk{}, err)
			return
		}
		if !found {
			return
		}

		last, found, err := b.ChunkForKey(ctx, end)
		if err != nil {
			yield(types.Chunk{}, err)
			return
		}
		if !found {
			return
		}

		if first.Min == last.Min {
			yield(first, nil)
			return
		}

		if !yield(first, nil) {
			return
		}
		for chunk, err := range b.catalog.FindChunksBetween(ctx, b.key, first.Min, last.Min) {
			if err != nil {
				yield(types.Chunk{}, fmt.Errorf("list chunks between %s and %s: %w", first.Min, last.Min, err))
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
		yield(last, nil)
	}
}

// BalanceRange divides [start, end] across shards.
//
// The algorithm:
//  1. Collect the chunks overlapping [start, end]; none is not an error
//  2. Split the first chunk at start and the last chunk at end so that every
//     remaining chunk lies within the range
//  3. Divide each chunk into len(shards) equal pieces and move piece i to shards[i]
//
// Shard i always receives the i-th sub-range of every divided chunk.
//
// Returns:
//   - int64: Sum of document counts reported by the moves
//   - error: ErrNoShards, ErrInvalidRange or the first administrative failure
func (b *Balancer) BalanceRange(ctx context.Context, start, end types.Key, shards []string) (total int64, err error) {
	if len(shards) == 0 {
		return 0, types.ErrNoShards
	}
	if end.Less(start) {
		return 0, fmt.Errorf("%w: %s > %s", types.ErrInvalidRange, start, end)
	}

	began := time.Now()
	defer func() {
		b.metrics.RecordBalanceDuration(time.Since(began).Seconds(), err == nil)
	}()

	var chunks []types.Chunk
	for chunk, err := range b.ChunksForRange(ctx, start, end) {
		if err != nil {
			return 0, err
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		b.logger.Info("no chunks found", "namespace", b.key.Namespace, "start", start, "end", end)
		return 0, nil
	}

	if first := chunks[0]; first.Min.Less(start) && first.Max != start {
		_, right, err := b.SplitChunk(ctx, start)
		if err != nil {
			return 0, err
		}
		chunks[0] = right
	}
	if last := chunks[len(chunks)-1]; end.Less(last.Max) && last.Min != end {
		left, _, err := b.SplitChunk(ctx, end)
		if err != nil {
			return 0, err
		}
		chunks[len(chunks)-1] = left
	}

	for _, chunk := range chunks {
		b.logger.Info("dividing chunk", "chunk", chunk, "divisions", len(shards))

		pieces, err := b.DivideChunk(ctx, chunk.Min, len(shards))
		if err != nil {
			return total, err
		}
		if len(pieces) != len(shards) {
			return total, fmt.Errorf("%w: chunk at %s vanished while dividing", types.ErrChunkNotFound, chunk.Min)
		}

		for i, shard := range shards {
			count, err := b.MoveChunk(ctx, pieces[i].Min, shard)
			if err != nil {
				return total, err
			}
			total += count
		}
	}

	b.logger.Info("range balanced", "namespace", b.key.Namespace, "start", start, "end", end,
		"chunks", len(chunks), "shards", len(shards), "documents", total)

	return total, nil
}
