package types

import (
	"context"
	"iter"
)

// ChunkCatalog is the authoritative chunk metadata of a sharded cluster
// together with its administrative split and move commands.
//
// Implementations must be safe under concurrent administrative commands
// issued by other actors; the balancer relies on Split and MoveChunk
// degrading to no-ops instead of corrupting state.
type ChunkCatalog interface {
	// FindChunk returns the chunk with Min <= key < Max.
	//
	// Returns:
	//   - Chunk: The containing chunk
	//   - bool: false when no chunk covers the key (never an error)
	//   - error: Catalog access failure
	FindChunk(ctx context.Context, sk ShardKey, key Key) (Chunk, bool, error)

	// FindChunksBetween yields the chunks with lo < Min < hi in ascending Min order.
	//
	// The sequence is lazy and single-use; a non-nil error ends it.
	FindChunksBetween(ctx context.Context, sk ShardKey, lo, hi Key) iter.Seq2[Chunk, error]

	// Split cuts the chunk containing at into [Min, at) and [at, Max).
	Split(ctx context.Context, sk ShardKey, at Key) error

	// MoveChunk reassigns the chunk containing key to shard.
	//
	// Returns:
	//   - int64: Observed document count of the moved chunk (0 when unknown)
	//   - error: ErrChunkAlreadyOnShard when the chunk already lives on shard,
	//     any other error for administrative failures
	MoveChunk(ctx context.Context, sk ShardKey, key Key, shard string) (int64, error)
}
