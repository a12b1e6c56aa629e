// Package balancer divides key ranges of a sharded namespace into chunks and
// distributes them across shards.
//
// A Balancer is stateless: every operation is a sequence of lookups and
// administrative commands against a types.ChunkCatalog for one fixed
// namespace and shard key field. Split and move requests are safe to repeat;
// a split at an existing chunk boundary is skipped and a move to the shard
// that already owns the chunk is reported as a warning with zero documents.
//
// The primary operation is BalanceRange:
//
//	b, err := balancer.New(cat, types.ShardKey{Namespace: "app.events", Field: "_id"})
//	if err != nil { /* handle */ }
//	moved, err := b.BalanceRange(ctx, start, end, []string{"shard-a", "shard-b", "shard-c"})
//
// Every chunk overlapping [start, end] is trimmed to the range, cut into
// len(shards) pieces of equal key width and piece i is moved to shards[i].
package balancer
