package catalog

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/arloliu/presplit/types"
)

// DocumentCounter reports how many documents a chunk holds. Memory calls it
// after every move and returns the result as the move's document count.
type DocumentCounter func(chunk types.Chunk) int64

// Memory is an in-process chunk catalog.
//
// Each sharded namespace starts either as a single chunk spanning the whole
// keyspace (Shard) or from an explicit chunk table (Load). The table is a
// red-black tree of chunks keyed by Min; splits and moves mutate it in place.
// Memory is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	chunks  map[types.ShardKey]*redblacktree.Tree
	shards  map[string]struct{}
	counter DocumentCounter

	splits int
	moves  int
}

var _ types.ChunkCatalog = (*Memory)(nil)

// MemoryOption configures a Memory catalog.
type MemoryOption func(*Memory)

// WithShards restricts move destinations to the given shard names.
func WithShards(shards ...string) MemoryOption {
	return func(m *Memory) {
		m.shards = make(map[string]struct{}, len(shards))
		for _, s := range shards {
			m.shards[s] = struct{}{}
		}
	}
}

// WithDocumentCounter sets the function used to report moved document counts.
func WithDocumentCounter(counter DocumentCounter) MemoryOption {
	return func(m *Memory) {
		m.counter = counter
	}
}

// NewMemory creates an empty in-memory catalog.
//
// Example:
//
//	cat := catalog.NewMemory(catalog.WithShards("shard-a", "shard-b"))
//	cat.Shard(types.ShardKey{Namespace: "app.events", Field: "_id"}, "shard-a")
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{chunks: make(map[types.ShardKey]*redblacktree.Tree)}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Shard registers sk as a sharded namespace owned entirely by primary,
// with one chunk [MinKey, MaxKey). Any existing chunk table is replaced.
func (m *Memory) Shard(sk types.ShardKey, primary string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tree := newChunkTree()
	tree.Put(types.MinKey, types.Chunk{
		ID:        chunkID(sk, types.MinKey),
		Namespace: sk.Namespace,
		Field:     sk.Field,
		Min:       types.MinKey,
		Max:       types.MaxKey,
		Shard:     primary,
	})
	m.chunks[sk] = tree
}

// Load replaces the chunk table of sk.
//
// The chunks must be contiguous and non-empty; they are sorted by Min first.
// Namespace, Field and missing IDs are filled in.
func (m *Memory) Load(sk types.ShardKey, chunks []types.Chunk) error {
	table := slices.Clone(chunks)
	slices.SortFunc(table, func(a, b types.Chunk) int { return a.Min.Compare(b.Min) })

	tree := newChunkTree()
	for i, c := range table {
		if !c.Min.Less(c.Max) {
			return fmt.Errorf("chunk %d: min %s must sort before max %s", i, c.Min, c.Max)
		}
		if i > 0 && table[i-1].Max != c.Min {
			return fmt.Errorf("chunk %d: gap or overlap between %s and %s", i, table[i-1].Max, c.Min)
		}
		c.Namespace = sk.Namespace
		c.Field = sk.Field
		if c.ID == "" {
			c.ID = chunkID(sk, c.Min)
		}
		tree.Put(c.Min, c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[sk] = tree

	return nil
}

// Chunks returns a copy of the chunk table of sk in key order.
func (m *Memory) Chunks(sk types.ShardKey) []types.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tree, ok := m.chunks[sk]
	if !ok {
		return nil
	}

	out := make([]types.Chunk, 0, tree.Size())
	for it := tree.Iterator(); it.Next(); {
		out = append(out, it.Value().(types.Chunk))
	}

	return out
}

// Mutations returns how many splits and moves have been applied.
func (m *Memory) Mutations() (splits, moves int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.splits, m.moves
}

// FindChunk returns the chunk containing key.
func (m *Memory) FindChunk(_ context.Context, sk types.ShardKey, key types.Key) (types.Chunk, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.locate(sk, key)
	if !ok {
		return types.Chunk{}, false, nil
	}

	return node.Value.(types.Chunk), true, nil
}

// FindChunksBetween yields chunks with lo < Min < hi in ascending order.
//
// The table is snapshotted when iteration starts.
func (m *Memory) FindChunksBetween(_ context.Context, sk types.ShardKey, lo, hi types.Key) iter.Seq2[types.Chunk, error] {
	return func(yield func(types.Chunk, error) bool) {
		var window []types.Chunk

		m.mu.RLock()
		if tree, ok := m.chunks[sk]; ok {
			if node, found := tree.Ceiling(lo); found {
				for it := tree.IteratorAt(node); ; {
					c := it.Value().(types.Chunk)
					if !c.Min.Less(hi) {
						break
					}
					if lo.Less(c.Min) {
						window = append(window, c)
					}
					if !it.Next() {
						break
					}
				}
			}
		}
		m.mu.RUnlock()

		for _, c := range window {
			if !yield(c, nil) {
				return
			}
		}
	}
}

// Split cuts the chunk containing at. Splitting at an existing boundary is a no-op.
func (m *Memory) Split(_ context.Context, sk types.ShardKey, at types.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := m.locate(sk, at)
	if !ok {
		return fmt.Errorf("%w: %s has no chunk containing %s", types.ErrChunkNotFound, sk.Namespace, at)
	}
	left := node.Value.(types.Chunk)
	if left.Min == at {
		return nil
	}

	right := left
	right.ID = chunkID(sk, at)
	right.Min = at
	left.Max = at

	node.Value = left
	m.chunks[sk].Put(at, right)
	m.splits++

	return nil
}

// MoveChunk assigns the chunk containing key to shard.
func (m *Memory) MoveChunk(_ context.Context, sk types.ShardKey, key types.Key, shard string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shards != nil {
		if _, known := m.shards[shard]; !known {
			return 0, fmt.Errorf("unknown shard %q", shard)
		}
	}

	node, ok := m.locate(sk, key)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no chunk containing %s", types.ErrChunkNotFound, sk.Namespace, key)
	}
	chunk := node.Value.(types.Chunk)
	if chunk.Shard == shard {
		return 0, fmt.Errorf("%w: %s", types.ErrChunkAlreadyOnShard, shard)
	}

	chunk.Shard = shard
	node.Value = chunk
	m.moves++

	if m.counter == nil {
		return 0, nil
	}

	return m.counter(chunk), nil
}

// locate returns the tree node of the chunk containing key. The caller holds m.mu.
func (m *Memory) locate(sk types.ShardKey, key types.Key) (*redblacktree.Node, bool) {
	tree, ok := m.chunks[sk]
	if !ok {
		return nil, false
	}

	// the chunk starting at or before key is the only candidate
	node, found := tree.Floor(key)
	if !found || !node.Value.(types.Chunk).Contains(key) {
		return nil, false
	}

	return node, true
}

// newChunkTree returns an empty tree ordered by types.Key.
func newChunkTree() *redblacktree.Tree {
	return redblacktree.NewWith(compareKeys)
}

func compareKeys(a, b any) int {
	return a.(types.Key).Compare(b.(types.Key))
}

func chunkID(sk types.ShardKey, lo types.Key) string {
	return fmt.Sprintf("%s-%s_%s", sk.Namespace, sk.Field, lo.Hex())
}

// CountKeys returns a DocumentCounter reporting how many of keys fall within a chunk.
// Duplicate keys count once per occurrence.
func CountKeys(keys []types.Key) DocumentCounter {
	tree := newChunkTree()
	for _, k := range keys {
		n, _ := tree.Get(k)
		count, _ := n.(int64)
		tree.Put(k, count+1)
	}

	return func(chunk types.Chunk) int64 {
		node, found := tree.Ceiling(chunk.Min)
		if !found {
			return 0
		}

		var total int64
		for it := tree.IteratorAt(node); it.Key().(types.Key).Less(chunk.Max); {
			total += it.Value().(int64)
			if !it.Next() {
				break
			}
		}

		return total
	}
}
