package presplit

import "github.com/arloliu/presplit/types"

// Re-export types from the types package.
//
// Adapter packages (balancer, catalog, marker) depend on types only, so the
// root package can import none of them and still offer presplit.Key,
// presplit.Logger and friends to callers.
type (
	Key      = types.Key
	Rounding = types.Rounding
	ShardKey = types.ShardKey
	Chunk    = types.Chunk
	Marker   = types.Marker
)

// Re-export interfaces from the types package for convenience.
type (
	ChunkCatalog     = types.ChunkCatalog
	MarkerStore      = types.MarkerStore
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export Rounding constants from the types package.
const (
	RoundMin = types.RoundMin
	RoundMax = types.RoundMax
)
