// Package types provides core type definitions and interfaces for the presplit library.
//
// This package contains shared types that are used across multiple packages in the
// library. By keeping these types in a separate package, we avoid import cycles
// between the root presplit package, the balancer and the catalog/marker adapters.
//
// Key types:
//   - Key: 12-byte ordered, arithmetic-capable shard key value
//   - Chunk: Half-open key range owned by one shard
//   - Marker: Write-once idempotency record
//   - ChunkCatalog: Chunk metadata and administrative split/move commands
//   - MarkerStore: Idempotency record store
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
