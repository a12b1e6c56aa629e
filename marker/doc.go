// Package marker provides MarkerStore implementations.
//
// A marker records that the work for one boundary key has finished. Markers
// are written once and never updated:
//
//   - KV stores markers in a NATS JetStream KeyValue bucket
//   - Mongo stores {_id, p, d, n} documents in a MongoDB collection
//   - Bolt stores markers in a local BoltDB file
//   - Memory keeps markers in process, for tests and dry runs
//
// None of the stores provide mutual exclusion. Two runs that check the same
// marker concurrently may both do the work; the second Mark is a no-op.
package marker
