// Package catalog provides types.ChunkCatalog implementations.
//
// Mongo talks to a live sharded MongoDB cluster: chunk metadata is read from
// the config database and splits and moves are issued as admin commands.
//
// Memory keeps a chunk table in process. It simulates the same split and move
// semantics and is used by tests and dry runs.
package catalog
