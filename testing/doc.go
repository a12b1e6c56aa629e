// Package testing provides test utilities for the presplit library.
//
// It follows Go's convention of providing testing utilities in a dedicated
// package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: In-memory KV bucket for marker store tests
//
// Example usage:
//
//	import (
//	    "testing"
//	    presplittest "github.com/arloliu/presplit/testing"
//	)
//
//	func TestMarkers(t *testing.T) {
//	    _, nc := presplittest.StartEmbeddedNATS(t)
//	    kv := presplittest.CreateJetStreamKV(t, nc, "markers")
//	    store := marker.NewKV(kv, nil)
//	}
package testing
