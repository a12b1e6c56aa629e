package types

import "time"

// Marker is a write-once idempotency record proving that work for a
// boundary key has completed.
type Marker struct {
	// ID identifies the boundary key the marker belongs to.
	ID string `json:"id"`

	// Processed is always true for stored markers.
	Processed bool `json:"p"`

	// ProcessedAt is when the marker was written.
	ProcessedAt time.Time `json:"d"`

	// Count is the number of documents moved by the work the marker records.
	Count int64 `json:"n"`
}

// MarkerID returns the marker identity of a boundary key within a namespace.
func MarkerID(namespace string, k Key) string {
	return namespace + "/" + k.Hex()
}
