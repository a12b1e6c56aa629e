package types

import "context"

// MarkerStore persists write-once idempotency markers.
//
// Markers are completion records, never locks: two callers may both find
// a marker missing and both perform the work.
type MarkerStore interface {
	// IsMarked reports whether a processed marker exists for id.
	IsMarked(ctx context.Context, id string) (bool, error)

	// Mark records id as processed with the given count.
	//
	// Marking an id that is already marked is not an error and leaves the
	// existing record untouched.
	Mark(ctx context.Context, id string, count int64) error
}
