package types

import "errors"

// Sentinel errors for the presplit library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).

// Balancer errors.
var (
	// ErrChunkNotFound is returned when an operation needs a chunk for a key
	// that no chunk covers.
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrChunkAlreadyOnShard is returned by catalogs when a move targets the
	// shard that already owns the chunk. The balancer treats it as success.
	ErrChunkAlreadyOnShard = errors.New("chunk already on destination shard")

	// ErrAdministrativeFailure wraps any catalog split or move failure other
	// than ErrChunkAlreadyOnShard.
	ErrAdministrativeFailure = errors.New("administrative command failed")

	// ErrInvalidDivisions is returned when a chunk is divided into fewer than one piece.
	ErrInvalidDivisions = errors.New("divisions must be at least 1")

	// ErrChunkTooNarrow is returned when a chunk is too narrow to divide further.
	ErrChunkTooNarrow = errors.New("chunk too narrow to divide")

	// ErrInvalidRange is returned when a range start sorts after its end.
	ErrInvalidRange = errors.New("range start is after range end")

	// ErrNoShards is returned when balancing across an empty shard list.
	ErrNoShards = errors.New("no shards to balance across")

	// ErrCatalogRequired is returned when a balancer is built without a catalog.
	ErrCatalogRequired = errors.New("chunk catalog is required")
)

// Key errors.
var (
	// ErrInvalidRounding is returned for a rounding direction other than RoundMin or RoundMax.
	ErrInvalidRounding = errors.New("invalid key rounding")

	// ErrTimeOutOfRange is returned for timestamps that do not fit a key.
	ErrTimeOutOfRange = errors.New("timestamp out of key range")
)

// Scheduler errors.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBalancerRequired is returned when a pre-splitter is built without a balancer.
	ErrBalancerRequired = errors.New("range balancer is required")

	// ErrMarkerStoreRequired is returned when a pre-splitter is built without a marker store.
	ErrMarkerStoreRequired = errors.New("marker store is required")

	// ErrPresplitFailed wraps any failure of a pre-split run.
	ErrPresplitFailed = errors.New("presplit failed")
)
