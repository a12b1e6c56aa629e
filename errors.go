package presplit

import "github.com/arloliu/presplit/types"

// Sentinel errors re-exported from the types package.
//
// Check them with errors.Is; every failure is wrapped with the step that
// produced it.
var (
	ErrChunkNotFound         = types.ErrChunkNotFound
	ErrChunkAlreadyOnShard   = types.ErrChunkAlreadyOnShard
	ErrAdministrativeFailure = types.ErrAdministrativeFailure
	ErrInvalidDivisions      = types.ErrInvalidDivisions
	ErrChunkTooNarrow        = types.ErrChunkTooNarrow
	ErrInvalidRange          = types.ErrInvalidRange
	ErrNoShards              = types.ErrNoShards
	ErrCatalogRequired       = types.ErrCatalogRequired
	ErrInvalidRounding       = types.ErrInvalidRounding
	ErrTimeOutOfRange        = types.ErrTimeOutOfRange
	ErrInvalidConfig         = types.ErrInvalidConfig
	ErrBalancerRequired      = types.ErrBalancerRequired
	ErrMarkerStoreRequired   = types.ErrMarkerStoreRequired
	ErrPresplitFailed        = types.ErrPresplitFailed
)
