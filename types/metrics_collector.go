package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	BalancerMetrics
	PresplitMetrics
}

// BalancerMetrics defines metrics for catalog operations issued by the balancer.
type BalancerMetrics interface {
	// RecordSplit records a split request.
	//
	// Parameters:
	//   - result: "split" when a split command was issued, "boundary" when the key
	//     already was a chunk boundary, "error" on failure
	RecordSplit(result string)

	// RecordMove records a move request.
	//
	// Parameters:
	//   - shard: Destination shard
	//   - result: "moved", "noop" (already on destination) or "error"
	RecordMove(shard, result string)

	// RecordMovedDocuments adds to the count of documents reported by moves.
	RecordMovedDocuments(shard string, count int64)

	// RecordBalanceDuration records the time taken by a balance operation.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	//   - success: true if the operation completed
	RecordBalanceDuration(duration float64, success bool)
}

// PresplitMetrics defines metrics for the pre-split scheduler.
type PresplitMetrics interface {
	// RecordPresplit records the outcome of one Presplit call.
	//
	// Parameters:
	//   - result: "balanced", "skipped" (already processed) or "error"
	//   - duration: Time taken in seconds
	RecordPresplit(result string, duration float64)

	// RecordMarkers adds the number of markers written.
	RecordMarkers(count int)
}
