// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/presplit/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// BalancerMetrics implementation

// RecordSplit discards the split metric.
func (n *NopMetrics) RecordSplit(_ /* result */ string) {}

// RecordMove discards the move metric.
func (n *NopMetrics) RecordMove(_ /* shard */, _ /* result */ string) {}

// RecordMovedDocuments discards the moved documents metric.
func (n *NopMetrics) RecordMovedDocuments(_ /* shard */ string, _ /* count */ int64) {}

// RecordBalanceDuration discards the balance duration metric.
func (n *NopMetrics) RecordBalanceDuration(_ /* duration */ float64, _ /* success */ bool) {}

// PresplitMetrics implementation

// RecordPresplit discards the presplit outcome metric.
func (n *NopMetrics) RecordPresplit(_ /* result */ string, _ /* duration */ float64) {}

// RecordMarkers discards the marker count metric.
func (n *NopMetrics) RecordMarkers(_ /* count */ int) {}
