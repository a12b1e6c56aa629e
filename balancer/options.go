package balancer

import "github.com/arloliu/presplit/types"

// Option configures a Balancer with optional dependencies.
type Option func(*Balancer)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger types.Logger) Option {
	return func(b *Balancer) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector. Defaults to a no-op collector.
func WithMetrics(metrics types.MetricsCollector) Option {
	return func(b *Balancer) {
		if metrics != nil {
			b.metrics = metrics
		}
	}
}
