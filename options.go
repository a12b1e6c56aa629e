package presplit

// Option configures a PreSplitter with optional dependencies.
type Option func(*presplitterOptions)

// presplitterOptions holds optional PreSplitter configuration.
type presplitterOptions struct {
	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewPreSplitter
//
// Example:
//
//	hooks := &presplit.Hooks{
//	    OnDayBalanced: func(ctx context.Context, day time.Time, moved int64) error {
//	        return notify(day, moved)
//	    },
//	}
//	p, err := presplit.NewPreSplitter(&cfg, bal, store, presplit.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *presplitterOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewPreSplitter
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *presplitterOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation, such as a logging.SlogLogger
//
// Returns:
//   - Option: Functional option for NewPreSplitter
//
// Example:
//
//	logger := logging.NewSlog(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
//	p, err := presplit.NewPreSplitter(&cfg, bal, store, presplit.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *presplitterOptions) {
		o.logger = logger
	}
}
