package presplit

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/arloliu/presplit/internal/logging"
	"github.com/arloliu/presplit/internal/metrics"
	"github.com/arloliu/presplit/types"
)

// RangeBalancer divides a key range across shards.
//
// *balancer.Balancer implements it.
type RangeBalancer interface {
	// BalanceRange divides [start, end] across shards and returns the total
	// document count reported by the moves.
	BalanceRange(ctx context.Context, start, end Key, shards []string) (int64, error)
}

// DayBoundaries holds the keys that bound one calendar day.
type DayBoundaries struct {
	// Day is local midnight of the day.
	Day time.Time

	// Start, Noon and Next are the minimum keys of midnight, noon and the
	// following midnight. They double as the day's marker keys.
	Start Key
	Noon  Key
	Next  Key

	// End is the maximum key of the following midnight, the upper bound
	// handed to the balancer.
	End Key
}

// Markers returns the distinct marker keys of the day in ascending order.
func (d DayBoundaries) Markers() []Key {
	keys := []Key{d.Start, d.Noon, d.Next}
	slices.SortFunc(keys, Key.Compare)

	return slices.Compact(keys)
}

// PreSplitter pre-splits the key range of whole days across shards, at most
// effectively once per day.
//
// Progress is tracked with one marker per boundary key in a MarkerStore. A
// day whose markers are all present is skipped; a partially processed day
// resumes from its earliest unprocessed boundary.
type PreSplitter struct {
	cfg      Config
	loc      *time.Location
	balancer RangeBalancer
	store    MarkerStore
	hooks    *Hooks
	metrics  MetricsCollector
	logger   Logger
}

// NewPreSplitter creates a pre-splitter.
//
// Parameters:
//   - cfg: Configuration; missing values are filled with defaults
//   - balancer: Range balancer for cfg.Namespace
//   - store: Marker store recording completed days
//   - opts: Optional logger, metrics and hooks
//
// Returns:
//   - *PreSplitter: Ready to use pre-splitter
//   - error: ErrInvalidConfig, ErrBalancerRequired or ErrMarkerStoreRequired
//
// Example:
//
//	cfg := presplit.DefaultConfig()
//	cfg.Namespace = "app.events"
//	cfg.Shards = []string{"shard-a", "shard-b"}
//	bal, _ := balancer.New(cat, presplit.ShardKey{Namespace: cfg.Namespace, Field: cfg.ShardKey})
//	p, err := presplit.NewPreSplitter(&cfg, bal, marker.NewMemory())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = p.Presplit(ctx, time.Now().AddDate(0, 0, 1))
func NewPreSplitter(cfg *Config, balancer RangeBalancer, store MarkerStore, opts ...Option) (*PreSplitter, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if balancer == nil {
		return nil, ErrBalancerRequired
	}
	if store == nil {
		return nil, ErrMarkerStoreRequired
	}

	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	options := &presplitterOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	cfg.ValidateWithWarnings(loggerInstance)

	hooksInstance := options.hooks
	if hooksInstance == nil {
		hooksInstance = &Hooks{}
	}

	return &PreSplitter{
		cfg:      *cfg,
		loc:      cfg.Location(),
		balancer: balancer,
		store:    store,
		hooks:    hooksInstance,
		metrics:  metricsCollector,
		logger:   loggerInstance,
	}, nil
}

// Days computes the boundary keys of the calendar day containing date,
// in the configured time zone.
//
// Returns:
//   - DayBoundaries: Keys of the day
//   - error: ErrTimeOutOfRange when the day cannot be expressed as keys
func (p *PreSplitter) Days(date time.Time) (DayBoundaries, error) {
	local := date.In(p.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc)
	noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, p.loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, p.loc)

	d := DayBoundaries{Day: midnight}

	var err error
	if d.Start, err = types.KeyFromTime(midnight, RoundMin); err != nil {
		return d, err
	}
	if d.Noon, err = types.KeyFromTime(noon, RoundMin); err != nil {
		return d, err
	}
	if d.Next, err = types.KeyFromTime(next, RoundMin); err != nil {
		return d, err
	}
	if d.End, err = types.KeyFromTime(next, RoundMax); err != nil {
		return d, err
	}

	return d, nil
}

// Presplit pre-splits the day containing date across the configured shards.
//
// The algorithm:
//  1. Compute the day's marker keys (midnight, noon, next midnight)
//  2. Keep the markers the store has not recorded; none left means the day
//     is done and nothing else happens
//  3. Balance from the earliest unrecorded marker to the maximum key of the
//     next midnight, in a single BalanceRange call
//  4. Record every unrecorded marker; the one the balance started from
//     carries the moved document count, the others zero
//
// Markers are written only after the balance succeeds, so a crash in
// between makes the next run redo the range. Splits and moves tolerate
// being repeated.
//
// Returns:
//   - error: nil on success or when the day was already processed; otherwise
//     an error wrapping ErrPresplitFailed and naming the failed step
func (p *PreSplitter) Presplit(ctx context.Context, date time.Time) (err error) {
	began := time.Now()
	result := "error"
	defer func() {
		p.metrics.RecordPresplit(result, time.Since(began).Seconds())
		if err != nil {
			p.logger.Error("presplit failed", "namespace", p.cfg.Namespace, "date", date.Format(time.DateOnly), "error", err)
			if hook := p.hooks.OnError; hook != nil {
				p.runHook("OnError", func() error { return hook(ctx, err) })
			}
		}
	}()

	day, err := p.Days(date)
	if err != nil {
		return fmt.Errorf("%w: compute boundaries for %s: %w", ErrPresplitFailed, date.Format(time.DateOnly), err)
	}

	var pending []Key
	for _, k := range day.Markers() {
		id := types.MarkerID(p.cfg.Namespace, k)
		marked, err := p.store.IsMarked(ctx, id)
		if err != nil {
			return fmt.Errorf("%w: check marker %s: %w", ErrPresplitFailed, id, err)
		}
		if !marked {
			pending = append(pending, k)
		}
	}

	if len(pending) == 0 {
		p.logger.Info("day already pre-split", "namespace", p.cfg.Namespace, "day", day.Day.Format(time.DateOnly))
		result = "skipped"
		if hook := p.hooks.OnDaySkipped; hook != nil {
			p.runHook("OnDaySkipped", func() error { return hook(ctx, day.Day) })
		}

		return nil
	}

	start := slices.MinFunc(pending, Key.Compare)
	p.logger.Info("pre-splitting day",
		"namespace", p.cfg.Namespace,
		"day", day.Day.Format(time.DateOnly),
		"start", start,
		"end", day.End,
		"pending_markers", len(pending),
		"shards", p.cfg.Shards,
	)

	total, err := p.balancer.BalanceRange(ctx, start, day.End, p.cfg.Shards)
	if err != nil {
		return fmt.Errorf("%w: balance range %s..%s: %w", ErrPresplitFailed, start, day.End, err)
	}

	for _, k := range pending {
		var count int64
		if k == start {
			count = total
		}

		id := types.MarkerID(p.cfg.Namespace, k)
		if err := p.store.Mark(ctx, id, count); err != nil {
			return fmt.Errorf("%w: mark %s: %w", ErrPresplitFailed, id, err)
		}
	}
	p.metrics.RecordMarkers(len(pending))

	p.logger.Info("day pre-split", "namespace", p.cfg.Namespace, "day", day.Day.Format(time.DateOnly), "documents", total)
	result = "balanced"
	if hook := p.hooks.OnDayBalanced; hook != nil {
		p.runHook("OnDayBalanced", func() error { return hook(ctx, day.Day, total) })
	}

	return nil
}

// PresplitRange calls Presplit for every day from the day of from through
// the day of to, inclusive, stopping at the first failure.
//
// Returns:
//   - error: ErrInvalidRange when to is before from, or the first Presplit error
func (p *PreSplitter) PresplitRange(ctx context.Context, from, to time.Time) error {
	first, err := p.Days(from)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPresplitFailed, err)
	}
	last, err := p.Days(to)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPresplitFailed, err)
	}
	if last.Day.Before(first.Day) {
		return fmt.Errorf("%w: %s is after %s", ErrInvalidRange,
			first.Day.Format(time.DateOnly), last.Day.Format(time.DateOnly))
	}

	for day := first.Day; !day.After(last.Day); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Presplit(ctx, day); err != nil {
			return err
		}
	}

	return nil
}

// runHook calls fn and logs its error. Hook errors never fail a run.
func (p *PreSplitter) runHook(name string, fn func() error) {
	if err := fn(); err != nil {
		p.logger.Warn("hook failed", "hook", name, "namespace", p.cfg.Namespace, "error", err)
	}
}
