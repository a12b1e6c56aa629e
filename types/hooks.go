package types

import (
	"context"
	"time"
)

// Hooks defines callbacks for pre-split lifecycle events.
//
// All hooks are optional and run synchronously on the calling goroutine
// after the event they describe. Hook errors are logged but never fail
// the pre-split run.
type Hooks struct {
	// OnDayBalanced is called after a day's range was balanced and its markers written.
	// moved is the total document count reported by the balancer.
	OnDayBalanced func(ctx context.Context, day time.Time, moved int64) error

	// OnDaySkipped is called when every marker of the day was already processed.
	OnDaySkipped func(ctx context.Context, day time.Time) error

	// OnError is called when a pre-split run fails.
	OnError func(ctx context.Context, err error) error
}
