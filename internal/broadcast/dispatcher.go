package broadcast

import (
	"context"
	"slices"
	"time"

	"homework_bot/internal/domain"
	"homework_bot/internal/logger"
	"homework_bot/internal/metrics"
)

const (
	// DefaultPacing is the pause between consecutive sends
	DefaultPacing = 50 * time.Millisecond
	// RetryMargin is added on top of the provider's retry-after
	RetryMargin = time.Second
)

// Outcome classifies a single delivery attempt
type Outcome int

const (
	Delivered Outcome = iota
	Blocked
	RateLimited
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Blocked:
		return "blocked"
	case RateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

// Delivery is what a Sender reports for one recipient
type Delivery struct {
	Outcome    Outcome
	RetryAfter time.Duration
	Err        error
}

// Sender delivers a payload to one recipient
type Sender interface {
	Deliver(ctx context.Context, recipientID int64, p domain.Payload) Delivery
}

// Report summarizes a run. Delivered + Failed + Skipped == Total; Blocked
// and RateLimited are the subsets of Failed with those outcomes. Skipped is
// only non-zero when the run was interrupted.
type Report struct {
	Total       int
	Delivered   int
	Failed      int
	Blocked     int
	RateLimited int
	Skipped     int
	Duration    time.Duration
}

// Interrupted reports whether the run stopped before reaching everyone
func (r Report) Interrupted() bool {
	return r.Skipped > 0
}

// Dispatcher sends a payload to every recipient in order, one at a time
type Dispatcher struct {
	sender Sender
	pacing time.Duration
	margin time.Duration
	sleep  func(time.Duration)
	now    func() time.Time
}

func NewDispatcher(sender Sender, pacing time.Duration) *Dispatcher {
	if pacing < 0 {
		pacing = 0
	}
	return &Dispatcher{
		sender: sender,
		pacing: pacing,
		margin: RetryMargin,
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

// WithSleeper replaces time.Sleep, mainly for tests
func (d *Dispatcher) WithSleeper(sleep func(time.Duration)) *Dispatcher {
	d.sleep = sleep
	return d
}

// WithClock replaces the time source used for Report.Duration
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Run delivers p to a snapshot of recipients. Per-recipient failures never
// stop the run. A rate-limited recipient is not retried; the run waits out
// the provider's delay before moving on. Cancelling ctx stops the run
// between recipients; the rest are counted as skipped.
func (d *Dispatcher) Run(ctx context.Context, p domain.Payload, recipients []int64) Report {
	snapshot := slices.Clone(recipients)
	start := d.now()
	rep := Report{Total: len(snapshot)}

	for i, id := range snapshot {
		if i > 0 && d.pacing > 0 {
			d.sleep(d.pacing)
		}
		if ctx.Err() != nil {
			rep.Skipped = len(snapshot) - i
			logger.Warn("broadcast interrupted", "attempted", i, "skipped", rep.Skipped)
			break
		}

		res := d.sender.Deliver(ctx, id, p)
		metrics.BroadcastDeliveries.WithLabelValues(res.Outcome.String()).Inc()

		switch res.Outcome {
		case Delivered:
			rep.Delivered++
			continue
		case Blocked:
			rep.Blocked++
		case RateLimited:
			rep.RateLimited++
			wait := res.RetryAfter + d.margin
			logger.Warn("broadcast rate limited", "recipient_id", id, "wait", wait)
			d.sleep(wait)
		default:
			logger.Debug("broadcast delivery failed", "recipient_id", id, "error", res.Err)
		}
		rep.Failed++
	}

	rep.Duration = d.now().Sub(start)
	return rep
}
