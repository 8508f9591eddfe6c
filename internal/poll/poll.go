// Package poll provides the poll-with-timeout combinator shared by every
// waiting site: cell completion, runtime connection, and dialog detection.
package poll

import (
	"context"
	"time"
)

// Status is the tri-state outcome of a polling loop.
type Status string

// Polling outcomes.
const (
	StatusSuccess Status = "success"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// Condition reports whether the awaited state has been reached.
// A non-nil error ends the loop with StatusError.
type Condition func(ctx context.Context) (done bool, err error)

// Options controls the polling cadence.
type Options struct {
	// Interval is the delay between condition checks.
	Interval time.Duration
	// Timeout bounds the whole loop. Zero or negative means no deadline.
	Timeout time.Duration
}

// Result describes how a polling loop ended.
type Result struct {
	Status   Status
	Err      error
	Elapsed  time.Duration
	Attempts int
}

// OK reports whether the condition was met.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Until evaluates cond immediately and then once per Interval until it
// returns true, returns an error, the timeout elapses, or ctx is done.
// StatusTimeout is never reported before Timeout has fully elapsed.
func Until(ctx context.Context, opts Options, cond Condition) Result {
	start := time.Now()
	interval := opts.Interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}

	var res Result
	for {
		if err := ctx.Err(); err != nil {
			res.Status = StatusError
			res.Err = err
			res.Elapsed = time.Since(start)
			return res
		}

		res.Attempts++
		done, err := cond(ctx)
		if err != nil {
			res.Status = StatusError
			res.Err = err
			res.Elapsed = time.Since(start)
			return res
		}
		if done {
			res.Status = StatusSuccess
			res.Elapsed = time.Since(start)
			return res
		}

		wait := interval
		if opts.Timeout > 0 {
			remaining := opts.Timeout - time.Since(start)
			if remaining <= 0 {
				res.Status = StatusTimeout
				res.Elapsed = time.Since(start)
				return res
			}
			// Wake exactly at the deadline rather than overshooting by an interval.
			if remaining < wait {
				wait = remaining
			}
		}

		if !Sleep(ctx, wait) {
			res.Status = StatusError
			res.Err = ctx.Err()
			res.Elapsed = time.Since(start)
			return res
		}
	}
}

// Sleep waits for d, returning false if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
