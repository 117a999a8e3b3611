// Copyright 2015 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package retry provides a reusable backoff policy for retry loops.
//
// A typical retry loop looks like:
//
//	for r := retry.StartWithCtx(ctx, opts); r.Next(); {
//	    if err := attempt(ctx); err == nil {
//	        return nil
//	    }
//	}
//	return lastErr
package retry

import (
	"context"
	"time"

	"github.com/nstruharova/accumulo/pkg/util/log"
	"github.com/nstruharova/accumulo/pkg/util/timeutil"
)

// Options provides reusable configuration of Retry objects.
type Options struct {
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// Increment is added to the delay after every attempt, before the
	// multiplier is applied.
	Increment time.Duration
	// Multiplier scales the delay after the increment is applied. Values
	// less than or equal to 1 disable multiplicative backoff.
	Multiplier float64
	// MaxBackoff caps the delay between attempts. Zero means no cap.
	MaxBackoff time.Duration
	// MaxRetries bounds the number of retries (attempts after the first).
	// Zero means retry forever.
	MaxRetries int
	// LogInterval is the cadence of "still retrying" log milestones. The
	// first retry is always logged; zero disables subsequent milestones.
	LogInterval time.Duration
	// Closer, if set, aborts the retry loop when closed.
	Closer <-chan struct{}
}

// Retry implements the public methods necessary to control an exponential-
// backoff retry loop. A Retry is stateful across one logical operation and
// must not be shared between operations.
type Retry struct {
	opts           Options
	ctx            context.Context
	currentAttempt int
	currentBackoff time.Duration
	isReset        bool
	lastLogged     time.Time
}

// Start returns a new Retry initialized to the given options.
func Start(opts Options) Retry {
	return StartWithCtx(context.Background(), opts)
}

// StartWithCtx returns a new Retry initialized to the given options. The
// Retry will also break out of the retry loop once the context is done.
func StartWithCtx(ctx context.Context, opts Options) Retry {
	r := Retry{opts: opts, ctx: ctx}
	r.Reset()
	return r
}

// Reset resets the Retry to its initial state, meaning that the next call to
// Next will return true immediately and the delay sequence starts over.
func (r *Retry) Reset() {
	r.currentAttempt = 0
	r.currentBackoff = r.opts.InitialBackoff
	if r.opts.MaxBackoff > 0 && r.currentBackoff > r.opts.MaxBackoff {
		r.currentBackoff = r.opts.MaxBackoff
	}
	r.isReset = true
}

// CurrentAttempt returns the zero-indexed attempt number.
func (r *Retry) CurrentAttempt() int {
	return r.currentAttempt
}

// NextDelay returns the delay that precedes the next attempt and advances
// the backoff state: the increment is applied first, then the multiplier,
// and the result is clamped to the cap. The returned sequence is
// deterministic and non-decreasing until it reaches the cap.
func (r *Retry) NextDelay() time.Duration {
	d := r.currentBackoff
	next := d + r.opts.Increment
	if r.opts.Multiplier > 1 {
		next = time.Duration(float64(next) * r.opts.Multiplier)
	}
	if r.opts.MaxBackoff > 0 && next > r.opts.MaxBackoff {
		next = r.opts.MaxBackoff
	}
	r.currentBackoff = next
	return d
}

// Exhausted returns true once the attempt budget has been spent. It is
// always false for an infinite budget.
func (r *Retry) Exhausted() bool {
	return r.opts.MaxRetries > 0 && r.currentAttempt >= r.opts.MaxRetries
}

// Next returns whether the retry loop should continue, blocking for the
// appropriate backoff delay before returning true. Next returns false once
// the attempt budget is spent or the context/closer terminates the loop;
// the call site must then surface its last error as non-retryable.
func (r *Retry) Next() bool {
	if r.isReset {
		r.isReset = false
		return true
	}
	if r.Exhausted() {
		return false
	}
	d := r.NextDelay()
	now := time.Now()
	if r.currentAttempt == 0 ||
		(r.opts.LogInterval > 0 && now.Sub(r.lastLogged) >= r.opts.LogInterval) {
		r.lastLogged = now
		log.VEventf(r.ctx, 1, "retry attempt %d, sleeping %s", r.currentAttempt+1, d)
	}
	var t timeutil.Timer
	defer t.Stop()
	t.Reset(d)
	select {
	case <-t.C:
		t.Read = true
	case <-r.ctx.Done():
		return false
	case <-r.opts.Closer:
		return false
	}
	r.currentAttempt++
	return true
}
