// Package backoff holds the politeness throttle and the hostile-response
// state machine shared by the crawler and scraper stages.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Throttle sleeps a uniformly random duration between Min and Max between
// fetches. The randomization is deliberate: a fixed interval is an easy
// fingerprint for the target site.
type Throttle struct {
	Min time.Duration
	Max time.Duration
}

// NewThrottle returns a throttle over [minDelay, maxDelay]. A maxDelay below
// minDelay collapses to a fixed minDelay sleep.
func NewThrottle(minDelay, maxDelay time.Duration) Throttle {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return Throttle{Min: minDelay, Max: maxDelay}
}

// Delay picks the next sleep duration.
func (t Throttle) Delay() time.Duration {
	if t.Max <= t.Min {
		return t.Min
	}
	return t.Min + time.Duration(rand.Int63n(int64(t.Max-t.Min)))
}

// Wait sleeps for a randomized delay, returning early with the context error
// if the worker is being shut down.
func (t Throttle) Wait(ctx context.Context) error {
	d := t.Delay()
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
