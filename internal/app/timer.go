package app

import (
	"context"
	"time"
)

// RefreshTimer fires once immediately and then every interval. The next
// fire time is derived from the previous scheduled time, not from when the
// callback returned, so slow callbacks do not accumulate drift. Periods
// missed entirely (for example after a suspend) are coalesced into one fire.
type RefreshTimer struct {
	interval time.Duration
	now      func() time.Time
}

// NewRefreshTimer creates a timer with the given period. now defaults to time.Now.
func NewRefreshTimer(interval time.Duration, now func() time.Time) *RefreshTimer {
	if now == nil {
		now = time.Now
	}
	return &RefreshTimer{interval: interval, now: now}
}

// Run calls fire until ctx is cancelled. fire must not block; callers that
// do slow work hand it to another goroutine.
func (t *RefreshTimer) Run(ctx context.Context, fire func()) {
	if ctx.Err() != nil {
		return
	}
	fire()
	if t.interval <= 0 {
		return
	}

	next := t.now().Add(t.interval)
	timer := time.NewTimer(t.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			fire()
			now := t.now()
			next = nextFire(next, t.interval, now)
			timer.Reset(next.Sub(now))
		}
	}
}

// nextFire returns the first multiple of interval after scheduled that is
// still in the future relative to now.
func nextFire(scheduled time.Time, interval time.Duration, now time.Time) time.Time {
	next := scheduled.Add(interval)
	if !next.After(now) {
		missed := now.Sub(next)/interval + 1
		next = next.Add(missed * interval)
	}
	return next
}
