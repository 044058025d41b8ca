// Package ratelimit implements sliding-log rate limits: a blocking quota for
// datastore calls and rejecting quotas for users and communities.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window admits at most Limit events in any Period-long interval. It keeps the
// timestamps of admitted events, so an event is admitted again exactly when
// the oldest recorded one leaves the window.
type Window struct {
	mu     sync.Mutex
	limit  int
	period time.Duration
	events []time.Time
	now    func() time.Time
}

// NewWindow returns a limiter admitting limit events per period
func NewWindow(limit int, period time.Duration) *Window {
	return &Window{
		limit:  max(limit, 1),
		period: period,
		events: make([]time.Time, 0, max(limit, 1)),
		now:    time.Now,
	}
}

// prune drops events that are outside the window; caller holds mu
func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.period)
	i := 0
	for i < len(w.events) && !w.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}

// reserve records an event if the window has room. Otherwise it returns how
// long to wait until the oldest event expires.
func (w *Window) reserve() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.prune(now)
	if len(w.events) < w.limit {
		w.events = append(w.events, now)
		return 0, true
	}
	return w.events[0].Add(w.period).Sub(now), false
}

// Allow records an event and reports true if the window has room
func (w *Window) Allow() bool {
	_, ok := w.reserve()
	return ok
}

// Wait blocks until an event can be recorded or ctx is done
func (w *Window) Wait(ctx context.Context) error {
	for {
		wait, ok := w.reserve()
		if ok {
			return nil
		}
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Remaining returns how many events the window would admit right now
func (w *Window) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return w.limit - len(w.events)
}

// ResetIn returns the time until the oldest event leaves the window
func (w *Window) ResetIn() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.prune(now)
	if len(w.events) == 0 {
		return 0
	}
	return w.events[0].Add(w.period).Sub(now)
}

// idle reports whether the window holds no live events
func (w *Window) idle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.events) == 0
}
