package ratelimit

import (
	"sync"
	"time"
)

// Keyed keeps one Window per key, typically a user id
type Keyed struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	windows map[int64]*Window
	now     func() time.Time
}

// NewKeyed returns a per-key limiter admitting limit events per period per key
func NewKeyed(limit int, period time.Duration) *Keyed {
	return &Keyed{
		limit:   limit,
		period:  period,
		windows: make(map[int64]*Window),
		now:     time.Now,
	}
}

func (k *Keyed) window(key int64) *Window {
	k.mu.Lock()
	defer k.mu.Unlock()

	w, ok := k.windows[key]
	if !ok {
		w = NewWindow(k.limit, k.period)
		w.now = k.now
		k.windows[key] = w
	}
	return w
}

// Allow records an event for key and reports whether it was within quota
func (k *Keyed) Allow(key int64) bool {
	return k.window(key).Allow()
}

// Remaining returns how many more events key may record right now
func (k *Keyed) Remaining(key int64) int {
	k.mu.Lock()
	w, ok := k.windows[key]
	k.mu.Unlock()
	if !ok {
		return k.limit
	}
	return w.Remaining()
}

// ResetIn returns the time until key regains one unit of quota
func (k *Keyed) ResetIn(key int64) time.Duration {
	k.mu.Lock()
	w, ok := k.windows[key]
	k.mu.Unlock()
	if !ok {
		return 0
	}
	return w.ResetIn()
}

// Sweep forgets keys without live events and returns how many were removed
func (k *Keyed) Sweep() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	removed := 0
	for key, w := range k.windows {
		if w.idle() {
			delete(k.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.windows)
}
