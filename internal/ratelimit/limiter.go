package ratelimit

import (
	"sync"
	"time"
)

// record tracks one user's admissions inside the current window.
type record struct {
	windowStart time.Time
	count       int
}

// Limiter enforces a per-user sliding-window admission limit. Records are
// reclaimed lazily on the next admission check for that user; their number is
// bounded by the distinct users seen, so no background expiry runs.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	records map[int64]*record
}

// NewLimiter creates a limiter allowing max admissions per user per window.
func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		records: make(map[int64]*record),
	}
}

// Allow reports whether the user may submit at the given time. A denied
// attempt does not mutate the window, so retrying never earns a free slot.
func (l *Limiter) Allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[userID]
	if !ok || now.Sub(r.windowStart) >= l.window {
		l.records[userID] = &record{windowStart: now, count: 1}
		return true
	}

	if r.count < l.max {
		r.count++
		return true
	}
	return false
}
