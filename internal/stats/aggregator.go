package stats

import (
	"sort"
	"sync"
	"time"
)

// Entry is one user's line in the admin report.
type Entry struct {
	UserID      int64
	DisplayName string
	Requests    int
}

// Report is a point-in-time snapshot of the aggregator. ActiveUsers counts
// users who greeted the bot this process lifetime, an accepted
// approximation of liveness.
type Report struct {
	TotalUsers    int
	ActiveUsers   int
	TotalRequests int
	StartedAt     time.Time
	Top           []Entry
}

// Aggregator keeps process-wide request counters per user. Counters are
// monotonic and live for the lifetime of the process; nothing is persisted.
type Aggregator struct {
	mu        sync.Mutex
	startedAt time.Time
	counts    map[int64]int
	names     map[int64]string
	active    map[int64]struct{}
	order     []int64 // user IDs in first-seen order, for stable ranking ties
}

// NewAggregator creates an empty aggregator anchored at now.
func NewAggregator() *Aggregator {
	return &Aggregator{
		startedAt: time.Now(),
		counts:    make(map[int64]int),
		names:     make(map[int64]string),
		active:    make(map[int64]struct{}),
	}
}

// MarkActive notes that the user greeted the bot this process lifetime.
func (a *Aggregator) MarkActive(userID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active[userID] = struct{}{}
}

// Record increments the user's request counter and upserts the display name.
func (a *Aggregator) Record(userID int64, displayName string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, seen := a.counts[userID]; !seen {
		a.order = append(a.order, userID)
	}
	a.counts[userID]++
	if displayName != "" {
		a.names[userID] = displayName
	}
}

// Snapshot returns the current totals and the full ranking, descending by
// request count with ties broken by first-seen order.
func (a *Aggregator) Snapshot() Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := Report{
		TotalUsers:  len(a.counts),
		ActiveUsers: len(a.active),
		StartedAt:   a.startedAt,
		Top:         make([]Entry, 0, len(a.order)),
	}

	for _, uid := range a.order {
		name := a.names[uid]
		if name == "" {
			name = "Unknown"
		}
		r.TotalRequests += a.counts[uid]
		r.Top = append(r.Top, Entry{UserID: uid, DisplayName: name, Requests: a.counts[uid]})
	}

	sort.SliceStable(r.Top, func(i, j int) bool {
		return r.Top[i].Requests > r.Top[j].Requests
	})

	return r
}
