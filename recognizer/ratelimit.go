package recognizer

import (
	"sync"
	"time"
)

// RateLimiter caps how many recognizer calls go out per time window
type RateLimiter struct {
	counters     map[string]*windowEntry
	mu           sync.Mutex
	maxRequests  int
	windowPeriod time.Duration
}

// windowEntry tracks request counts inside the current window
type windowEntry struct {
	Count       int
	WindowStart time.Time
}

// NewRateLimiter creates a limiter allowing maxRequests per windowPeriod
func NewRateLimiter(maxRequests int, windowPeriod time.Duration) *RateLimiter {
	return &RateLimiter{
		counters:     make(map[string]*windowEntry),
		maxRequests:  maxRequests,
		windowPeriod: windowPeriod,
	}
}

// CheckLimit records a request against key and reports whether the limit
// is exceeded, along with the current count and the window reset time
func (r *RateLimiter) CheckLimit(key string) (bool, int, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	entry, ok := r.counters[key]

	// No entry yet, or the previous window expired
	if !ok || now.Sub(entry.WindowStart) > r.windowPeriod {
		r.counters[key] = &windowEntry{
			Count:       1,
			WindowStart: now,
		}
		return false, 1, now.Add(r.windowPeriod)
	}

	entry.Count++

	if entry.Count > r.maxRequests {
		return true, entry.Count, entry.WindowStart.Add(r.windowPeriod)
	}

	return false, entry.Count, entry.WindowStart.Add(r.windowPeriod)
}
