package utils

import (
	"slices"
	"sync"
	"time"
)

// LatencyTracker keeps a bounded window of recent durations, such as
// completion backend round trips, and reports percentiles over it.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
}

// NewLatencyTracker creates a tracker holding at most window samples.
func NewLatencyTracker(window int) *LatencyTracker {
	if window <= 0 {
		window = 256
	}
	return &LatencyTracker{samples: make([]time.Duration, window)}
}

// Observe records a duration, overwriting the oldest sample once the window is full.
func (l *LatencyTracker) Observe(d time.Duration) {
	if d < 0 {
		d = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples[l.next] = d
	l.next++
	if l.next == len(l.samples) {
		l.next = 0
		l.full = true
	}
}

// Count returns the number of samples currently held.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count()
}

// Percentile returns the p-th percentile (0-100), or zero with no samples.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.Lock()
	window := slices.Clone(l.samples[:l.count()])
	l.mu.Unlock()

	if len(window) == 0 {
		return 0
	}
	slices.Sort(window)

	switch {
	case p <= 0:
		return window[0]
	case p >= 100:
		return window[len(window)-1]
	}
	idx := int((p / 100.0) * float64(len(window)-1))
	return window[idx]
}

func (l *LatencyTracker) count() int {
	if l.full {
		return len(l.samples)
	}
	return l.next
}
