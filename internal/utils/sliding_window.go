package utils

import (
	"sync"
	"time"
)

// SlidingWindow keeps the ordered hit timestamps of the trailing window.
// Every accessor prunes expired hits first.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	return len(w.hits)
}

// CountWithin counts hits newer than now-d. d is capped by the window.
func (w *SlidingWindow) CountWithin(now time.Time, d time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	cutoff := now.Add(-d)
	count := 0
	for i := len(w.hits) - 1; i >= 0; i-- {
		if !w.hits[i].After(cutoff) {
			break
		}
		count++
	}
	return count
}

func (w *SlidingWindow) Last(now time.Time) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	if len(w.hits) == 0 {
		return time.Time{}, false
	}
	return w.hits[len(w.hits)-1], true
}

// OldestWithin returns the oldest hit newer than now-d.
func (w *SlidingWindow) OldestWithin(now time.Time, d time.Duration) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	cutoff := now.Add(-d)
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			return hit, true
		}
	}
	return time.Time{}, false
}

func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	w.hits = nil
	w.mu.Unlock()
}

func (w *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	if idx > 0 {
		w.hits = w.hits[idx:]
	}
}
