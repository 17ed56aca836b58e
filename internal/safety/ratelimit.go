package safety

import (
	"strings"
	"sync"
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/utils"
)

// Limit is the per-action invocation budget of one actor.
type Limit struct {
	Cooldown  time.Duration
	PerMinute int
	PerHour   int
}

type rateEntry struct {
	mu     sync.Mutex
	window *utils.SlidingWindow
	// removed is set under mu once the entry left the map; a caller still
	// holding it must look the key up again.
	removed bool
}

// RateLimiter tracks one trailing-hour window per (guild, actor, action).
// Each key has its own mutex so check-and-record is atomic per actor.
type RateLimiter struct {
	mu      sync.RWMutex
	entries map[string]*rateEntry
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{entries: make(map[string]*rateEntry)}
}

// Allow checks cooldown, then the per-minute cap, then the per-hour cap, and
// records now when every check passes. On failure it returns the failed
// check and how long until the call would pass.
func (r *RateLimiter) Allow(guildID, userID string, action command.Action, limit Limit, now time.Time) (Check, time.Duration) {
	k := rateKey(guildID, userID, action)
	for {
		if check, wait, live := r.allowOn(r.entry(k), limit, now); live {
			return check, wait
		}
	}
}

// allowOn runs the checks against entry. live is false when entry was
// removed by Reset or Cleanup before the lock was taken.
func (r *RateLimiter) allowOn(entry *rateEntry, limit Limit, now time.Time) (Check, time.Duration, bool) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return "", 0, false
	}

	if limit.Cooldown > 0 {
		if last, ok := entry.window.Last(now); ok {
			if elapsed := now.Sub(last); elapsed < limit.Cooldown {
				return CheckCooldown, limit.Cooldown - elapsed, true
			}
		}
	}
	if limit.PerMinute > 0 && entry.window.CountWithin(now, time.Minute) >= limit.PerMinute {
		return CheckMinuteLimit, retryAfter(entry.window, now, time.Minute), true
	}
	if limit.PerHour > 0 && entry.window.Count(now) >= limit.PerHour {
		return CheckHourLimit, retryAfter(entry.window, now, time.Hour), true
	}
	entry.window.Add(now)
	return "", 0, true
}

// Reset clears every action window of one actor.
func (r *RateLimiter) Reset(guildID, userID string) int {
	prefix := guildID + ":" + userID + ":"
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for k, entry := range r.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		entry.mu.Lock()
		entry.removed = true
		entry.mu.Unlock()
		delete(r.entries, k)
		removed++
	}
	return removed
}

// Cleanup drops windows with no hits in the trailing hour.
func (r *RateLimiter) Cleanup(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for k, entry := range r.entries {
		entry.mu.Lock()
		if entry.window.Count(now) == 0 {
			entry.removed = true
			delete(r.entries, k)
			removed++
		}
		entry.mu.Unlock()
	}
	return removed
}

func (r *RateLimiter) Tracked() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *RateLimiter) entry(k string) *rateEntry {
	r.mu.RLock()
	entry := r.entries[k]
	r.mu.RUnlock()
	if entry != nil {
		return entry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry = r.entries[k]; entry == nil {
		entry = &rateEntry{window: utils.NewSlidingWindow(time.Hour)}
		r.entries[k] = entry
	}
	return entry
}

func retryAfter(window *utils.SlidingWindow, now time.Time, span time.Duration) time.Duration {
	oldest, ok := window.OldestWithin(now, span)
	if !ok {
		return 0
	}
	return oldest.Add(span).Sub(now)
}

func rateKey(guildID, userID string, action command.Action) string {
	return guildID + ":" + userID + ":" + string(action)
}
