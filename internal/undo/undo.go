// Package undo keeps a short per-actor memory of executed moderation
// attempts so the most recent reversible command can be rolled back.
package undo

import (
	"sync"
	"time"

	"sentinel-nlmod/internal/command"
)

const (
	DefaultWindow = 5 * time.Minute
	DefaultMax    = 10
)

// Entry is one attempt against one target. Attempts issued by the same
// command share a Group.
type Entry struct {
	Seq     uint64
	Group   string
	GuildID string
	ActorID string
	Action  command.Action
	Params  command.Params
	Result  command.TargetResult
	At      time.Time
	Undone  bool
}

// Reversible reports whether the entry succeeded and has an inverse action.
func (e Entry) Reversible() bool {
	if !e.Result.Success || e.Undone {
		return false
	}
	_, ok := e.Action.Reverse()
	return ok
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Store struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	clock   Clock
	seq     uint64
	entries map[string][]Entry
}

func New(window time.Duration, max int) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}
	return &Store{
		window:  window,
		max:     max,
		clock:   realClock{},
		entries: make(map[string][]Entry),
	}
}

func (s *Store) WithClock(clock Clock) {
	s.clock = clock
}

func (s *Store) Window() time.Duration {
	return s.window
}

// Record appends an attempt to the actor's ring, evicting the oldest entry
// once the ring is full.
func (s *Store) Record(entry Entry) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	entry.Seq = s.seq
	if entry.At.IsZero() {
		entry.At = s.clock.Now()
	}
	key := entry.GuildID + ":" + entry.ActorID
	ring := append(s.entries[key], entry)
	if len(ring) > s.max {
		ring = append([]Entry(nil), ring[len(ring)-s.max:]...)
	}
	s.entries[key] = ring
	return entry
}

// Recent returns the actor's attempts inside the window, newest first.
// Expired entries are skipped, not removed.
func (s *Store) Recent(guildID, actorID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.window)
	ring := s.entries[guildID+":"+actorID]
	out := make([]Entry, 0, len(ring))
	for i := len(ring) - 1; i >= 0; i-- {
		if ring[i].At.Before(cutoff) {
			continue
		}
		out = append(out, ring[i])
	}
	return out
}

// TakeReversible finds the newest reversible attempt inside the window and
// returns every reversible attempt of its group, marking them undone so a
// second call cannot reverse them again.
func (s *Store) TakeReversible(guildID, actorID string) ([]Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.window)
	ring := s.entries[guildID+":"+actorID]
	latest := -1
	for i := len(ring) - 1; i >= 0; i-- {
		if ring[i].At.Before(cutoff) {
			break
		}
		if ring[i].Reversible() {
			latest = i
			break
		}
	}
	if latest < 0 {
		return nil, false
	}

	group := ring[latest].Group
	var taken []Entry
	for i := range ring {
		if ring[i].At.Before(cutoff) || !ring[i].Reversible() {
			continue
		}
		if i != latest && (group == "" || ring[i].Group != group) {
			continue
		}
		ring[i].Undone = true
		taken = append(taken, ring[i])
	}
	return taken, true
}

// Cleanup drops expired entries and empty rings.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.window)
	removed := 0
	for key, ring := range s.entries {
		kept := ring[:0]
		for _, entry := range ring {
			if entry.At.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, entry)
		}
		if len(kept) == 0 {
			delete(s.entries, key)
			continue
		}
		s.entries[key] = kept
	}
	return removed
}

func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, ring := range s.entries {
		total += len(ring)
	}
	return total
}
