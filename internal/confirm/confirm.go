// Package confirm holds commands waiting for their requester to approve
// them. Entries expire through a periodic sweep, not per-entry timers.
package confirm

import (
	"context"
	"errors"
	"sync"
	"time"

	"sentinel-nlmod/internal/command"

	"github.com/google/uuid"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultSweepInterval = 5 * time.Second
)

var (
	ErrNotFound     = errors.New("confirm: confirmation not found")
	ErrNotRequester = errors.New("confirm: only the requester may answer")
)

type Pending struct {
	ID          string
	GuildID     string
	ChannelID   string
	RequesterID string
	Language    string
	Command     command.ParsedCommand
	CreatedAt   time.Time
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Store struct {
	mu       sync.Mutex
	timeout  time.Duration
	clock    Clock
	pending  map[string]Pending
	onExpire func(Pending)
}

func New(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{
		timeout: timeout,
		clock:   realClock{},
		pending: make(map[string]Pending),
	}
}

func (s *Store) WithClock(clock Clock) {
	s.clock = clock
}

func (s *Store) OnExpire(fn func(Pending)) {
	s.onExpire = fn
}

func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// Request stores p under a fresh id. Ids are per request, so one user may
// hold several live confirmations.
func (s *Store) Request(p Pending) Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.NewString()
	p.CreatedAt = s.clock.Now()
	s.pending[p.ID] = p
	return p
}

// Confirm checks and deletes the entry in one step. An entry past its
// timeout is gone even if the sweep has not run yet.
func (s *Store) Confirm(id, requesterID string) (Pending, error) {
	return s.take(id, requesterID)
}

func (s *Store) Cancel(id, requesterID string) (Pending, error) {
	return s.take(id, requesterID)
}

func (s *Store) take(id, requesterID string) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return Pending{}, ErrNotFound
	}
	if s.expired(p) {
		delete(s.pending, id)
		return Pending{}, ErrNotFound
	}
	if p.RequesterID != requesterID {
		return Pending{}, ErrNotRequester
	}
	delete(s.pending, id)
	return p, nil
}

func (s *Store) Get(id string) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	if !ok || s.expired(p) {
		return Pending{}, false
	}
	return p, true
}

// Sweep drops expired entries and reports each to the expiry hook.
func (s *Store) Sweep() int {
	s.mu.Lock()
	var expired []Pending
	for id, p := range s.pending {
		if s.expired(p) {
			expired = append(expired, p)
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	if s.onExpire != nil {
		for _, p := range expired {
			s.onExpire(p)
		}
	}
	return len(expired)
}

func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) expired(p Pending) bool {
	return s.clock.Now().Sub(p.CreatedAt) >= s.timeout
}
