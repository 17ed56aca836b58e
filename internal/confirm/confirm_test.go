package confirm

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sentinel-nlmod/internal/command"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	store := New(30 * time.Second)
	store.WithClock(clock)
	return store, clock
}

func banCommand() command.ParsedCommand {
	return command.ParsedCommand{Action: command.ActionBan, Targets: []command.TargetRef{{ID: "spammer"}}}
}

func TestConfirmBySameRequester(t *testing.T) {
	store, _ := newStore()
	p := store.Request(Pending{RequesterID: "mod", Command: banCommand()})
	if p.ID == "" {
		t.Fatalf("expected an id")
	}

	if _, err := store.Confirm(p.ID, "someone-else"); !errors.Is(err, ErrNotRequester) {
		t.Fatalf("expected ErrNotRequester, got %v", err)
	}
	got, err := store.Confirm(p.ID, "mod")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Command.Action != command.ActionBan {
		t.Fatalf("unexpected command %+v", got.Command)
	}
	if _, err := store.Confirm(p.ID, "mod"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second confirm must fail, got %v", err)
	}
}

func TestSweepExpiresAfterTimeout(t *testing.T) {
	store, clock := newStore()
	var expired []Pending
	store.OnExpire(func(p Pending) { expired = append(expired, p) })

	p := store.Request(Pending{RequesterID: "mod", Command: banCommand()})
	clock.Advance(29 * time.Second)
	if removed := store.Sweep(); removed != 0 {
		t.Fatalf("entry swept early")
	}

	clock.Advance(2 * time.Second)
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected 1 swept, got %d", removed)
	}
	if len(expired) != 1 || expired[0].ID != p.ID {
		t.Fatalf("expected expiry hook for %s", p.ID)
	}
	if _, err := store.Confirm(p.ID, "mod"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("late confirm must be not found, got %v", err)
	}
}

func TestConfirmAfterTimeoutBeforeSweep(t *testing.T) {
	store, clock := newStore()
	p := store.Request(Pending{RequesterID: "mod", Command: banCommand()})
	clock.Advance(31 * time.Second)

	if _, err := store.Confirm(p.ID, "mod"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if store.Size() != 0 {
		t.Fatalf("expired entry should be dropped on access")
	}
}

func TestConcurrentConfirmationsPerUser(t *testing.T) {
	store, _ := newStore()
	a := store.Request(Pending{RequesterID: "mod", Command: banCommand()})
	b := store.Request(Pending{RequesterID: "mod", Command: banCommand()})
	if a.ID == b.ID {
		t.Fatalf("ids must be unique per request")
	}
	if _, err := store.Cancel(a.ID, "mod"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, ok := store.Get(b.ID); !ok {
		t.Fatalf("second confirmation must survive")
	}
}

func TestConfirmRacesWithSweep(t *testing.T) {
	store, clock := newStore()
	p := store.Request(Pending{RequesterID: "mod", Command: banCommand()})
	clock.Advance(30 * time.Second)

	var confirmed, swept int32
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := store.Confirm(p.ID, "mod"); err == nil {
			atomic.AddInt32(&confirmed, 1)
		}
	}()
	go func() {
		defer wg.Done()
		atomic.AddInt32(&swept, int32(store.Sweep()))
	}()
	wg.Wait()

	if confirmed != 0 {
		t.Fatalf("expired entry must never be confirmed")
	}
	if store.Size() != 0 {
		t.Fatalf("entry should be gone")
	}
}
