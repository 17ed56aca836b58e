package undo

import (
	"testing"
	"time"

	"sentinel-nlmod/internal/command"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func attempt(action command.Action, group, target string, success bool) Entry {
	return Entry{
		Group:   group,
		GuildID: "g1",
		ActorID: "mod",
		Action:  action,
		Result:  command.TargetResult{Target: command.TargetRef{ID: target}, Success: success},
	}
}

func TestRingIsBounded(t *testing.T) {
	store := New(time.Minute, 3)
	clock := &fakeClock{now: time.Unix(0, 0)}
	store.WithClock(clock)

	for i := 0; i < 5; i++ {
		store.Record(attempt(command.ActionWarn, "", string(rune('a'+i)), true))
	}
	recent := store.Recent("g1", "mod")
	if len(recent) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(recent))
	}
	if recent[0].Result.Target.ID != "e" || recent[2].Result.Target.ID != "c" {
		t.Fatalf("expected newest first with oldest evicted, got %+v", recent)
	}
}

func TestRecentIsLazy(t *testing.T) {
	store := New(5*time.Minute, 10)
	clock := &fakeClock{now: time.Unix(0, 0)}
	store.WithClock(clock)

	store.Record(attempt(command.ActionMute, "c1", "1", true))
	clock.now = clock.now.Add(6 * time.Minute)
	store.Record(attempt(command.ActionKick, "c2", "2", true))

	if got := len(store.Recent("g1", "mod")); got != 1 {
		t.Fatalf("expected expired entry hidden, got %d", got)
	}
	if store.Size() != 2 {
		t.Fatalf("expired entry must stay until cleanup, size %d", store.Size())
	}
	if removed := store.Cleanup(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if store.Size() != 1 {
		t.Fatalf("expected 1 after cleanup, got %d", store.Size())
	}
}

func TestTakeReversibleGroup(t *testing.T) {
	store := New(5*time.Minute, 10)
	store.WithClock(&fakeClock{now: time.Unix(100, 0)})

	store.Record(attempt(command.ActionMute, "old", "9", true))
	store.Record(attempt(command.ActionBan, "batch", "1", true))
	store.Record(attempt(command.ActionBan, "batch", "2", false))
	store.Record(attempt(command.ActionBan, "batch", "3", true))
	store.Record(attempt(command.ActionWarn, "later", "4", true))

	taken, ok := store.TakeReversible("g1", "mod")
	if !ok {
		t.Fatalf("expected reversible entries")
	}
	if len(taken) != 2 {
		t.Fatalf("expected the two successful bans, got %+v", taken)
	}
	for _, entry := range taken {
		if entry.Group != "batch" {
			t.Fatalf("unexpected group %q", entry.Group)
		}
	}

	taken, ok = store.TakeReversible("g1", "mod")
	if !ok || len(taken) != 1 || taken[0].Group != "old" {
		t.Fatalf("expected the older mute next, got %+v", taken)
	}
	if _, ok := store.TakeReversible("g1", "mod"); ok {
		t.Fatalf("nothing left to undo")
	}
}

func TestTakeReversibleRespectsWindow(t *testing.T) {
	store := New(5*time.Minute, 10)
	clock := &fakeClock{now: time.Unix(0, 0)}
	store.WithClock(clock)
	store.Record(attempt(command.ActionBan, "c1", "1", true))

	clock.now = clock.now.Add(5*time.Minute + time.Second)
	if _, ok := store.TakeReversible("g1", "mod"); ok {
		t.Fatalf("entry outside the window must not be undone")
	}
}
