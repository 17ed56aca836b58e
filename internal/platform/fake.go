package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel-nlmod/internal/command"
)

// Call is one action recorded by Fake.
type Call struct {
	Action  command.Action
	GuildID string
	UserID  string
	Params  command.Params
}

// Fake is an in-memory guild used by tests and local dry runs.
type Fake struct {
	mu       sync.Mutex
	owners   map[string]string
	bots     map[string]Member
	members  map[string]map[string]Member
	banned   map[string]bool
	muted    map[string]time.Duration
	warnings map[string]int
	messages map[string]int
	failures map[string]error
	calls    []Call
	delay    time.Duration
}

func NewFake() *Fake {
	return &Fake{
		owners:   make(map[string]string),
		bots:     make(map[string]Member),
		members:  make(map[string]map[string]Member),
		banned:   make(map[string]bool),
		muted:    make(map[string]time.Duration),
		warnings: make(map[string]int),
		messages: make(map[string]int),
		failures: make(map[string]error),
	}
}

func (f *Fake) SetOwner(guildID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners[guildID] = userID
}

func (f *Fake) SetBot(guildID string, member Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member.IsBot = true
	f.bots[guildID] = member
	f.addLocked(guildID, member)
}

func (f *Fake) AddMember(guildID string, member Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addLocked(guildID, member)
}

func (f *Fake) addLocked(guildID string, member Member) {
	if f.members[guildID] == nil {
		f.members[guildID] = make(map[string]Member)
	}
	f.members[guildID][member.UserID] = member
}

// SetMessages sets how many recent messages userID has in the guild.
func (f *Fake) SetMessages(guildID, userID string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[key(guildID, userID)] = count
}

// FailOn makes every action of the given kind against userID return err.
func (f *Fake) FailOn(action command.Action, userID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[string(action)+":"+userID] = err
}

// SetDelay makes every action block for d, or until ctx is done.
func (f *Fake) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) Banned(guildID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.banned[key(guildID, userID)]
}

func (f *Fake) Muted(guildID, userID string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.muted[key(guildID, userID)]
	return d, ok
}

func (f *Fake) Warnings(guildID, userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.warnings[key(guildID, userID)]
}

func (f *Fake) IsMember(guildID, userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.members[guildID][userID]
	return ok
}

func (f *Fake) GetMember(_ context.Context, guildID, userID string) (Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.members[guildID][userID]
	if !ok {
		return Member{}, ErrNotFound
	}
	return member, nil
}

func (f *Fake) BotMember(_ context.Context, guildID string) (Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.bots[guildID]
	if !ok {
		return Member{}, ErrNotFound
	}
	return member, nil
}

func (f *Fake) GuildOwnerID(_ context.Context, guildID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[guildID]
	if !ok {
		return "", ErrNotFound
	}
	return owner, nil
}

func (f *Fake) Ban(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	return f.apply(ctx, command.ActionBan, guildID, userID, params, func(k string) (string, error) {
		if f.banned[k] {
			return "", ErrAlreadyApplied
		}
		f.banned[k] = true
		delete(f.members[guildID], userID)
		return "banned", nil
	})
}

func (f *Fake) Kick(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	return f.apply(ctx, command.ActionKick, guildID, userID, params, func(string) (string, error) {
		if _, ok := f.members[guildID][userID]; !ok {
			return "", ErrNotFound
		}
		delete(f.members[guildID], userID)
		return "kicked", nil
	})
}

func (f *Fake) Mute(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	return f.apply(ctx, command.ActionMute, guildID, userID, params, func(k string) (string, error) {
		if _, ok := f.members[guildID][userID]; !ok {
			return "", ErrNotFound
		}
		d := time.Duration(0)
		if params.Duration != nil {
			d = params.Duration.Std()
		}
		f.muted[k] = d
		return fmt.Sprintf("muted for %s", d), nil
	})
}

func (f *Fake) Warn(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	return f.apply(ctx, command.ActionWarn, guildID, userID, params, func(k string) (string, error) {
		if _, ok := f.members[guildID][userID]; !ok {
			return "", ErrNotFound
		}
		f.warnings[k]++
		return fmt.Sprintf("warnings=%d", f.warnings[k]), nil
	})
}

func (f *Fake) DeleteMessages(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	return f.apply(ctx, command.ActionDeleteMessages, guildID, userID, params, func(k string) (string, error) {
		deleted := params.MessageCount
		if deleted > f.messages[k] {
			deleted = f.messages[k]
		}
		f.messages[k] -= deleted
		return fmt.Sprintf("deleted %d", deleted), nil
	})
}

func (f *Fake) Unban(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	return f.apply(ctx, command.ActionUnban, guildID, userID, params, func(k string) (string, error) {
		if !f.banned[k] {
			return "", ErrNotApplied
		}
		delete(f.banned, k)
		return "unbanned", nil
	})
}

func (f *Fake) Unmute(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	return f.apply(ctx, command.ActionUnmute, guildID, userID, params, func(k string) (string, error) {
		if _, ok := f.muted[k]; !ok {
			return "", ErrNotApplied
		}
		delete(f.muted, k)
		return "unmuted", nil
	})
}

func (f *Fake) apply(ctx context.Context, action command.Action, guildID, userID string, params command.Params, fn func(k string) (string, error)) (string, error) {
	f.mu.Lock()
	delay := f.delay
	f.calls = append(f.calls, Call{Action: action, GuildID: guildID, UserID: userID, Params: params})
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[string(action)+":"+userID]; ok {
		return "", err
	}
	return fn(key(guildID, userID))
}

func key(guildID, userID string) string {
	return guildID + ":" + userID
}
