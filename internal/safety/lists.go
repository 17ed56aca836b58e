package safety

import (
	"context"
	"sync"
	"time"

	"sentinel-nlmod/internal/storage"
)

// GlobalGuild keys entries that apply to every guild (configured seeds).
const GlobalGuild = "*"

type List string

const (
	ListProtected List = storage.ListProtected
	ListBlacklist List = storage.ListBlacklist
	ListWhitelist List = storage.ListWhitelist
)

func (l List) Valid() bool {
	switch l {
	case ListProtected, ListBlacklist, ListWhitelist:
		return true
	default:
		return false
	}
}

// ListStore persists list membership. *storage.Store satisfies it.
type ListStore interface {
	AddListEntry(ctx context.Context, entry storage.ListEntry) error
	RemoveListEntry(ctx context.Context, guildID, list, userID string) error
	ListEntries(ctx context.Context) ([]storage.ListEntry, error)
}

// Lists holds the protected, blacklist and whitelist sets in memory and
// writes changes through to an optional store.
type Lists struct {
	mu    sync.RWMutex
	sets  map[string]map[string]struct{}
	store ListStore
}

func NewLists(store ListStore) *Lists {
	return &Lists{sets: make(map[string]map[string]struct{}), store: store}
}

// Seed adds guild-independent entries that are never persisted.
func (l *Lists) Seed(list List, userIDs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range userIDs {
		if id != "" {
			l.addLocked(list, GlobalGuild, id)
		}
	}
}

// Load warms the sets from the store.
func (l *Lists) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	entries, err := l.store.ListEntries(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range entries {
		if List(entry.List).Valid() {
			l.addLocked(List(entry.List), entry.GuildID, entry.UserID)
		}
	}
	return nil
}

func (l *Lists) Add(ctx context.Context, list List, guildID, userID, addedBy string) error {
	if l.store != nil {
		err := l.store.AddListEntry(ctx, storage.ListEntry{
			GuildID:   guildID,
			List:      string(list),
			UserID:    userID,
			AddedBy:   addedBy,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return err
		}
	}
	l.mu.Lock()
	l.addLocked(list, guildID, userID)
	l.mu.Unlock()
	return nil
}

func (l *Lists) Remove(ctx context.Context, list List, guildID, userID string) error {
	if l.store != nil {
		if err := l.store.RemoveListEntry(ctx, guildID, string(list), userID); err != nil {
			return err
		}
	}
	l.mu.Lock()
	delete(l.sets[setKey(list, guildID)], userID)
	l.mu.Unlock()
	return nil
}

func (l *Lists) Contains(list List, guildID, userID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.sets[setKey(list, guildID)][userID]; ok {
		return true
	}
	_, ok := l.sets[setKey(list, GlobalGuild)][userID]
	return ok
}

// Size counts a guild's entries plus the global ones.
func (l *Lists) Size(list List, guildID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sets[setKey(list, guildID)]) + len(l.sets[setKey(list, GlobalGuild)])
}

func (l *Lists) addLocked(list List, guildID, userID string) {
	k := setKey(list, guildID)
	set := l.sets[k]
	if set == nil {
		set = make(map[string]struct{})
		l.sets[k] = set
	}
	set[userID] = struct{}{}
}

func setKey(list List, guildID string) string {
	return string(list) + ":" + guildID
}
