package storage

import (
	"context"
	"time"
)

const (
	ListProtected = "protected"
	ListBlacklist = "blacklist"
	ListWhitelist = "whitelist"
)

// ListEntry is one member of a guild's protected, blacklist or whitelist set.
type ListEntry struct {
	GuildID   string
	List      string
	UserID    string
	AddedBy   string
	CreatedAt time.Time
}

func (s *Store) AddListEntry(ctx context.Context, entry ListEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_lists (guild_id, list, user_id, added_by, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.GuildID, entry.List, entry.UserID, entry.AddedBy, entry.CreatedAt.Unix())
	return err
}

func (s *Store) RemoveListEntry(ctx context.Context, guildID, list, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_lists WHERE guild_id = ? AND list = ? AND user_id = ?`, guildID, list, userID)
	return err
}

// ListEntries returns every entry of every list, for warming the in-memory sets.
func (s *Store) ListEntries(ctx context.Context) ([]ListEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, list, user_id, added_by, created_at
		FROM user_lists
		ORDER BY guild_id, list, user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ListEntry
	for rows.Next() {
		var entry ListEntry
		var created int64
		if err := rows.Scan(&entry.GuildID, &entry.List, &entry.UserID, &entry.AddedBy, &created); err != nil {
			return nil, err
		}
		entry.CreatedAt = time.Unix(created, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
