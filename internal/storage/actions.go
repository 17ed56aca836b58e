package storage

import (
	"context"
	"time"
)

// ModerationAction is one executed (or attempted) action against one target.
type ModerationAction struct {
	ID         int64
	GuildID    string
	ActorID    string
	Action     string
	TargetID   string
	Reason     string
	Success    bool
	DurationMs int64
	Error      string
	BatchID    string
	CreatedAt  time.Time
}

func (s *Store) AddModerationAction(ctx context.Context, action ModerationAction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_actions (guild_id, actor_id, action, target_id, reason, success, duration_ms, error, batch_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		action.GuildID,
		action.ActorID,
		action.Action,
		action.TargetID,
		action.Reason,
		boolToInt(action.Success),
		action.DurationMs,
		action.Error,
		action.BatchID,
		action.CreatedAt.Unix(),
	)
	return err
}

func (s *Store) ListModerationActions(ctx context.Context, guildID string, since time.Time, limit int) ([]ModerationAction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, actor_id, action, target_id, reason, success, duration_ms, error, batch_id, created_at
		FROM moderation_actions
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, guildID, since.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []ModerationAction
	for rows.Next() {
		var action ModerationAction
		var success int
		var created int64
		if err := rows.Scan(
			&action.ID,
			&action.GuildID,
			&action.ActorID,
			&action.Action,
			&action.TargetID,
			&action.Reason,
			&success,
			&action.DurationMs,
			&action.Error,
			&action.BatchID,
			&created,
		); err != nil {
			return nil, err
		}
		action.Success = success == 1
		action.CreatedAt = time.Unix(created, 0)
		actions = append(actions, action)
	}
	return actions, rows.Err()
}
