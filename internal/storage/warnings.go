package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type UserWarning struct {
	GuildID    string
	UserID     string
	CountTotal int
	LastReason string
	LastAt     time.Time
	ResetAt    *time.Time
}

func (s *Store) GetWarning(ctx context.Context, guildID, userID string) (UserWarning, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, count_total, last_reason, last_at, reset_at
		FROM user_warnings
		WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)

	var warning UserWarning
	var lastAt int64
	var resetAt sql.NullInt64
	err := row.Scan(&warning.GuildID, &warning.UserID, &warning.CountTotal, &warning.LastReason, &lastAt, &resetAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserWarning{GuildID: guildID, UserID: userID}, nil
		}
		return UserWarning{}, err
	}
	warning.LastAt = time.Unix(lastAt, 0)
	if resetAt.Valid {
		value := time.Unix(resetAt.Int64, 0)
		warning.ResetAt = &value
		if !time.Now().Before(value) {
			warning.CountTotal = 0
		}
	}
	return warning, nil
}

// IncrementWarning bumps the member's warning count and returns the new
// total. Counts older than forgiveAfter restart from zero; forgiveAfter <= 0
// keeps them forever.
func (s *Store) IncrementWarning(ctx context.Context, guildID, userID, reason string, forgiveAfter time.Duration) (int, error) {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var count int
	var resetAt sql.NullInt64
	row := tx.QueryRowContext(ctx, `
		SELECT count_total, reset_at
		FROM user_warnings
		WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)
	scanErr := row.Scan(&count, &resetAt)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return 0, err
	}
	if scanErr == nil && resetAt.Valid && now.Unix() >= resetAt.Int64 {
		count = 0
	}

	count++
	var nextReset any
	if forgiveAfter > 0 {
		nextReset = now.Add(forgiveAfter).Unix()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_warnings (guild_id, user_id, count_total, last_reason, last_at, reset_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			count_total = excluded.count_total,
			last_reason = excluded.last_reason,
			last_at = excluded.last_at,
			reset_at = excluded.reset_at
	`, guildID, userID, count, reason, now.Unix(), nextReset)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
