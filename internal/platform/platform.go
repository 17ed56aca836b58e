// Package platform is the boundary to the chat service. The engine owns no
// platform state; everything goes through the Platform interface.
package platform

import (
	"context"
	"errors"

	"sentinel-nlmod/internal/command"
)

var (
	ErrNotFound       = errors.New("platform: member not found")
	ErrForbidden      = errors.New("platform: missing permission")
	ErrAlreadyApplied = errors.New("platform: already applied")
	ErrNotApplied     = errors.New("platform: nothing to revert")
	ErrTimeout        = errors.New("platform: call timed out")
)

// Member is the slice of a guild member the engine needs for validation.
type Member struct {
	UserID       string
	DisplayName  string
	RolePosition int
	Permissions  int64
	IsBot        bool
}

func (m Member) Ref() command.TargetRef {
	return command.TargetRef{
		ID:           m.UserID,
		DisplayName:  m.DisplayName,
		IsBot:        m.IsBot,
		RolePosition: m.RolePosition,
	}
}

type Platform interface {
	GetMember(ctx context.Context, guildID, userID string) (Member, error)
	BotMember(ctx context.Context, guildID string) (Member, error)
	GuildOwnerID(ctx context.Context, guildID string) (string, error)

	// Each action returns a short human-readable detail on success.
	Ban(ctx context.Context, guildID, userID string, params command.Params) (string, error)
	Kick(ctx context.Context, guildID, userID string, params command.Params) (string, error)
	Mute(ctx context.Context, guildID, userID string, params command.Params) (string, error)
	Warn(ctx context.Context, guildID, userID string, params command.Params) (string, error)
	DeleteMessages(ctx context.Context, guildID, userID string, params command.Params) (string, error)
	Unban(ctx context.Context, guildID, userID string, params command.Params) (string, error)
	Unmute(ctx context.Context, guildID, userID string, params command.Params) (string, error)
}

// Apply dispatches action to the matching Platform method.
func Apply(ctx context.Context, p Platform, action command.Action, guildID, userID string, params command.Params) (string, error) {
	switch action {
	case command.ActionBan:
		return p.Ban(ctx, guildID, userID, params)
	case command.ActionKick:
		return p.Kick(ctx, guildID, userID, params)
	case command.ActionMute:
		return p.Mute(ctx, guildID, userID, params)
	case command.ActionWarn:
		return p.Warn(ctx, guildID, userID, params)
	case command.ActionDeleteMessages:
		return p.DeleteMessages(ctx, guildID, userID, params)
	case command.ActionUnban:
		return p.Unban(ctx, guildID, userID, params)
	case command.ActionUnmute:
		return p.Unmute(ctx, guildID, userID, params)
	default:
		return "", errors.New("platform: unsupported action " + action.String())
	}
}
