package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/modutil"
	"sentinel-nlmod/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Discord API error codes the adapter maps onto the package errors.
const (
	codeUnknownMember      = 10007
	codeUnknownUser        = 10013
	codeUnknownBan         = 10026
	codeMissingPermissions = 50013
)

const bulkDeleteMaxAge = 14 * 24 * time.Hour

type DiscordOptions struct {
	CacheTTL     time.Duration
	WarnColor    int
	ForgiveAfter time.Duration
	DMWarn       bool
}

// Discord implements Platform on a discordgo session. Member and owner
// lookups are cached briefly; concurrent misses share one REST call.
type Discord struct {
	session *discordgo.Session
	store   *storage.Store
	logger  *zap.Logger
	opts    DiscordOptions
	cache   *ristretto.Cache
	group   singleflight.Group
}

func NewDiscord(session *discordgo.Session, store *storage.Store, logger *zap.Logger, opts DiscordOptions) (*Discord, error) {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100000,
		MaxCost:     10000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("member cache: %w", err)
	}
	return &Discord{session: session, store: store, logger: logger, opts: opts, cache: cache}, nil
}

func (d *Discord) GetMember(ctx context.Context, guildID, userID string) (Member, error) {
	cacheKey := "member:" + guildID + ":" + userID
	if cached, ok := d.cache.Get(cacheKey); ok {
		if member, ok := cached.(Member); ok {
			return member, nil
		}
	}

	value, err, _ := d.group.Do(cacheKey, func() (interface{}, error) {
		member, err := d.memberForUser(guildID, userID)
		if err != nil {
			return Member{}, err
		}
		guild, err := d.guild(guildID)
		if err != nil {
			return Member{}, err
		}
		resolved := resolveMember(guild, member)
		d.cache.SetWithTTL(cacheKey, resolved, 1, d.opts.CacheTTL)
		return resolved, nil
	})
	if err != nil {
		return Member{}, mapError(err)
	}
	return value.(Member), nil
}

func (d *Discord) BotMember(ctx context.Context, guildID string) (Member, error) {
	if d.session.State == nil || d.session.State.User == nil {
		return Member{}, ErrNotFound
	}
	return d.GetMember(ctx, guildID, d.session.State.User.ID)
}

func (d *Discord) GuildOwnerID(ctx context.Context, guildID string) (string, error) {
	guild, err := d.guild(guildID)
	if err != nil {
		return "", mapError(err)
	}
	return guild.OwnerID, nil
}

func (d *Discord) Ban(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	if err := d.session.GuildBanCreateWithReason(guildID, userID, auditReason(params), 0); err != nil {
		return "", mapError(err)
	}
	d.forget(guildID, userID)
	return "banned", nil
}

func (d *Discord) Kick(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	if err := d.session.GuildMemberDeleteWithReason(guildID, userID, auditReason(params)); err != nil {
		return "", mapError(err)
	}
	d.forget(guildID, userID)
	return "kicked", nil
}

func (d *Discord) Mute(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	minutes := modutil.DefaultMuteMinutes
	if params.Duration != nil && !params.Duration.Permanent && params.Duration.Minutes > 0 {
		minutes = params.Duration.Minutes
	}
	until := time.Now().Add(time.Duration(minutes) * time.Minute)
	if err := d.session.GuildMemberTimeout(guildID, userID, &until); err != nil {
		return "", mapError(err)
	}
	return fmt.Sprintf("muted until %s", until.UTC().Format(time.RFC3339)), nil
}

func (d *Discord) Unmute(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	if err := d.session.GuildMemberTimeout(guildID, userID, nil); err != nil {
		return "", mapError(err)
	}
	return "unmuted", nil
}

func (d *Discord) Unban(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	if err := d.session.GuildBanDelete(guildID, userID); err != nil {
		if errors.Is(mapError(err), ErrNotFound) {
			return "", ErrNotApplied
		}
		return "", mapError(err)
	}
	return "unbanned", nil
}

func (d *Discord) Warn(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	if _, err := d.memberForUser(guildID, userID); err != nil {
		return "", mapError(err)
	}
	count := 0
	if d.store != nil {
		total, err := d.store.IncrementWarning(ctx, guildID, userID, params.Reason, d.opts.ForgiveAfter)
		if err != nil {
			return "", fmt.Errorf("record warning: %w", err)
		}
		count = total
	}
	if d.opts.DMWarn {
		d.dm(userID, warnEmbed(params, count, d.opts.WarnColor))
	}
	return fmt.Sprintf("warnings=%d", count), nil
}

// DeleteMessages removes the target's most recent messages in the invoking
// channel. Messages older than two weeks cannot be bulk deleted and are skipped.
func (d *Discord) DeleteMessages(ctx context.Context, guildID, userID string, params command.Params) (string, error) {
	if params.ChannelID == "" {
		return "", errors.New("platform: delete needs a channel")
	}
	limit := params.MessageCount
	if limit <= 0 {
		limit = modutil.DefaultMessageCount
	}
	messages, err := d.session.ChannelMessages(params.ChannelID, modutil.MaxMessageCount, "", "", "")
	if err != nil {
		return "", mapError(err)
	}

	cutoff := time.Now().Add(-bulkDeleteMaxAge)
	var ids []string
	for _, msg := range messages {
		if len(ids) >= limit {
			break
		}
		if msg.Author == nil || msg.Author.ID != userID {
			continue
		}
		if msg.Timestamp.Before(cutoff) {
			continue
		}
		ids = append(ids, msg.ID)
	}

	switch len(ids) {
	case 0:
	case 1:
		err = d.session.ChannelMessageDelete(params.ChannelID, ids[0])
	default:
		err = d.session.ChannelMessagesBulkDelete(params.ChannelID, ids)
	}
	if err != nil {
		return "", mapError(err)
	}
	return fmt.Sprintf("deleted %d", len(ids)), nil
}

func (d *Discord) memberForUser(guildID, userID string) (*discordgo.Member, error) {
	if d.session.State != nil {
		if member, err := d.session.State.Member(guildID, userID); err == nil && member != nil {
			return member, nil
		}
	}
	return d.session.GuildMember(guildID, userID)
}

func (d *Discord) guild(guildID string) (*discordgo.Guild, error) {
	if d.session.State != nil {
		if guild, err := d.session.State.Guild(guildID); err == nil && guild != nil {
			return guild, nil
		}
	}
	return d.session.Guild(guildID)
}

func (d *Discord) forget(guildID, userID string) {
	d.cache.Del("member:" + guildID + ":" + userID)
}

func (d *Discord) dm(userID string, embed *discordgo.MessageEmbed) {
	channel, err := d.session.UserChannelCreate(userID)
	if err != nil {
		d.logger.Debug("dm channel failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if _, err := d.session.ChannelMessageSendEmbed(channel.ID, embed); err != nil {
		d.logger.Debug("dm send failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// resolveMember folds role permissions and the highest role position into a
// Member. The guild owner holds every permission.
func resolveMember(guild *discordgo.Guild, member *discordgo.Member) Member {
	out := Member{}
	if member.User != nil {
		out.UserID = member.User.ID
		out.DisplayName = member.User.Username
		out.IsBot = member.User.Bot
	}
	if member.Nick != "" {
		out.DisplayName = member.Nick
	}

	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
		if role.ID == guild.ID {
			out.Permissions |= role.Permissions
		}
	}
	for _, roleID := range member.Roles {
		role := roleMap[roleID]
		if role == nil {
			continue
		}
		out.Permissions |= role.Permissions
		if role.Position > out.RolePosition {
			out.RolePosition = role.Position
		}
	}
	if out.UserID != "" && out.UserID == guild.OwnerID {
		out.Permissions |= discordgo.PermissionAdministrator
	}
	return out
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case codeUnknownMember, codeUnknownUser, codeUnknownBan:
				return fmt.Errorf("%w: %s", ErrNotFound, restErr.Message.Message)
			case codeMissingPermissions:
				return fmt.Errorf("%w: %s", ErrForbidden, restErr.Message.Message)
			}
		}
		if restErr.Response != nil {
			switch restErr.Response.StatusCode {
			case http.StatusNotFound:
				return fmt.Errorf("%w: %v", ErrNotFound, err)
			case http.StatusForbidden:
				return fmt.Errorf("%w: %v", ErrForbidden, err)
			}
		}
	}
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return ErrNotFound
	}
	return err
}

func auditReason(params command.Params) string {
	if params.Reason == "" {
		return "moderation command"
	}
	return modutil.Truncate(params.Reason, modutil.MaxReasonLength)
}

func warnEmbed(params command.Params, count int, color int) *discordgo.MessageEmbed {
	title := "You received a warning"
	reasonLabel := "Reason"
	countLabel := "Warnings"
	if params.Language == "vi" {
		title = "Bạn đã bị cảnh cáo"
		reasonLabel = "Lý do"
		countLabel = "Số lần cảnh cáo"
	}
	reason := params.Reason
	if reason == "" {
		reason = "-"
	}
	return &discordgo.MessageEmbed{
		Title: title,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: reasonLabel, Value: modutil.Truncate(reason, 1024)},
			{Name: countLabel, Value: fmt.Sprintf("%d", count), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
