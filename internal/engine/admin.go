package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"sentinel-nlmod/internal/batch"
	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/modules/audit"
	"sentinel-nlmod/internal/modutil"
	"sentinel-nlmod/internal/reply"
	"sentinel-nlmod/internal/safety"
	"sentinel-nlmod/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	recentLimit  = 10
	statsHorizon = 24 * time.Hour
	eventAdmin   = "admin"
)

// authorize admits the guild owner and members holding Administrator or
// Manage Server.
func (e *Engine) authorize(ctx context.Context, guildID, userID string) (string, reply.Response, bool) {
	lang := e.language(ctx, guildID)
	actor, err := e.actor(ctx, guildID, userID)
	if err != nil {
		return lang, e.replies.Failure(lang, "lookup_failed"), false
	}
	if actor.IsOwner() || safety.HasPermission(actor.Member.Permissions, discordgo.PermissionManageServer) {
		return lang, reply.Response{}, true
	}
	return lang, e.replies.Failure(lang, "admin_forbidden"), false
}

func (e *Engine) adminLog(ctx context.Context, guildID, userID, details string) {
	if e.audit == nil {
		return
	}
	e.audit.Log(ctx, audit.LevelInfo, guildID, userID, eventAdmin, details)
}

// ListAdd puts userID on a protected, blacklist or whitelist list.
func (e *Engine) ListAdd(ctx context.Context, guildID, actorID, list, userID string) reply.Response {
	lang, denied, ok := e.authorize(ctx, guildID, actorID)
	if !ok {
		return denied
	}
	l := safety.List(list)
	if !l.Valid() {
		return e.replies.Failure(lang, "unknown_list", list)
	}
	if err := e.validator.ListAdd(ctx, l, guildID, userID, actorID); err != nil {
		e.logger.Warn("list add failed", zap.String("guild_id", guildID), zap.String("list", list), zap.Error(err))
		return e.replies.Failure(lang, "admin_failed", err.Error())
	}
	e.adminLog(ctx, guildID, actorID, fmt.Sprintf("%s add %s", list, userID))
	return e.replies.Success(lang, "admin_ok")
}

func (e *Engine) ListRemove(ctx context.Context, guildID, actorID, list, userID string) reply.Response {
	lang, denied, ok := e.authorize(ctx, guildID, actorID)
	if !ok {
		return denied
	}
	l := safety.List(list)
	if !l.Valid() {
		return e.replies.Failure(lang, "unknown_list", list)
	}
	if err := e.validator.ListRemove(ctx, l, guildID, userID); err != nil {
		e.logger.Warn("list remove failed", zap.String("guild_id", guildID), zap.String("list", list), zap.Error(err))
		return e.replies.Failure(lang, "admin_failed", err.Error())
	}
	e.adminLog(ctx, guildID, actorID, fmt.Sprintf("%s remove %s", list, userID))
	return e.replies.Success(lang, "admin_ok")
}

// Stats reports validator, queue and confirmation state plus the audited
// actions of the last day.
func (e *Engine) Stats(ctx context.Context, guildID, actorID string) reply.Response {
	lang, denied, ok := e.authorize(ctx, guildID, actorID)
	if !ok {
		return denied
	}

	safetyStats := e.validator.Stats(guildID)
	queue := e.queue.Stats()
	fields := []*discordgo.MessageEmbedField{
		{
			Name:   reply.T(lang, "stats_queue"),
			Value:  reply.T(lang, "stats_queue_value", queue.Queued, queue.Executing, queue.Completed, queue.Failed, queue.Cancelled),
			Inline: false,
		},
		{
			Name:   reply.T(lang, "stats_lists"),
			Value:  reply.T(lang, "stats_lists_value", safetyStats.Protected, safetyStats.Blacklisted, safetyStats.Whitelisted),
			Inline: false,
		},
		{
			Name:   reply.T(lang, "stats_pending"),
			Value:  fmt.Sprintf("%d", e.confirmations.Size()),
			Inline: true,
		},
		{
			Name:   reply.T(lang, "stats_denials"),
			Value:  formatDenials(safetyStats.Denials),
			Inline: true,
		},
	}

	if e.analytics != nil {
		report, err := e.analytics.Report(ctx, guildID, time.Now().Add(-statsHorizon))
		if err != nil {
			e.logger.Warn("analytics report failed", zap.String("guild_id", guildID), zap.Error(err))
		} else {
			value := reply.T(lang, "stats_actions_value", report.Total, report.Succeeded, report.Failed)
			for _, count := range report.ByAction {
				value += fmt.Sprintf("\n%s: %d/%d", count.Action, count.Succeeded, count.Succeeded+count.Failed)
			}
			fields = append([]*discordgo.MessageEmbedField{{Name: reply.T(lang, "stats_actions"), Value: modutil.Truncate(value, 1024)}}, fields...)
		}
	}
	return e.replies.Notice(reply.T(lang, "stats_title"), "", fields)
}

func formatDenials(denials map[safety.Check]int) string {
	if len(denials) == 0 {
		return "0"
	}
	checks := make([]string, 0, len(denials))
	for check := range denials {
		checks = append(checks, string(check))
	}
	sort.Strings(checks)
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		lines = append(lines, fmt.Sprintf("%s: %d", check, denials[safety.Check(check)]))
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) BatchStatus(ctx context.Context, guildID, actorID, batchID string) reply.Response {
	lang, denied, ok := e.authorize(ctx, guildID, actorID)
	if !ok {
		return denied
	}
	op, found := e.queue.Get(batchID)
	if !found || op.GuildID != guildID {
		return e.replies.Failure(lang, "batch_not_found", batchID)
	}
	return e.replies.Private(command.ModeCommand, reply.T(lang, "batch_status", op.ID, string(op.Status), op.Progress, op.Total))
}

// BatchCancel stops a queued or executing batch. Targets already attempted
// stay done.
func (e *Engine) BatchCancel(ctx context.Context, guildID, actorID, batchID string) reply.Response {
	lang, denied, ok := e.authorize(ctx, guildID, actorID)
	if !ok {
		return denied
	}
	if op, found := e.queue.Get(batchID); !found || op.GuildID != guildID {
		return e.replies.Failure(lang, "batch_not_found", batchID)
	}
	op, err := e.queue.Cancel(batchID)
	switch {
	case errors.Is(err, batch.ErrNotFound):
		return e.replies.Failure(lang, "batch_not_found", batchID)
	case errors.Is(err, batch.ErrFinished):
		return e.replies.Private(command.ModeCommand, reply.T(lang, "batch_status", op.ID, string(op.Status), op.Progress, op.Total))
	case err != nil:
		return e.replies.Failure(lang, "admin_failed", err.Error())
	}
	e.adminLog(ctx, guildID, actorID, "batch cancel "+batchID)
	return e.replies.Private(command.ModeCommand, reply.T(lang, "batch_cancelled", batchID))
}

func (e *Engine) ResetLimits(ctx context.Context, guildID, actorID, userID string) reply.Response {
	lang, denied, ok := e.authorize(ctx, guildID, actorID)
	if !ok {
		return denied
	}
	cleared := e.validator.ResetRateLimits(guildID, userID)
	e.adminLog(ctx, guildID, actorID, "reset limits "+userID)
	return e.replies.Success(lang, "limits_reset", cleared, "<@"+userID+">")
}

// RecentActions lists the latest audited attempts in the guild.
func (e *Engine) RecentActions(ctx context.Context, guildID, actorID string) reply.Response {
	lang, denied, ok := e.authorize(ctx, guildID, actorID)
	if !ok {
		return denied
	}
	if e.store == nil {
		return e.recentFromUndo(lang, guildID, actorID)
	}
	since := time.Now().Add(-statsHorizon)
	actions, err := e.store.ListModerationActions(ctx, guildID, since, recentLimit)
	if err != nil {
		e.logger.Warn("recent actions lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return e.replies.Failure(lang, "admin_failed", err.Error())
	}
	logs, err := e.store.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		e.logger.Warn("recent audit lookup failed", zap.String("guild_id", guildID), zap.Error(err))
	}
	admin := adminLines(logs)
	if len(actions) == 0 && len(admin) == 0 {
		return e.replies.Private(command.ModeCommand, reply.T(lang, "recent_none"))
	}
	lines := make([]string, 0, len(actions)+len(admin))
	for _, action := range actions {
		lines = append(lines, recentLine(action))
	}
	lines = append(lines, admin...)
	return e.replies.Notice(reply.T(lang, "recent_title"), modutil.Truncate(strings.Join(lines, "\n"), 4000), nil)
}

// adminLines renders the newest admin changes (list edits, settings,
// limit resets), logs being newest first.
func adminLines(logs []storage.AuditLog) []string {
	var lines []string
	for _, log := range logs {
		if log.Event != eventAdmin {
			continue
		}
		lines = append(lines, fmt.Sprintf("⚙️ <t:%d:R> <@%s> %s", log.CreatedAt.Unix(), log.UserID, modutil.Truncate(log.Details, 120)))
		if len(lines) == recentLimit {
			break
		}
	}
	return lines
}

func recentLine(action storage.ModerationAction) string {
	mark := "✅"
	if !action.Success {
		mark = "❌"
	}
	line := fmt.Sprintf("%s <t:%d:R> <@%s> %s <@%s>", mark, action.CreatedAt.Unix(), action.ActorID, action.Action, action.TargetID)
	if action.Error != "" {
		line += ": " + modutil.Truncate(action.Error, 80)
	}
	return line
}

func (e *Engine) recentFromUndo(lang, guildID, actorID string) reply.Response {
	entries := e.undo.Recent(guildID, actorID)
	if len(entries) == 0 {
		return e.replies.Private(command.ModeCommand, reply.T(lang, "recent_none"))
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, recentLine(storage.ModerationAction{
			ActorID:   entry.ActorID,
			Action:    entry.Action.String(),
			TargetID:  entry.Result.Target.ID,
			Success:   entry.Result.Success,
			Error:     entry.Result.Error,
			CreatedAt: entry.At,
		}))
	}
	return e.replies.Notice(reply.T(lang, "recent_title"), strings.Join(lines, "\n"), nil)
}

// UpdateSettings changes the guild's reply language and audit channel. Empty
// arguments keep the current value.
func (e *Engine) UpdateSettings(ctx context.Context, guildID, actorID, language, auditChannel string) reply.Response {
	lang, denied, ok := e.authorize(ctx, guildID, actorID)
	if !ok {
		return denied
	}
	if e.store == nil {
		return e.replies.Failure(lang, "admin_failed", "no storage")
	}
	current, err := e.store.GetGuildSettings(ctx, guildID, storage.GuildSettings{Language: e.settings.DefaultLanguage, RetentionDays: e.settings.RetentionDays})
	if err != nil {
		return e.replies.Failure(lang, "admin_failed", err.Error())
	}
	if language != "" {
		if !reply.Supported(language) {
			return e.replies.Failure(lang, "admin_failed", language)
		}
		current.Language = language
	}
	if auditChannel != "" {
		current.AuditChannel = auditChannel
	}
	if err := e.store.UpsertGuildSettings(ctx, current); err != nil {
		return e.replies.Failure(lang, "admin_failed", err.Error())
	}
	e.adminLog(ctx, guildID, actorID, fmt.Sprintf("settings language=%s audit_channel=%s", current.Language, current.AuditChannel))

	fields := []*discordgo.MessageEmbedField{
		{Name: "language", Value: current.Language, Inline: true},
		{Name: "audit_channel", Value: channelMention(current.AuditChannel), Inline: true},
	}
	return e.replies.Notice(reply.T(current.Language, "settings_title"), reply.T(current.Language, "admin_ok"), fields)
}

// AuditChannel returns the channel a guild mirrors audit records to.
func (e *Engine) AuditChannel(ctx context.Context, guildID string) string {
	if e.store == nil {
		return ""
	}
	settings, err := e.store.GetGuildSettings(ctx, guildID, storage.GuildSettings{})
	if err != nil {
		return ""
	}
	return settings.AuditChannel
}

func channelMention(id string) string {
	if id == "" {
		return "-"
	}
	return "<#" + id + ">"
}
