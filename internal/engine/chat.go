package engine

import (
	"context"
	"strings"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/modutil"
	"sentinel-nlmod/internal/reply"

	"go.uber.org/zap"
)

const (
	chatSystemPrompt = "You are Sentinel, a friendly Discord moderation bot. Reply briefly in the user's language (Vietnamese or English). Never claim to have performed a moderation action."
	chatMaxInput     = 1500
	chatMaxReply     = 1900
)

// ChatReply answers a message that resolved to CHAT while mentioning the
// bot. Without a conversational model it returns the canned greeting.
func (e *Engine) ChatReply(ctx context.Context, msg Message) reply.Response {
	lang := e.language(ctx, msg.GuildID)
	if e.chat == nil || !e.settings.ChatEnabled {
		return e.replies.Text(command.ModeChat, reply.T(lang, "chat_unavailable"))
	}

	text := modutil.Truncate(strings.TrimSpace(msg.Text), chatMaxInput)
	answer, err := e.chat.Complete(ctx, chatSystemPrompt, text)
	answer = strings.TrimSpace(answer)
	if err != nil || answer == "" {
		if err != nil {
			e.logger.Debug("chat completion failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
		}
		return e.replies.Text(command.ModeChat, reply.T(lang, "chat_unavailable"))
	}
	return e.replies.Text(command.ModeChat, modutil.Truncate(answer, chatMaxReply))
}
