package bot

import (
	"context"
	"fmt"
	"time"

	"sentinel-nlmod/internal/config"
	"sentinel-nlmod/internal/engine"
	"sentinel-nlmod/internal/modules/audit"
	"sentinel-nlmod/internal/modutil"
	"sentinel-nlmod/internal/reply"
	"sentinel-nlmod/internal/storage"

	"github.com/bwmarrin/discordgo"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	handlerTimeout = 30 * time.Second
	sentCacheSize  = 2048
)

// sentRef locates a message the bot posted for an update key.
type sentRef struct {
	channelID string
	messageID string
}

type Bot struct {
	cfg     config.Config
	logger  *zap.Logger
	session *discordgo.Session
	engine  *engine.Engine
	audit   *audit.Logger
	colors  reply.Colors
	sent    *lru.Cache[string, sentRef]
}

// NewSession opens nothing; it only prepares the gateway session with the
// intents the moderation engine needs.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent
	return session, nil
}

func New(cfg config.Config, logger *zap.Logger, session *discordgo.Session, eng *engine.Engine, auditLogger *audit.Logger) (*Bot, error) {
	sent, err := lru.New[string, sentRef](sentCacheSize)
	if err != nil {
		return nil, err
	}
	colors := cfg.Notifications.EmbedColors
	b := &Bot{
		cfg:     cfg,
		logger:  logger,
		session: session,
		engine:  eng,
		audit:   auditLogger,
		colors:  reply.Colors{Action: colors.Action, Warning: colors.Warning, Error: colors.Error},
		sent:    sent,
	}
	eng.SetNotifier(b)
	if b.audit != nil {
		b.audit.SetNotifier(func(ctx context.Context, entry storage.AuditLog) {
			if !b.cfg.Notifications.AuditToChannel {
				return
			}
			b.notifyAudit(ctx, entry)
		})
	}
	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	in := engine.Message{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		AuthorID:  msg.Author.ID,
		Text:      msg.Content,
		Users:     mentionIDs(msg.Mentions),
		Roles:     append([]string{}, msg.MentionRoles...),
	}
	resp := b.engine.HandleMessage(ctx, in)
	if resp.Empty() && b.mentionsBot(session, msg.Mentions) {
		resp = b.engine.ChatReply(ctx, in)
	}
	b.render(msg.ChannelID, msg.ID, resp)
}

func (b *Bot) mentionsBot(session *discordgo.Session, users []*discordgo.User) bool {
	if session.State == nil || session.State.User == nil {
		return false
	}
	for _, user := range users {
		if user != nil && user.ID == session.State.User.ID {
			return true
		}
	}
	return false
}

func mentionIDs(users []*discordgo.User) []string {
	ids := make([]string, 0, len(users))
	for _, user := range users {
		if user != nil {
			ids = append(ids, user.ID)
		}
	}
	return ids
}

// Send implements engine.Notifier for batch progress and expiry notices.
func (b *Bot) Send(_ context.Context, channelID string, resp reply.Response) {
	b.render(channelID, "", resp)
}

// render posts resp in channelID, replying to replyTo when set. A response
// whose update key matches an earlier message edits that message instead.
func (b *Bot) render(channelID, replyTo string, resp reply.Response) {
	if resp.Empty() || channelID == "" {
		return
	}

	if resp.UpdateKey != "" {
		if ref, ok := b.sent.Get(resp.UpdateKey); ok {
			edit := messageEdit(ref, resp)
			if _, err := b.session.ChannelMessageEditComplex(edit); err == nil {
				return
			}
			b.sent.Remove(resp.UpdateKey)
		}
	}

	send := messageSend(resp)
	if replyTo != "" {
		send.Reference = &discordgo.MessageReference{MessageID: replyTo, ChannelID: channelID}
	}
	msg, err := b.session.ChannelMessageSendComplex(channelID, send)
	if err != nil {
		b.logger.Warn("send reply failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	if resp.UpdateKey != "" && msg != nil {
		b.sent.Add(resp.UpdateKey, sentRef{channelID: channelID, messageID: msg.ID})
	}
}

func messageSend(resp reply.Response) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content:         resp.Text,
		Components:      components(resp),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if resp.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{resp.Embed}
	}
	return send
}

func messageEdit(ref sentRef, resp reply.Response) *discordgo.MessageEdit {
	content := resp.Text
	edit := &discordgo.MessageEdit{
		ID:         ref.messageID,
		Channel:    ref.channelID,
		Content:    &content,
		Components: components(resp),
		Embeds:     []*discordgo.MessageEmbed{},
	}
	if resp.Embed != nil {
		edit.Embeds = []*discordgo.MessageEmbed{resp.Embed}
	}
	return edit
}

// components adds the confirm and cancel buttons to confirmation prompts.
// Every other response clears them.
func components(resp reply.Response) []discordgo.MessageComponent {
	if resp.Kind != reply.KindConfirmation || resp.ConfirmationID == "" {
		return []discordgo.MessageComponent{}
	}
	lang := resp.Language
	if !reply.Supported(lang) {
		lang = "en"
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    reply.T(lang, "confirm_button"),
					Style:    discordgo.DangerButton,
					CustomID: confirmPrefix + resp.ConfirmationID,
				},
				discordgo.Button{
					Label:    reply.T(lang, "cancel_button"),
					Style:    discordgo.SecondaryButton,
					CustomID: cancelPrefix + resp.ConfirmationID,
				},
			},
		},
	}
}

func (b *Bot) notifyAudit(ctx context.Context, entry storage.AuditLog) {
	channelID := b.engine.AuditChannel(ctx, entry.GuildID)
	if channelID == "" {
		channelID = b.cfg.Notifications.AuditChannelID
	}
	if channelID == "" {
		return
	}
	if _, err := b.session.ChannelMessageSendEmbed(channelID, b.buildAuditEmbed(entry)); err != nil {
		b.logger.Debug("audit notify failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (b *Bot) buildAuditEmbed(entry storage.AuditLog) *discordgo.MessageEmbed {
	color := b.colors.Action
	if entry.Level != audit.LevelInfo {
		color = b.colors.Error
	}
	if entry.Event != audit.EventModeration {
		fields := []*discordgo.MessageEmbedField{{Name: "actor", Value: userMention(entry.UserID), Inline: true}}
		return b.commandEmbed(entry.Event, modutil.Truncate(entry.Details, 2000), color, fields)
	}

	record, err := audit.DecodeRecord(entry.Details)
	if err != nil {
		return b.commandEmbed(entry.Event, modutil.Truncate(entry.Details, 2000), color, nil)
	}
	result := "✅"
	if !record.Success {
		result = "❌ " + modutil.Truncate(record.Error, 900)
	}
	reason := record.Reason
	if reason == "" {
		reason = "-"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "actor", Value: userMention(record.ActorID), Inline: true},
		{Name: "target", Value: userMention(record.TargetID), Inline: true},
		{Name: "reason", Value: modutil.Truncate(reason, 1024), Inline: false},
		{Name: "result", Value: result, Inline: false},
	}
	if record.BatchID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "batch", Value: record.BatchID, Inline: true})
	}
	return b.commandEmbed(fmt.Sprintf("%s · %s", entry.Event, record.Action), "", color, fields)
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func userMention(id string) string {
	if id == "" {
		return "-"
	}
	return "<@" + id + ">"
}
