package bot

import (
	"context"
	"strings"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/engine"
	"sentinel-nlmod/internal/reply"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	confirmPrefix = "nlmod:confirm:"
	cancelPrefix  = "nlmod:cancel:"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		if interaction.GuildID == "" {
			b.respond(session, interaction, reply.Response{Kind: reply.KindText, Text: "Guild only.", Ephemeral: true})
			return
		}
		data := interaction.ApplicationCommandData()
		switch data.Name {
		case modCommand:
			b.handleMod(ctx, session, interaction, data.Options)
		case adminCommand:
			b.handleAdmin(ctx, session, interaction, data.Options)
		}
	case discordgo.InteractionMessageComponent:
		b.handleButton(ctx, session, interaction)
	}
}

func (b *Bot) handleMod(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	action, _ := command.ParseAction(opts.str("action"))

	var users []string
	for _, name := range []string{"user", "user2", "user3"} {
		if id := opts.user(name); id != "" {
			users = append(users, id)
		}
	}

	resp := b.engine.HandleSlash(ctx, engine.Slash{
		GuildID:      interaction.GuildID,
		ChannelID:    interaction.ChannelID,
		ActorID:      interactionUser(interaction),
		Action:       action,
		UserIDs:      users,
		Reason:       opts.str("reason"),
		Duration:     opts.str("duration"),
		MessageCount: int(opts.integer("count")),
	})
	b.respond(session, interaction, resp)
}

func (b *Bot) handleAdmin(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	sub := options[0]
	opts := optionMap(sub.Options)
	guildID := interaction.GuildID
	actorID := interactionUser(interaction)

	var resp reply.Response
	switch sub.Name {
	case "list-add":
		resp = b.engine.ListAdd(ctx, guildID, actorID, opts.str("list"), opts.user("user"))
	case "list-remove":
		resp = b.engine.ListRemove(ctx, guildID, actorID, opts.str("list"), opts.user("user"))
	case "stats":
		resp = b.engine.Stats(ctx, guildID, actorID)
	case "batch-status":
		resp = b.engine.BatchStatus(ctx, guildID, actorID, opts.str("id"))
	case "batch-cancel":
		resp = b.engine.BatchCancel(ctx, guildID, actorID, opts.str("id"))
	case "reset-limits":
		resp = b.engine.ResetLimits(ctx, guildID, actorID, opts.user("user"))
	case "recent":
		resp = b.engine.RecentActions(ctx, guildID, actorID)
	case "undo":
		resp = b.engine.UndoLast(ctx, guildID, interaction.ChannelID, actorID)
	case "settings":
		resp = b.engine.UpdateSettings(ctx, guildID, actorID, opts.str("language"), opts.channel("audit_channel"))
	default:
		b.logger.Debug("unknown admin subcommand", zap.String("name", sub.Name))
		return
	}
	b.respond(session, interaction, resp)
}

// handleButton answers the confirm and cancel buttons of a confirmation
// prompt. The prompt is updated in place unless the presser is not allowed
// to answer it.
func (b *Bot) handleButton(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	customID := interaction.MessageComponentData().CustomID
	userID := interactionUser(interaction)

	var resp reply.Response
	switch {
	case strings.HasPrefix(customID, confirmPrefix):
		resp = b.engine.Confirm(ctx, strings.TrimPrefix(customID, confirmPrefix), userID)
	case strings.HasPrefix(customID, cancelPrefix):
		resp = b.engine.CancelConfirmation(ctx, strings.TrimPrefix(customID, cancelPrefix), userID)
	default:
		return
	}

	if resp.Ephemeral {
		b.respond(session, interaction, resp)
		return
	}
	if interaction.Message != nil && resp.UpdateKey != "" {
		b.sent.Add(resp.UpdateKey, sentRef{channelID: interaction.ChannelID, messageID: interaction.Message.ID})
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: responseData(resp),
	})
	if err != nil {
		b.logger.Warn("interaction update failed", zap.Error(err))
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, resp reply.Response) {
	if resp.Empty() {
		resp = reply.Response{Kind: reply.KindText, Text: "-", Ephemeral: true}
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: responseData(resp),
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
		return
	}
	if resp.UpdateKey == "" || resp.Ephemeral {
		return
	}
	msg, err := session.InteractionResponse(interaction.Interaction)
	if err == nil && msg != nil {
		b.sent.Add(resp.UpdateKey, sentRef{channelID: interaction.ChannelID, messageID: msg.ID})
	}
}

func responseData(resp reply.Response) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:         resp.Text,
		Components:      components(resp),
		Embeds:          []*discordgo.MessageEmbed{},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if resp.Embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{resp.Embed}
	}
	if resp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

func interactionUser(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

type optionSet map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(list []*discordgo.ApplicationCommandInteractionDataOption) optionSet {
	out := make(optionSet, len(list))
	for _, opt := range list {
		out[opt.Name] = opt
	}
	return out
}

func (o optionSet) str(name string) string {
	if opt, ok := o[name]; ok {
		if value, ok := opt.Value.(string); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (o optionSet) integer(name string) int64 {
	if opt, ok := o[name]; ok {
		if value, ok := opt.Value.(float64); ok {
			return int64(value)
		}
	}
	return 0
}

// user and channel options carry the snowflake as their string value.
func (o optionSet) user(name string) string {
	return o.str(name)
}

func (o optionSet) channel(name string) string {
	return o.str(name)
}
