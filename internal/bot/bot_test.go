package bot

import (
	"encoding/json"
	"testing"
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/config"
	"sentinel-nlmod/internal/modules/audit"
	"sentinel-nlmod/internal/reply"
	"sentinel-nlmod/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmationGetsButtons(t *testing.T) {
	builder := reply.NewBuilder(reply.DefaultColors())
	cmd := command.ParsedCommand{Action: command.ActionBan, Targets: []command.TargetRef{{ID: "1"}}}
	resp := builder.Confirmation("vi", "abc", cmd, 30*time.Second)

	send := messageSend(resp)
	require.Len(t, send.Components, 1)
	row, ok := send.Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 2)

	confirm := row.Components[0].(discordgo.Button)
	cancel := row.Components[1].(discordgo.Button)
	assert.Equal(t, confirmPrefix+"abc", confirm.CustomID)
	assert.Equal(t, cancelPrefix+"abc", cancel.CustomID)
	assert.Equal(t, reply.T("vi", "confirm_button"), confirm.Label)
	require.Len(t, send.Embeds, 1)
}

func TestEditClearsButtons(t *testing.T) {
	resp := reply.Response{Kind: reply.KindText, Text: "done", UpdateKey: "confirm:abc"}
	edit := messageEdit(sentRef{channelID: "c", messageID: "m"}, resp)

	assert.Equal(t, "m", edit.ID)
	assert.Equal(t, "c", edit.Channel)
	require.NotNil(t, edit.Content)
	assert.Equal(t, "done", *edit.Content)
	assert.Empty(t, edit.Components)
	assert.Empty(t, edit.Embeds)
}

func TestResponseDataEphemeral(t *testing.T) {
	data := responseData(reply.Response{Kind: reply.KindText, Text: "no", Ephemeral: true})
	assert.Equal(t, discordgo.MessageFlagsEphemeral, data.Flags)
	assert.Equal(t, "no", data.Content)

	data = responseData(reply.Response{Kind: reply.KindText, Text: "yes"})
	assert.Zero(t, data.Flags)
}

func TestOptionMap(t *testing.T) {
	opts := optionMap([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "action", Type: discordgo.ApplicationCommandOptionString, Value: " mute "},
		{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: "42"},
		{Name: "count", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(20)},
	})
	assert.Equal(t, "mute", opts.str("action"))
	assert.Equal(t, "42", opts.user("user"))
	assert.Equal(t, int64(20), opts.integer("count"))
	assert.Empty(t, opts.str("missing"))
	assert.Zero(t, opts.integer("action"))
}

func TestMentionIDsSkipsNil(t *testing.T) {
	ids := mentionIDs([]*discordgo.User{{ID: "1"}, nil, {ID: "2"}})
	assert.Equal(t, []string{"1", "2"}, ids)
	assert.NotNil(t, mentionIDs(nil))
}

func TestAuditEmbedDecodesRecord(t *testing.T) {
	b := &Bot{cfg: config.DefaultConfig(), colors: reply.DefaultColors()}
	details, err := json.Marshal(audit.Record{GuildID: "g", ActorID: "mod", Action: "mute", TargetID: "2", Reason: "spam", Success: false, Error: "missing permission"})
	require.NoError(t, err)

	embed := b.buildAuditEmbed(storage.AuditLog{GuildID: "g", UserID: "mod", Level: audit.LevelWarn, Event: audit.EventModeration, Details: string(details)})
	assert.Equal(t, "moderation · mute", embed.Title)
	assert.Equal(t, reply.DefaultColors().Error, embed.Color)
	require.Len(t, embed.Fields, 4)
	assert.Equal(t, "<@2>", embed.Fields[1].Value)
	assert.Contains(t, embed.Fields[3].Value, "missing permission")

	plain := b.buildAuditEmbed(storage.AuditLog{Level: audit.LevelInfo, Event: "admin", Details: "protected add 2", UserID: "owner"})
	assert.Equal(t, "admin", plain.Title)
	assert.Equal(t, "protected add 2", plain.Description)
}

func TestCommandDefinitions(t *testing.T) {
	defs := commandDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, modCommand, defs[0].Name)
	assert.Len(t, defs[0].Options[0].Choices, len(command.Actions))
	assert.Equal(t, adminCommand, defs[1].Name)
	for _, sub := range defs[1].Options {
		assert.Equal(t, discordgo.ApplicationCommandOptionSubCommand, sub.Type, sub.Name)
	}
}
