package bot

import (
	"sentinel-nlmod/internal/command"

	"github.com/bwmarrin/discordgo"
)

const (
	modCommand   = "mod"
	adminCommand = "modadmin"
)

func userOption(name, description, vi string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        name,
		Description: description,
		DescriptionLocalizations: map[discordgo.Locale]string{
			discordgo.Vietnamese: vi,
			discordgo.EnglishUS:  description,
		},
		Required: required,
	}
}

func stringOption(name, description, vi string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		DescriptionLocalizations: map[discordgo.Locale]string{
			discordgo.Vietnamese: vi,
			discordgo.EnglishUS:  description,
		},
		Required: required,
	}
}

func subcommand(name, description, vi string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		DescriptionLocalizations: map[discordgo.Locale]string{
			discordgo.Vietnamese: vi,
			discordgo.EnglishUS:  description,
		},
		Options: options,
	}
}

func actionChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(command.Actions))
	for _, action := range command.Actions {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: string(action), Value: string(action)})
	}
	return choices
}

func listChoices() []*discordgo.ApplicationCommandOptionChoice {
	return []*discordgo.ApplicationCommandOptionChoice{
		{Name: "protected", Value: "protected"},
		{Name: "blacklist", Value: "blacklist"},
		{Name: "whitelist", Value: "whitelist"},
	}
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	action := stringOption("action", "Moderation action", "Hành động kiểm duyệt", true)
	action.Choices = actionChoices()

	list := stringOption("list", "Which list", "Danh sách", true)
	list.Choices = listChoices()

	language := stringOption("language", "Reply language", "Ngôn ngữ phản hồi", false)
	language.Choices = []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Tiếng Việt", Value: "vi"},
		{Name: "English", Value: "en"},
	}

	count := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "count",
		Description: "Messages to delete (deleteMessages)",
		DescriptionLocalizations: map[discordgo.Locale]string{
			discordgo.Vietnamese: "Số tin nhắn cần xóa",
			discordgo.EnglishUS:  "Messages to delete (deleteMessages)",
		},
		Required: false,
	}

	auditChannel := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionChannel,
		Name:        "audit_channel",
		Description: "Channel for audit records",
		DescriptionLocalizations: map[discordgo.Locale]string{
			discordgo.Vietnamese: "Kênh nhận nhật ký kiểm duyệt",
			discordgo.EnglishUS:  "Channel for audit records",
		},
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        modCommand,
			Description: "Run a moderation action",
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.Vietnamese: "Thực hiện hành động kiểm duyệt",
				discordgo.EnglishUS:  "Run a moderation action",
			},
			Options: []*discordgo.ApplicationCommandOption{
				action,
				userOption("user", "Target member", "Thành viên", true),
				userOption("user2", "Second target", "Thành viên thứ hai", false),
				userOption("user3", "Third target", "Thành viên thứ ba", false),
				stringOption("reason", "Reason", "Lý do", false),
				stringOption("duration", "Duration, e.g. 10m, 2h, 1d, permanent", "Thời lượng, ví dụ 10 phút, 2 giờ, vĩnh viễn", false),
				count,
			},
		},
		{
			Name:        adminCommand,
			Description: "Moderation engine administration",
			DescriptionLocalizations: &map[discordgo.Locale]string{
				discordgo.Vietnamese: "Quản trị bộ máy kiểm duyệt",
				discordgo.EnglishUS:  "Moderation engine administration",
			},
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("list-add", "Add a member to a list", "Thêm thành viên vào danh sách", list, userOption("user", "Member", "Thành viên", true)),
				subcommand("list-remove", "Remove a member from a list", "Xóa thành viên khỏi danh sách", list, userOption("user", "Member", "Thành viên", true)),
				subcommand("stats", "Show moderation statistics", "Xem thống kê kiểm duyệt"),
				subcommand("batch-status", "Show a batch", "Xem trạng thái lô", stringOption("id", "Batch id", "Mã lô", true)),
				subcommand("batch-cancel", "Cancel a batch", "Hủy lô", stringOption("id", "Batch id", "Mã lô", true)),
				subcommand("reset-limits", "Reset a moderator's rate limits", "Đặt lại giới hạn của người kiểm duyệt", userOption("user", "Moderator", "Người kiểm duyệt", true)),
				subcommand("recent", "Show recent actions", "Xem hành động gần đây"),
				subcommand("undo", "Undo your last ban or mute", "Hoàn tác lệnh cấm hoặc câm gần nhất"),
				subcommand("settings", "Change language or audit channel", "Đổi ngôn ngữ hoặc kênh nhật ký", language, auditChannel),
			},
		},
	}
}

func (b *Bot) registerCommands() error {
	commands := commandDefinitions()

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}
	return nil
}
