package modutil

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"sentinel-nlmod/internal/command"
)

var actionLabels = map[string]map[command.Action]string{
	"vi": {
		command.ActionBan:            "Cấm",
		command.ActionKick:           "Đuổi",
		command.ActionMute:           "Câm",
		command.ActionWarn:           "Cảnh cáo",
		command.ActionDeleteMessages: "Xóa tin nhắn",
		command.ActionUnban:          "Gỡ cấm",
		command.ActionUnmute:         "Gỡ câm",
	},
	"en": {
		command.ActionBan:            "Ban",
		command.ActionKick:           "Kick",
		command.ActionMute:           "Mute",
		command.ActionWarn:           "Warn",
		command.ActionDeleteMessages: "Delete messages",
		command.ActionUnban:          "Unban",
		command.ActionUnmute:         "Unmute",
	},
}

func ActionLabel(lang string, action command.Action) string {
	labels, ok := actionLabels[lang]
	if !ok {
		labels = actionLabels["en"]
	}
	if label, ok := labels[action]; ok {
		return label
	}
	return action.String()
}

// FormatDuration renders d in lang ("vi" or "en"), largest units first.
func FormatDuration(lang string, d *command.Duration) string {
	if d == nil {
		return "-"
	}
	if d.Permanent {
		if lang == "vi" {
			return "vĩnh viễn"
		}
		return "permanent"
	}
	if d.Minutes == 0 {
		if lang == "vi" {
			return "0 phút"
		}
		return "0 minutes"
	}

	type unit struct {
		minutes int
		vi      string
		en      string
	}
	units := []unit{
		{MinutesPerWeek, "tuần", "week"},
		{MinutesPerDay, "ngày", "day"},
		{MinutesPerHour, "giờ", "hour"},
		{1, "phút", "minute"},
	}

	remaining := d.Minutes
	var parts []string
	for _, u := range units {
		if remaining < u.minutes {
			continue
		}
		n := remaining / u.minutes
		remaining %= u.minutes
		if lang == "vi" {
			parts = append(parts, fmt.Sprintf("%d %s", n, u.vi))
			continue
		}
		label := u.en
		if n != 1 {
			label += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, label))
	}
	return strings.Join(parts, " ")
}

// Truncate cuts s to at most limit runes, marking the cut with "…".
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}
