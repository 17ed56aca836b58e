package modutil

import (
	"errors"
	"fmt"
	"testing"

	"sentinel-nlmod/internal/command"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDurationMinutes(t *testing.T) {
	for _, n := range []int{1, 5, 10, 45, 90, 1440} {
		for _, unit := range []string{"phút", "minute", "minutes", "phut"} {
			phrase := fmt.Sprintf("%d %s", n, unit)
			d, ok := ParseDuration(phrase)
			require.True(t, ok, phrase)
			assert.False(t, d.Permanent, phrase)
			assert.Equal(t, n, d.Minutes, phrase)
		}
	}
}

func TestParseDurationUnits(t *testing.T) {
	cases := map[string]int{
		"2 hours":        120,
		"3 giờ":          180,
		"1 tiếng":        60,
		"2 ngày":         2880,
		"1 tuần":         10080,
		"2 tháng":        86400,
		"1 month":        43200,
		"3 months":       129600,
		"30s":            1,
		"90 giây":        2,
		"câm nó 15p":     15,
		"mute @x for 2h": 120,
	}
	for phrase, want := range cases {
		d, ok := ParseDuration(phrase)
		require.True(t, ok, phrase)
		assert.Equal(t, want, d.Minutes, phrase)
	}
}

func TestParseDurationPermanent(t *testing.T) {
	for _, phrase := range []string{"vĩnh viễn", "permanent", "ban nó vĩnh viễn", "Permanently"} {
		d, ok := ParseDuration(phrase)
		require.True(t, ok, phrase)
		assert.True(t, d.Permanent, phrase)
	}
}

func TestParseDurationNone(t *testing.T) {
	for _, phrase := range []string{"ban <@1> vì spam", "mute him", "xin chào"} {
		_, ok := ParseDuration(phrase)
		assert.False(t, ok, phrase)
	}
}

func TestValidateDuration(t *testing.T) {
	require.NoError(t, ValidateDuration(command.ActionMute, command.Minutes(MaxMuteMinutes, "")))
	assert.True(t, errors.Is(ValidateDuration(command.ActionMute, command.Minutes(MaxMuteMinutes+1, "")), ErrDurationTooLong))
	assert.True(t, errors.Is(ValidateDuration(command.ActionMute, command.Permanent("")), ErrPermanentNotAllowed))
	assert.True(t, errors.Is(ValidateDuration(command.ActionMute, nil), ErrDurationRequired))

	require.NoError(t, ValidateDuration(command.ActionBan, command.Permanent("")))
	require.NoError(t, ValidateDuration(command.ActionBan, nil))
	assert.True(t, errors.Is(ValidateDuration(command.ActionBan, command.Minutes(60, "")), ErrPermanentOnly))

	for _, action := range []command.Action{command.ActionKick, command.ActionWarn, command.ActionDeleteMessages} {
		require.NoError(t, ValidateDuration(action, nil))
		assert.True(t, errors.Is(ValidateDuration(action, command.Minutes(5, "")), ErrDurationNotAllowed))
	}
}

func TestFindActionPrefersReverseForms(t *testing.T) {
	cases := map[string]command.Action{
		"ban <@1> vì spam":          command.ActionBan,
		"câm <@1> 10 phút":          command.ActionMute,
		"cấm <@1>":                  command.ActionBan,
		"cấm chat <@1> 5 phút":      command.ActionMute,
		"gỡ ban cho <@1>":           command.ActionUnban,
		"unban <@1>":                command.ActionUnban,
		"bỏ câm <@1>":               command.ActionUnmute,
		"please unmute <@1>":        command.ActionUnmute,
		"cảnh cáo <@1> lần cuối":    command.ActionWarn,
		"xóa 20 tin nhắn của <@1>":  command.ActionDeleteMessages,
		"kick <@1> and <@2> now":    command.ActionKick,
	}
	for text, want := range cases {
		match, ok := FindAction(text)
		require.True(t, ok, text)
		assert.Equal(t, want, match.Action, text)
	}

	_, ok := FindAction("banana bread is great")
	assert.False(t, ok)
}

func TestResolveAction(t *testing.T) {
	action, ok := ResolveAction("Câm")
	require.True(t, ok)
	assert.Equal(t, command.ActionMute, action)

	action, ok = ResolveAction("deleteMessages")
	require.True(t, ok)
	assert.Equal(t, command.ActionDeleteMessages, action)

	_, ok = ResolveAction("hug")
	assert.False(t, ok)
}

func TestExtractReason(t *testing.T) {
	cases := map[string]string{
		"ban <@1> vì spam quá nhiều":               "spam quá nhiều",
		"câm <@1> 10 phút vì spam":                 "spam",
		"mute <@1> for 10 minutes for spamming":    "spamming",
		"kick <@1> reason: advertising":            "advertising",
		"warn <@1>":                                "",
		"ban <@1> <@2> because raiding the server": "raiding the server",
	}
	for text, want := range cases {
		assert.Equal(t, want, ExtractReason(text), text)
	}
}

func TestMonthDurationIsRejectedForMute(t *testing.T) {
	d, ok := ParseDuration("câm <@2> 1 tháng vì spam")
	require.True(t, ok)
	assert.Equal(t, MinutesPerMonth, d.Minutes)
	assert.True(t, errors.Is(ValidateDuration(command.ActionMute, d), ErrDurationTooLong))
	assert.Equal(t, "spam", ExtractReason("câm <@2> 1 tháng vì spam"))
}

func TestExtractReasonKeepsViolation(t *testing.T) {
	cases := map[string]string{
		"ban <@2> vì vi phạm luật":           "vi phạm luật",
		"cảnh cáo <@2> vi phạm nội quy":      "vi phạm nội quy",
		"warn <@2> violated the rules":       "violated the rules",
		"kick <@2> lý do: vi pham nhiều lần": "vi pham nhiều lần",
	}
	for text, want := range cases {
		assert.Equal(t, want, ExtractReason(text), text)
	}
}

func TestExtractMessageCount(t *testing.T) {
	assert.Equal(t, 20, ExtractMessageCount("xóa 20 tin nhắn của <@1>"))
	assert.Equal(t, 15, ExtractMessageCount("purge 15 <@1>"))
	assert.Equal(t, MaxMessageCount, ExtractMessageCount("delete 500 messages from <@1>"))
	assert.Equal(t, DefaultMessageCount, ExtractMessageCount("xóa tin nhắn của <@1>"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1 hour 30 minutes", FormatDuration("en", command.Minutes(90, "")))
	assert.Equal(t, "2 ngày", FormatDuration("vi", command.Minutes(2880, "")))
	assert.Equal(t, "vĩnh viễn", FormatDuration("vi", command.Permanent("")))
	assert.Equal(t, "-", FormatDuration("en", nil))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab…", Truncate("abcd", 3))
	assert.Equal(t, "", Truncate("abcd", 0))
}
