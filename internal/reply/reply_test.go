package reply

import (
	"strings"
	"testing"
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/safety"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogFallsBack(t *testing.T) {
	assert.Equal(t, "Request cancelled.", T("fr", "confirm_cancelled"))
	assert.Equal(t, "Đã hủy yêu cầu.", T("vi", "confirm_cancelled"))
	assert.Equal(t, "no_such_key", T("vi", "no_such_key"))
	assert.True(t, Supported("vi"))
	assert.False(t, Supported("fr"))
}

func TestCatalogLanguagesHaveSameKeys(t *testing.T) {
	for key := range catalog["en"] {
		_, ok := catalog["vi"][key]
		assert.True(t, ok, key)
	}
	for key := range catalog["vi"] {
		_, ok := catalog["en"][key]
		assert.True(t, ok, key)
	}
}

func TestRejectionTextCoversEveryCheck(t *testing.T) {
	checks := []safety.Check{
		safety.CheckBlacklist, safety.CheckPermission, safety.CheckHierarchy,
		safety.CheckCooldown, safety.CheckMinuteLimit, safety.CheckHourLimit,
		safety.CheckProtected, safety.CheckSelf, safety.CheckBot, safety.CheckOwner,
		safety.CheckTargetHierarchy, safety.CheckBotHierarchy,
	}
	for _, check := range checks {
		text := RejectionText("en", safety.Decision{Check: check, RequiredPermission: "BAN_MEMBERS", RetryAfter: 3 * time.Second}, "<@1>")
		assert.NotContains(t, text, "denied_", string(check))
		assert.NotContains(t, text, "%!", string(check))
	}
	assert.Contains(t, RejectionText("en", safety.Decision{Check: safety.CheckCooldown, RetryAfter: 2400 * time.Millisecond}, ""), "2s")
	assert.Contains(t, RejectionText("vi", safety.Decision{Check: safety.CheckPermission, RequiredPermission: "KICK_MEMBERS"}, ""), "KICK_MEMBERS")
}

func TestConfirmationPrompt(t *testing.T) {
	b := NewBuilder(DefaultColors())
	cmd := command.ParsedCommand{
		Action:   command.ActionBan,
		Targets:  []command.TargetRef{{ID: "1"}, {ID: "2"}},
		Reason:   "spam",
		Duration: command.Permanent(""),
	}
	resp := b.Confirmation("en", "abc", cmd, 30*time.Second)
	require.Equal(t, KindConfirmation, resp.Kind)
	assert.Equal(t, command.ModeConfirmation, resp.Mode)
	assert.Equal(t, "abc", resp.ConfirmationID)
	require.NotNil(t, resp.Embed)
	assert.Contains(t, resp.Embed.Description, "30 seconds")
	assert.Equal(t, "<@1>, <@2>", resp.Embed.Fields[0].Value)
}

func TestResultColors(t *testing.T) {
	b := NewBuilder(DefaultColors())
	cmd := command.ParsedCommand{Action: command.ActionMute, Targets: []command.TargetRef{{ID: "1"}}}

	ok := b.Result("en", cmd, []command.TargetResult{{Target: command.TargetRef{ID: "1"}, Success: true}})
	assert.Equal(t, DefaultColors().Action, ok.Embed.Color)

	failed := b.Result("en", cmd, []command.TargetResult{{Target: command.TargetRef{ID: "1"}, Error: "not found"}})
	assert.Equal(t, DefaultColors().Error, failed.Embed.Color)
	assert.True(t, strings.HasPrefix(failed.Embed.Title, "Mute failed"))
}

func TestErrorDetailBudget(t *testing.T) {
	var results []command.TargetResult
	for i := 0; i < 50; i++ {
		results = append(results, command.TargetResult{Target: command.TargetRef{ID: "123456789"}, Error: strings.Repeat("x", 40)})
	}
	detail := ErrorDetail(results, 1000)
	assert.LessOrEqual(t, len([]rune(detail)), 1000)
	assert.True(t, strings.HasSuffix(detail, "…"))

	succeeded, failed := Count(append(results, command.TargetResult{Success: true}))
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 50, failed)
}

func TestSuccessIsPrivateText(t *testing.T) {
	b := NewBuilder(DefaultColors())
	resp := b.Success("en", "admin_ok")
	assert.Equal(t, KindText, resp.Kind)
	assert.True(t, resp.Ephemeral)
	assert.Equal(t, T("en", "admin_ok"), resp.Text)
	assert.Nil(t, resp.Embed)
}
