package platform

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"sentinel-nlmod/internal/command"

	"github.com/bwmarrin/discordgo"
)

func TestResolveMemberFoldsRoles(t *testing.T) {
	guild := &discordgo.Guild{
		ID:      "g",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g", Position: 0, Permissions: discordgo.PermissionSendMessages},
			{ID: "mod", Position: 4, Permissions: discordgo.PermissionKickMembers},
			{ID: "helper", Position: 2, Permissions: discordgo.PermissionModerateMembers},
		},
	}

	member := resolveMember(guild, &discordgo.Member{
		User:  &discordgo.User{ID: "u", Username: "name"},
		Nick:  "nick",
		Roles: []string{"helper", "mod", "missing"},
	})
	if member.RolePosition != 4 {
		t.Fatalf("expected highest position 4, got %d", member.RolePosition)
	}
	if member.DisplayName != "nick" {
		t.Fatalf("expected nickname, got %q", member.DisplayName)
	}
	want := int64(discordgo.PermissionSendMessages | discordgo.PermissionKickMembers | discordgo.PermissionModerateMembers)
	if member.Permissions != want {
		t.Fatalf("unexpected permissions %b", member.Permissions)
	}

	owner := resolveMember(guild, &discordgo.Member{User: &discordgo.User{ID: "owner"}})
	if owner.Permissions&discordgo.PermissionAdministrator == 0 {
		t.Fatalf("owner should hold administrator")
	}
}

func TestMapError(t *testing.T) {
	unknown := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound, Status: "404 Not Found"},
		Message:  &discordgo.APIErrorMessage{Code: codeUnknownMember, Message: "Unknown Member"},
	}
	if err := mapError(unknown); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	forbidden := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"},
	}
	if err := mapError(forbidden); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	other := errors.New("boom")
	if err := mapError(other); err != other {
		t.Fatalf("expected passthrough, got %v", err)
	}
	if mapError(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}

func TestAuditReasonDefaultsAndTruncates(t *testing.T) {
	if got := auditReason(command.Params{}); got != "moderation command" {
		t.Fatalf("unexpected default reason %q", got)
	}
	long := strings.Repeat("a", 2000)
	if got := auditReason(command.Params{Reason: long}); len([]rune(got)) > 512 {
		t.Fatalf("reason not truncated: %d runes", len([]rune(got)))
	}
}

func TestWarnEmbedLanguage(t *testing.T) {
	vi := warnEmbed(command.Params{Language: "vi", Reason: "spam"}, 2, 0xEF4444)
	if vi.Title != "Bạn đã bị cảnh cáo" {
		t.Fatalf("unexpected title %q", vi.Title)
	}
	if vi.Fields[1].Value != "2" {
		t.Fatalf("unexpected count %q", vi.Fields[1].Value)
	}

	en := warnEmbed(command.Params{}, 1, 0)
	if en.Title != "You received a warning" || en.Fields[0].Value != "-" {
		t.Fatalf("unexpected english embed %+v", en)
	}
}

func TestApplyDispatchesToFake(t *testing.T) {
	fake := NewFake()
	fake.AddMember("g", Member{UserID: "u"})
	ctx := context.Background()

	if _, err := Apply(ctx, fake, command.ActionMute, "g", "u", command.Params{Duration: command.Minutes(10, "10m")}); err != nil {
		t.Fatalf("mute failed: %v", err)
	}
	if d, ok := fake.Muted("g", "u"); !ok || d != 10*time.Minute {
		t.Fatalf("expected 10m mute, got %v %v", d, ok)
	}
	if _, err := Apply(ctx, fake, command.ActionUnmute, "g", "u", command.Params{}); err != nil {
		t.Fatalf("unmute failed: %v", err)
	}
	if _, err := Apply(ctx, fake, command.ActionUnmute, "g", "u", command.Params{}); !errors.Is(err, ErrNotApplied) {
		t.Fatalf("expected ErrNotApplied, got %v", err)
	}
	if _, err := Apply(ctx, fake, command.ActionKick, "g", "nobody", command.Params{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(fake.Calls()) != 4 {
		t.Fatalf("expected 4 calls, got %d", len(fake.Calls()))
	}
}

func TestFakeFailOn(t *testing.T) {
	fake := NewFake()
	fake.AddMember("g", Member{UserID: "u"})
	fake.FailOn(command.ActionBan, "u", ErrForbidden)

	if _, err := fake.Ban(context.Background(), "g", "u", command.Params{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if fake.Banned("g", "u") {
		t.Fatalf("failed ban should not apply")
	}
}
