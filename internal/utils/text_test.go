package utils

import "testing"

func TestNormalizeComposesVietnamese(t *testing.T) {
	decomposed := "C\u0061\u0302\u0301m"
	if got := Normalize(decomposed); got != "cấm" {
		t.Fatalf("expected composed lowercase, got %q", got)
	}
}

func TestMentionIDs(t *testing.T) {
	text := "ban <@123> <@!456> and <@123> in <#789> ping <@&42>"
	users := UserMentionIDs(text)
	if len(users) != 2 || users[0] != "123" || users[1] != "456" {
		t.Fatalf("unexpected user ids: %v", users)
	}
	if roles := RoleMentionIDs(text); len(roles) != 1 || roles[0] != "42" {
		t.Fatalf("unexpected role ids: %v", roles)
	}
	if channels := ChannelMentionIDs(text); len(channels) != 1 || channels[0] != "789" {
		t.Fatalf("unexpected channel ids: %v", channels)
	}
}

func TestStripMentions(t *testing.T) {
	if got := StripMentions("  <@1>   spam <#2>  quá <@&3> nhiều "); got != "spam quá nhiều" {
		t.Fatalf("unexpected stripped text %q", got)
	}
}

func TestHasVietnamese(t *testing.T) {
	if !HasVietnamese("câm nó 10 phút") {
		t.Fatalf("expected vietnamese")
	}
	if HasVietnamese("mute him for 10 minutes") {
		t.Fatalf("expected english")
	}
}
