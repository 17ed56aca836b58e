package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	userMentionRegex    = regexp.MustCompile(`<@!?(\d+)>`)
	roleMentionRegex    = regexp.MustCompile(`<@&(\d+)>`)
	channelMentionRegex = regexp.MustCompile(`<#(\d+)>`)
	spaceRegex          = regexp.MustCompile(`\s+`)
)

// Normalize composes the text to NFC and lowercases it. Vietnamese input
// from some keyboards arrives decomposed, which would defeat alias matching.
func Normalize(text string) string {
	return strings.ToLower(norm.NFC.String(text))
}

func NFC(text string) string {
	return norm.NFC.String(text)
}

func UserMentionIDs(text string) []string {
	return captureAll(userMentionRegex, text)
}

func RoleMentionIDs(text string) []string {
	return captureAll(roleMentionRegex, text)
}

func ChannelMentionIDs(text string) []string {
	return captureAll(channelMentionRegex, text)
}

// MentionSpans returns the byte offsets of every user mention token.
func MentionSpans(text string) [][]int {
	return userMentionRegex.FindAllStringIndex(text, -1)
}

// StripMentions removes user, role and channel mention tokens.
func StripMentions(text string) string {
	text = roleMentionRegex.ReplaceAllString(text, " ")
	text = userMentionRegex.ReplaceAllString(text, " ")
	text = channelMentionRegex.ReplaceAllString(text, " ")
	return CollapseSpaces(text)
}

func CollapseSpaces(text string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(text, " "))
}

// HasVietnamese reports whether text carries letters only Vietnamese uses.
func HasVietnamese(text string) bool {
	for _, r := range norm.NFC.String(text) {
		if r < unicode.MaxASCII {
			continue
		}
		if strings.ContainsRune("ăâđêôơưĂÂĐÊÔƠƯ", r) {
			return true
		}
		if unicode.Is(unicode.Latin, r) && r >= 0x1EA0 && r <= 0x1EF9 {
			return true
		}
		if strings.ContainsRune("àáảãạèéẻẽẹìíỉĩịòóỏõọùúủũụỳýỷỹỵ", unicode.ToLower(r)) {
			return true
		}
	}
	return false
}

func captureAll(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		id := match[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
