package modutil

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/utils"
)

const (
	DefaultMessageCount = 20
	MaxMessageCount     = 100
)

// ActionAliases maps every action to the Vietnamese and English words that
// invoke it. Unaccented spellings are listed explicitly; folding accents
// would merge "câm" (mute) with "cấm" (ban).
var ActionAliases = map[command.Action][]string{
	command.ActionBan: {
		"ban", "cấm", "cấm cửa", "trục xuất", "đuổi vĩnh viễn", "block",
	},
	command.ActionKick: {
		"kick", "đuổi", "duoi", "đá", "sút", "tống cổ", "boot",
	},
	command.ActionMute: {
		"mute", "timeout", "time out", "câm", "cam mom", "câm mồm", "cấm chat", "cấm nói",
		"im lặng", "khóa mõm", "khoá mõm", "bịt miệng", "silence", "shut up",
	},
	command.ActionWarn: {
		"warn", "warning", "cảnh cáo", "canh cao", "cảnh báo", "canh bao", "nhắc nhở", "nhac nho",
	},
	command.ActionDeleteMessages: {
		"delete messages", "delete", "purge", "clear messages", "clean", "xóa tin nhắn", "xoá tin nhắn",
		"xóa tin", "xoá tin", "xóa", "xoá", "xoa tin nhan", "dọn tin nhắn", "dọn",
	},
	command.ActionUnban: {
		"unban", "un-ban", "gỡ ban", "go ban", "gỡ cấm", "bỏ cấm", "bo cam", "bỏ ban", "ân xá", "pardon",
	},
	command.ActionUnmute: {
		"unmute", "un-mute", "untimeout", "gỡ mute", "go mute", "bỏ câm", "gỡ câm", "mở khóa mõm",
		"mở khoá mõm", "bỏ mute", "cho nói", "unsilence",
	},
}

type aliasEntry struct {
	alias  string
	action command.Action
}

var aliasIndex = buildAliasIndex()

func buildAliasIndex() []aliasEntry {
	var entries []aliasEntry
	for _, action := range command.Actions {
		for _, alias := range ActionAliases[action] {
			entries = append(entries, aliasEntry{alias: utils.Normalize(alias), action: action})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return utf8.RuneCountInString(entries[i].alias) > utf8.RuneCountInString(entries[j].alias)
	})
	return entries
}

// ResolveAction maps a single alias or canonical action name to an action.
func ResolveAction(word string) (command.Action, bool) {
	normalized := utils.CollapseSpaces(utils.Normalize(word))
	if action, ok := command.ParseAction(normalized); ok && action.Valid() {
		return action, true
	}
	for _, entry := range aliasIndex {
		if entry.alias == normalized {
			return entry.action, true
		}
	}
	return command.ActionNone, false
}

// ActionMatch is an alias occurrence; Start and End are byte offsets into the
// normalized text.
type ActionMatch struct {
	Action command.Action
	Alias  string
	Start  int
	End    int
}

// FindAction returns the earliest alias occurrence in text, preferring the
// longest alias at a given offset so "gỡ ban" resolves to unban.
func FindAction(text string) (ActionMatch, bool) {
	matches := FindActions(text)
	if len(matches) == 0 {
		return ActionMatch{}, false
	}
	return matches[0], true
}

// FindActions returns every non-overlapping alias occurrence ordered by offset.
func FindActions(text string) []ActionMatch {
	normalized := utils.Normalize(text)
	var found []ActionMatch
	for _, entry := range aliasIndex {
		offset := 0
		for {
			idx := strings.Index(normalized[offset:], entry.alias)
			if idx < 0 {
				break
			}
			start := offset + idx
			end := start + len(entry.alias)
			if boundaryBefore(normalized, start) && boundaryAfter(normalized, end) {
				found = append(found, ActionMatch{Action: entry.action, Alias: entry.alias, Start: start, End: end})
			}
			offset = end
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Start != found[j].Start {
			return found[i].Start < found[j].Start
		}
		return found[i].End-found[i].Start > found[j].End-found[j].Start
	})

	result := found[:0]
	lastEnd := -1
	for _, match := range found {
		if match.Start < lastEnd {
			continue
		}
		result = append(result, match)
		lastEnd = match.End
	}
	return result
}

var messageCountRegex = regexp.MustCompile(`(?i)(\d{1,4})\s*(?:tin nhắn|tin nhan|tin|messages?|msgs?|dòng)`)
var bareCountRegex = regexp.MustCompile(`(?i)(?:purge|clear|clean|delete|xóa|xoá|dọn)\s+(\d{1,4})(?:[^\p{L}\p{N}]|$)`)

// ExtractMessageCount reads how many messages a delete command asks for,
// clamped to the bulk-delete ceiling.
func ExtractMessageCount(text string) int {
	normalized := utils.Normalize(text)
	for _, re := range []*regexp.Regexp{messageCountRegex, bareCountRegex} {
		if match := re.FindStringSubmatch(normalized); match != nil {
			if value, err := strconv.Atoi(match[1]); err == nil && value > 0 {
				if value > MaxMessageCount {
					return MaxMessageCount
				}
				return value
			}
		}
	}
	return DefaultMessageCount
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || r == '_'
}

func boundaryBefore(text string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:idx])
	return !isWordRune(r)
}

func boundaryAfter(text string, idx int) bool {
	if idx >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[idx:])
	return !isWordRune(r)
}
