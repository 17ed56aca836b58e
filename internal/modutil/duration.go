package modutil

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/utils"
)

const (
	MinutesPerHour = 60
	MinutesPerDay  = 24 * MinutesPerHour
	MinutesPerWeek = 7 * MinutesPerDay
	// MinutesPerMonth counts a month as 30 days.
	MinutesPerMonth = 30 * MinutesPerDay

	// MaxMuteMinutes is the platform timeout ceiling (4 weeks).
	MaxMuteMinutes = 4 * MinutesPerWeek

	DefaultMuteMinutes = 10
)

var (
	ErrDurationNotAllowed  = errors.New("action does not take a duration")
	ErrDurationRequired    = errors.New("action requires a duration")
	ErrDurationTooShort    = errors.New("duration below minimum")
	ErrDurationTooLong     = errors.New("duration above maximum")
	ErrPermanentOnly       = errors.New("action only supports a permanent duration")
	ErrPermanentNotAllowed = errors.New("action does not support a permanent duration")
)

type durationUnit struct {
	pattern    *regexp.Regexp
	multiplier int
	seconds    bool
}

const unitTail = `(?:[^\p{L}\p{N}]|$)`

var permanentPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(vĩnh viễn|vinh vien|mãi mãi|mai mai|permanent(?:ly)?|perma|perm|forever|indefinitely)` + unitTail)

// Ordered: longer unit spellings come first inside each alternation so "mins"
// never matches as "m" + "ins".
var durationUnits = []durationUnit{
	{pattern: regexp.MustCompile(`(?i)(\d+)\s*(?:tháng|thang|months?|mos?)` + unitTail), multiplier: MinutesPerMonth},
	{pattern: regexp.MustCompile(`(?i)(\d+)\s*(?:tuần|tuan|weeks?|wks?|w)` + unitTail), multiplier: MinutesPerWeek},
	{pattern: regexp.MustCompile(`(?i)(\d+)\s*(?:ngày|ngay|days?|d)` + unitTail), multiplier: MinutesPerDay},
	{pattern: regexp.MustCompile(`(?i)(\d+)\s*(?:giờ|gio|tiếng|tieng|hours?|hrs?|hr|h)` + unitTail), multiplier: MinutesPerHour},
	{pattern: regexp.MustCompile(`(?i)(\d+)\s*(?:phút|phut|minutes?|mins?|p|m)` + unitTail), multiplier: 1},
	{pattern: regexp.MustCompile(`(?i)(\d+)\s*(?:giây|giay|seconds?|secs?|s)` + unitTail), seconds: true},
}

// ParseDuration finds the first duration phrase in text. The permanent
// sentinel wins over numeric phrases.
func ParseDuration(text string) (*command.Duration, bool) {
	normalized := utils.Normalize(text)
	if match := permanentPattern.FindStringSubmatch(normalized); match != nil {
		return command.Permanent(match[1]), true
	}
	for _, unit := range durationUnits {
		match := unit.pattern.FindStringSubmatch(normalized)
		if match == nil {
			continue
		}
		value, err := strconv.Atoi(match[1])
		if err != nil || value < 0 {
			continue
		}
		raw := utils.CollapseSpaces(trimTail(match[0]))
		if unit.seconds {
			return command.Minutes((value+59)/60, raw), true
		}
		return command.Minutes(value*unit.multiplier, raw), true
	}
	return nil, false
}

// StripDuration removes the first duration phrase ParseDuration would match.
func StripDuration(text string) string {
	text = utils.NFC(text)
	if loc := permanentPattern.FindStringSubmatchIndex(text); loc != nil {
		return utils.CollapseSpaces(text[:loc[2]] + " " + text[loc[3]:])
	}
	for _, unit := range durationUnits {
		if loc := unit.pattern.FindStringIndex(text); loc != nil {
			tail := trimTail(text[loc[0]:loc[1]])
			return utils.CollapseSpaces(text[:loc[0]] + " " + text[loc[0]+len(tail):])
		}
	}
	return text
}

type durationLimit struct {
	allowed   bool
	required  bool
	permanent bool
	onlyPerm  bool
	min       int
	max       int
}

var durationLimits = map[command.Action]durationLimit{
	command.ActionBan:  {allowed: true, permanent: true, onlyPerm: true},
	command.ActionMute: {allowed: true, required: true, min: 1, max: MaxMuteMinutes},
}

// ValidateDuration checks d against the static per-action limits. A nil
// duration is valid for every action that does not require one.
func ValidateDuration(action command.Action, d *command.Duration) error {
	limit, ok := durationLimits[action]
	if !ok || !limit.allowed {
		if d != nil {
			return fmt.Errorf("%s: %w", action, ErrDurationNotAllowed)
		}
		return nil
	}
	if d == nil {
		if limit.required {
			return fmt.Errorf("%s: %w", action, ErrDurationRequired)
		}
		return nil
	}
	if d.Permanent {
		if !limit.permanent {
			return fmt.Errorf("%s: %w", action, ErrPermanentNotAllowed)
		}
		return nil
	}
	if limit.onlyPerm {
		return fmt.Errorf("%s: %w", action, ErrPermanentOnly)
	}
	if d.Minutes < limit.min {
		return fmt.Errorf("%s: %w (%d < %d)", action, ErrDurationTooShort, d.Minutes, limit.min)
	}
	if limit.max > 0 && d.Minutes > limit.max {
		return fmt.Errorf("%s: %w (%d > %d)", action, ErrDurationTooLong, d.Minutes, limit.max)
	}
	return nil
}

// DefaultDuration is applied when the message named no duration.
func DefaultDuration(action command.Action) *command.Duration {
	switch action {
	case command.ActionBan:
		return command.Permanent("")
	case command.ActionMute:
		return command.Minutes(DefaultMuteMinutes, "")
	default:
		return nil
	}
}

// TakesDuration reports whether action accepts a duration at all.
func TakesDuration(action command.Action) bool {
	limit, ok := durationLimits[action]
	return ok && limit.allowed
}

func trimTail(match string) string {
	if match == "" {
		return match
	}
	runes := []rune(match)
	last := runes[len(runes)-1]
	if isWordRune(last) {
		return match
	}
	return string(runes[:len(runes)-1])
}
