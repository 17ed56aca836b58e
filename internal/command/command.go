// Package command holds the data model shared by every stage of the
// moderation pipeline: actions, modes, targets, durations and the parsed
// command produced for each incoming message.
package command

import (
	"fmt"
	"strings"
	"time"
)

type Action string

const (
	ActionNone           Action = ""
	ActionBan            Action = "ban"
	ActionKick           Action = "kick"
	ActionMute           Action = "mute"
	ActionWarn           Action = "warn"
	ActionDeleteMessages Action = "deleteMessages"
	ActionUnban          Action = "unban"
	ActionUnmute         Action = "unmute"
)

// Actions lists every supported action in a stable order.
var Actions = []Action{
	ActionBan,
	ActionKick,
	ActionMute,
	ActionWarn,
	ActionDeleteMessages,
	ActionUnban,
	ActionUnmute,
}

func (a Action) Valid() bool {
	switch a {
	case ActionBan, ActionKick, ActionMute, ActionWarn, ActionDeleteMessages, ActionUnban, ActionUnmute:
		return true
	default:
		return false
	}
}

func (a Action) String() string {
	if a == ActionNone {
		return "none"
	}
	return string(a)
}

// ParseAction matches the canonical action names case-insensitively.
// "none" and the empty string map to ActionNone.
func ParseAction(value string) (Action, bool) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "", "none", "null":
		return ActionNone, true
	case "deletemessages", "delete_messages", "delete":
		return ActionDeleteMessages, true
	}
	for _, action := range Actions {
		if strings.EqualFold(value, string(action)) {
			return action, true
		}
	}
	return ActionNone, false
}

// Reverse returns the action undoing a, if there is one.
func (a Action) Reverse() (Action, bool) {
	switch a {
	case ActionBan:
		return ActionUnban, true
	case ActionMute:
		return ActionUnmute, true
	default:
		return ActionNone, false
	}
}

type Mode int

const (
	ModeChat Mode = iota
	ModeCommand
	ModeConfirmation
	ModeClarification
)

func (m Mode) String() string {
	switch m {
	case ModeChat:
		return "CHAT_MODE"
	case ModeCommand:
		return "COMMAND_MODE"
	case ModeConfirmation:
		return "CONFIRMATION_MODE"
	case ModeClarification:
		return "CLARIFICATION_MODE"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// TargetRef is a verified guild member (or, for unban, a verified user id).
type TargetRef struct {
	ID           string
	DisplayName  string
	IsBot        bool
	RolePosition int
}

func (t TargetRef) Mention() string {
	return "<@" + t.ID + ">"
}

// Duration is either a whole number of minutes or the permanent sentinel.
type Duration struct {
	Minutes   int
	Permanent bool
	Raw       string
}

func Permanent(raw string) *Duration {
	return &Duration{Permanent: true, Raw: raw}
}

func Minutes(n int, raw string) *Duration {
	if n < 0 {
		n = 0
	}
	return &Duration{Minutes: n, Raw: raw}
}

func (d Duration) Std() time.Duration {
	if d.Permanent {
		return 0
	}
	return time.Duration(d.Minutes) * time.Minute
}

func (d Duration) String() string {
	if d.Permanent {
		return "permanent"
	}
	return fmt.Sprintf("%dm", d.Minutes)
}

// Params carries the action arguments shared by every target of a command.
type Params struct {
	Reason       string
	Duration     *Duration
	ChannelID    string
	MessageCount int
	Language     string
}

type ParsedCommand struct {
	Mode                 Mode
	Action               Action
	Targets              []TargetRef
	Reason               string
	Duration             *Duration
	MessageCount         int
	Confidence           float64
	RequiresConfirmation bool
	BatchOperation       bool
	Source               string
}

const (
	SourceDefault    = "default"
	SourceModel      = "model"
	SourcePattern    = "pattern"
	SourceCombined   = "combined"
	SourceStructured = "structured"
)

// Default is the low-confidence chat result every parse failure degrades to.
func Default() ParsedCommand {
	return ParsedCommand{Mode: ModeChat, Action: ActionNone, Confidence: 0, Source: SourceDefault}
}

func (c ParsedCommand) Recognized() bool {
	return c.Action.Valid()
}

func (c ParsedCommand) Params(channelID string) Params {
	return Params{
		Reason:       c.Reason,
		Duration:     c.Duration,
		ChannelID:    channelID,
		MessageCount: c.MessageCount,
	}
}

func (c ParsedCommand) TargetIDs() []string {
	ids := make([]string, 0, len(c.Targets))
	for _, target := range c.Targets {
		ids = append(ids, target.ID)
	}
	return ids
}

type TargetResult struct {
	Target   TargetRef
	Success  bool
	Error    string
	Detail   string
	Duration time.Duration
}
