// Package reply holds the response contracts the engine hands back to the
// gateway. The engine never sends messages itself; the bot renders these.
package reply

import (
	"fmt"
	"strings"
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/modutil"
	"sentinel-nlmod/internal/safety"

	"github.com/bwmarrin/discordgo"
)

type Kind int

const (
	KindNone Kind = iota
	KindText
	KindEmbed
	KindConfirmation
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindText:
		return "text"
	case KindEmbed:
		return "embed"
	case KindConfirmation:
		return "confirmation"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Response is one reply. A confirmation carries an embed plus the id the
// confirm and cancel buttons refer to. Responses sharing an UpdateKey
// replace the message sent for the previous one.
type Response struct {
	Mode           command.Mode
	Kind           Kind
	Text           string
	Embed          *discordgo.MessageEmbed
	ConfirmationID string
	Ephemeral      bool
	UpdateKey      string
	Language       string
}

func (r Response) Empty() bool {
	return r.Kind == KindNone
}

type Colors struct {
	Action  int
	Warning int
	Error   int
}

func DefaultColors() Colors {
	return Colors{Action: 0xF59E0B, Warning: 0xEF4444, Error: 0xF97316}
}

// Builder renders engine outcomes in a guild's language.
type Builder struct {
	colors Colors
	now    func() time.Time
}

func NewBuilder(colors Colors) *Builder {
	return &Builder{colors: colors, now: time.Now}
}

func (b *Builder) Chat() Response {
	return Response{Mode: command.ModeChat, Kind: KindNone}
}

func (b *Builder) Text(mode command.Mode, text string) Response {
	return Response{Mode: mode, Kind: KindText, Text: text}
}

func (b *Builder) Private(mode command.Mode, text string) Response {
	return Response{Mode: mode, Kind: KindText, Text: text, Ephemeral: true}
}

// Rejection explains a failed safety decision. subject names the target for
// target-level checks.
func (b *Builder) Rejection(lang string, decision safety.Decision, subject string) Response {
	return Response{Mode: command.ModeCommand, Kind: KindText, Text: RejectionText(lang, decision, subject), Ephemeral: true}
}

func RejectionText(lang string, decision safety.Decision, subject string) string {
	retry := decision.RetryAfter.Round(time.Second).String()
	switch decision.Check {
	case safety.CheckBlacklist, safety.CheckHierarchy, safety.CheckSelf, safety.CheckOwner:
		return T(lang, "denied_"+string(decision.Check))
	case safety.CheckPermission:
		return T(lang, "denied_permission", decision.RequiredPermission)
	case safety.CheckCooldown, safety.CheckMinuteLimit, safety.CheckHourLimit:
		return T(lang, "denied_"+string(decision.Check), retry)
	case safety.CheckProtected, safety.CheckBot, safety.CheckTargetHierarchy, safety.CheckBotHierarchy:
		return T(lang, "denied_"+string(decision.Check), subject)
	default:
		return T(lang, "denied_generic", decision.Reason)
	}
}

func (b *Builder) MissingTarget(lang string, action command.Action) Response {
	label := strings.ToLower(modutil.ActionLabel(lang, action))
	return Response{Mode: command.ModeClarification, Kind: KindText, Text: T(lang, "clarify_target", label)}
}

func (b *Builder) Ambiguous(lang string, cmd command.ParsedCommand) Response {
	label := strings.ToLower(modutil.ActionLabel(lang, cmd.Action))
	if !cmd.Recognized() {
		label = "?"
	}
	return Response{Mode: command.ModeClarification, Kind: KindText, Text: T(lang, "clarify_ambiguous", label, mentions(cmd.Targets))}
}

// Confirmation is the prompt for a pending command. The gateway attaches the
// confirm and cancel buttons keyed by id.
func (b *Builder) Confirmation(lang, id string, cmd command.ParsedCommand, timeout time.Duration) Response {
	label := modutil.ActionLabel(lang, cmd.Action)
	embed := b.embed(
		T(lang, "confirm_title", label),
		T(lang, "confirm_description", strings.ToLower(label), len(cmd.Targets), int(timeout.Seconds())),
		b.colors.Warning,
		b.commandFields(lang, cmd),
	)
	return Response{Mode: command.ModeConfirmation, Kind: KindConfirmation, Embed: embed, ConfirmationID: id, Language: lang}
}

// Result renders the outcome of a command executed inline.
func (b *Builder) Result(lang string, cmd command.ParsedCommand, results []command.TargetResult) Response {
	succeeded, failed := Count(results)
	label := modutil.ActionLabel(lang, cmd.Action)
	title, color := T(lang, "action_done_title", label), b.colors.Action
	switch {
	case succeeded == 0:
		title, color = T(lang, "action_failed_title", label), b.colors.Error
	case failed > 0:
		title, color = T(lang, "action_partial_title", label), b.colors.Warning
	}
	fields := b.commandFields(lang, cmd)
	fields = append(fields, &discordgo.MessageEmbedField{Name: T(lang, "field_result"), Value: T(lang, "result_counts", succeeded, failed), Inline: true})
	if errs := ErrorDetail(results, 1000); errs != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: T(lang, "field_errors"), Value: errs})
	}
	return Response{Mode: command.ModeCommand, Kind: KindEmbed, Embed: b.embed(title, "", color, fields)}
}

func (b *Builder) Queued(lang, batchID string, total int) Response {
	return Response{Mode: command.ModeCommand, Kind: KindText, Text: T(lang, "batch_queued", batchID, total), UpdateKey: "batch:" + batchID}
}

func (b *Builder) Progress(lang, batchID string, processed, total, succeeded, failed int) Response {
	return Response{Mode: command.ModeCommand, Kind: KindText, Text: T(lang, "batch_progress", batchID, processed, total, succeeded, failed), UpdateKey: "batch:" + batchID}
}

// Summary is the completion report of a batch. errorDetail is already cut to
// the batch error budget.
func (b *Builder) Summary(lang, batchID string, cmd command.ParsedCommand, results []command.TargetResult, cancelled bool, errorDetail string) Response {
	succeeded, failed := Count(results)
	label := modutil.ActionLabel(lang, cmd.Action)
	title, color := T(lang, "action_done_title", label), b.colors.Action
	switch {
	case cancelled:
		title, color = T(lang, "batch_cancelled", batchID), b.colors.Warning
	case succeeded == 0:
		title, color = T(lang, "action_failed_title", label), b.colors.Error
	case failed > 0:
		title, color = T(lang, "action_partial_title", label), b.colors.Warning
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: T(lang, "field_batch"), Value: batchID, Inline: true},
		{Name: T(lang, "field_result"), Value: T(lang, "result_counts", succeeded, failed), Inline: true},
	}
	if errorDetail != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: T(lang, "field_errors"), Value: modutil.Truncate(errorDetail, 1024)})
	}
	return Response{Mode: command.ModeCommand, Kind: KindEmbed, Embed: b.embed(title, "", color, fields), UpdateKey: "batch:" + batchID}
}

func (b *Builder) Notice(title, description string, fields []*discordgo.MessageEmbedField) Response {
	return Response{Mode: command.ModeCommand, Kind: KindEmbed, Embed: b.embed(title, description, b.colors.Action, fields), Ephemeral: true}
}

// Success acknowledges an admin operation to the caller only.
func (b *Builder) Success(lang, key string, args ...any) Response {
	return Response{Mode: command.ModeCommand, Kind: KindText, Text: T(lang, key, args...), Ephemeral: true}
}

func (b *Builder) Failure(lang, key string, args ...any) Response {
	return Response{Mode: command.ModeCommand, Kind: KindText, Text: T(lang, key, args...), Ephemeral: true}
}

func (b *Builder) commandFields(lang string, cmd command.ParsedCommand) []*discordgo.MessageEmbedField {
	fields := []*discordgo.MessageEmbedField{
		{Name: T(lang, "field_targets"), Value: modutil.Truncate(mentions(cmd.Targets), 1024)},
	}
	if cmd.Duration != nil {
		fields = append(fields, &discordgo.MessageEmbedField{Name: T(lang, "field_duration"), Value: modutil.FormatDuration(lang, cmd.Duration), Inline: true})
	}
	reason := cmd.Reason
	if reason == "" {
		reason = "-"
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: T(lang, "field_reason"), Value: modutil.Truncate(reason, 1024), Inline: true})
	return fields
}

func (b *Builder) embed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   b.now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func Count(results []command.TargetResult) (succeeded, failed int) {
	for _, result := range results {
		if result.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// ErrorDetail lists failed targets with their errors, cut to budget runes.
func ErrorDetail(results []command.TargetResult, budget int) string {
	var lines []string
	for _, result := range results {
		if result.Success {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", result.Target.Mention(), result.Error))
	}
	return modutil.Truncate(strings.Join(lines, "\n"), budget)
}

func mentions(targets []command.TargetRef) string {
	if len(targets) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		parts = append(parts, target.Mention())
	}
	return strings.Join(parts, ", ")
}
