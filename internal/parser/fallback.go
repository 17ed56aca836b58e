package parser

import (
	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/mention"
	"sentinel-nlmod/internal/modutil"
)

// Confidence levels assigned by the pattern fallback.
const (
	ConfidenceAdjacent = 0.85
	ConfidencePresent  = 0.6
	ConfidenceNoTarget = 0.4
)

// Fallback runs the alias table against the raw text. It needs no network
// and always returns; an unmatched message yields command.Default().
func Fallback(text string, ctx mention.Context, targets []command.TargetRef) command.ParsedCommand {
	match, ok := modutil.FindAction(text)
	if !ok {
		return command.Default()
	}

	cmd := command.ParsedCommand{
		Action:  match.Action,
		Targets: append([]command.TargetRef(nil), targets...),
		Reason:  modutil.ExtractReason(text),
		Source:  command.SourcePattern,
	}
	if d, ok := modutil.ParseDuration(text); ok {
		cmd.Duration = d
	}
	if match.Action == command.ActionDeleteMessages {
		cmd.MessageCount = modutil.ExtractMessageCount(text)
	}

	switch {
	case len(targets) == 0:
		cmd.Confidence = ConfidenceNoTarget
	case ctx.IsDirectCommand && ctx.Command.Action == match.Action:
		cmd.Confidence = ConfidenceAdjacent
	default:
		cmd.Confidence = ConfidencePresent
	}
	return cmd
}
