package parser

import (
	"math"
	"strings"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/llm"
	"sentinel-nlmod/internal/modutil"

	"github.com/tidwall/gjson"
)

// decodeModel turns raw model output into a command. Anything that does not
// fit the expected shape yields ok=false; fields are read individually so a
// single bad field does not discard the rest.
func decodeModel(raw string, targets []command.TargetRef) (command.ParsedCommand, bool) {
	body, err := llm.ExtractJSON(raw)
	if err != nil {
		return command.ParsedCommand{}, false
	}
	doc := gjson.Parse(body)

	actionField := doc.Get("action")
	if actionField.Exists() && actionField.Type != gjson.String && actionField.Type != gjson.Null {
		return command.ParsedCommand{}, false
	}
	action, ok := command.ParseAction(actionField.String())
	if !ok {
		if resolved, aliasOK := modutil.ResolveAction(actionField.String()); aliasOK {
			action = resolved
		} else {
			return command.ParsedCommand{}, false
		}
	}

	confidenceField := doc.Get("confidence")
	if confidenceField.Type != gjson.Number {
		return command.ParsedCommand{}, false
	}
	confidence := clamp(confidenceField.Float())

	cmd := command.ParsedCommand{
		Action:               action,
		Confidence:           confidence,
		Reason:               strings.TrimSpace(doc.Get("reason").String()),
		RequiresConfirmation: doc.Get("requiresConfirmation").Bool(),
		Source:               command.SourceModel,
	}
	if cmd.Reason != "" {
		cmd.Reason = modutil.Truncate(cmd.Reason, modutil.MaxReasonLength)
	}
	cmd.Targets = pickTargets(doc.Get("targets"), targets)
	cmd.Duration = decodeDuration(doc.Get("duration"))

	if count := doc.Get("messageCount"); count.Type == gjson.Number {
		cmd.MessageCount = int(count.Int())
	}
	return cmd, true
}

// pickTargets keeps only ids the platform verified. A model that names no
// targets gets every verified mention.
func pickTargets(field gjson.Result, verified []command.TargetRef) []command.TargetRef {
	if !field.IsArray() || len(field.Array()) == 0 {
		return append([]command.TargetRef(nil), verified...)
	}
	byID := make(map[string]command.TargetRef, len(verified))
	for _, target := range verified {
		byID[target.ID] = target
	}
	var picked []command.TargetRef
	seen := make(map[string]struct{})
	for _, item := range field.Array() {
		id := strings.Trim(strings.TrimSpace(item.String()), "<@!>")
		target, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		picked = append(picked, target)
	}
	return picked
}

func decodeDuration(field gjson.Result) *command.Duration {
	switch field.Type {
	case gjson.Number:
		minutes := field.Int()
		if minutes < 0 {
			return nil
		}
		return command.Minutes(int(minutes), field.Raw)
	case gjson.String:
		value := strings.TrimSpace(field.String())
		if value == "" {
			return nil
		}
		if d, ok := modutil.ParseDuration(value); ok {
			return d
		}
	}
	return nil
}

func clamp(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
