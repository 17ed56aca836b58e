// Package parser turns a chat message into a ParsedCommand. The completion
// model is consulted first; a deterministic alias fallback covers model
// failures and low-confidence answers.
package parser

import (
	"context"
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/llm"
	"sentinel-nlmod/internal/mention"
	"sentinel-nlmod/internal/modutil"

	"go.uber.org/zap"
)

const (
	DefaultThreshold    = 0.8
	DefaultCombineFloor = 0.3
	DefaultAgreeBump    = 0.1

	// BatchConfirmationSize is the target count from which every command
	// needs confirmation.
	BatchConfirmationSize = 3
)

type Thresholds struct {
	Execute   float64
	Combine   float64
	AgreeBump float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Execute: DefaultThreshold, Combine: DefaultCombineFloor, AgreeBump: DefaultAgreeBump}
}

type Input struct {
	Text    string
	Context mention.Context
	// Targets are the verified members behind Context.Mentions.Users,
	// excluding the bot.
	Targets []command.TargetRef
}

type Parser struct {
	model      llm.Completer
	thresholds Thresholds
	timeout    time.Duration
	logger     *zap.Logger
	onModel    func(result string)
}

// New builds a parser. model may be nil, in which case only the fallback runs.
func New(model llm.Completer, thresholds Thresholds, timeout time.Duration, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if thresholds.Execute <= 0 || thresholds.Execute > 1 {
		thresholds.Execute = DefaultThreshold
	}
	if thresholds.Combine < 0 || thresholds.Combine >= thresholds.Execute {
		thresholds.Combine = DefaultCombineFloor
	}
	if thresholds.AgreeBump < 0 {
		thresholds.AgreeBump = DefaultAgreeBump
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Parser{model: model, thresholds: thresholds, timeout: timeout, logger: logger}
}

// OnModelResult registers a hook receiving "ok", "error" or "invalid" after
// every model call.
func (p *Parser) OnModelResult(fn func(result string)) {
	p.onModel = fn
}

func (p *Parser) Thresholds() Thresholds {
	return p.thresholds
}

// Analyze never fails: model errors and malformed output degrade to the
// fallback, and an unmatched message degrades to command.Default().
func (p *Parser) Analyze(ctx context.Context, in Input) command.ParsedCommand {
	fallback := Fallback(in.Text, in.Context, in.Targets)

	primary, ok := p.askModel(ctx, in)
	var result command.ParsedCommand
	if ok {
		result = Reconcile(primary, fallback, p.thresholds)
	} else {
		result = Reconcile(command.Default(), fallback, p.thresholds)
	}
	return p.finish(result, in.Text)
}

func (p *Parser) askModel(ctx context.Context, in Input) (command.ParsedCommand, bool) {
	if p.model == nil {
		return command.ParsedCommand{}, false
	}
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.model.Complete(callCtx, systemPrompt, userPrompt(in.Text, in.Context, in.Targets))
	if err != nil {
		p.logger.Warn("model analysis failed, using fallback", zap.Error(err))
		p.report("error")
		return command.ParsedCommand{}, false
	}
	cmd, ok := decodeModel(raw, in.Targets)
	if !ok {
		p.logger.Debug("model output rejected", zap.String("raw", modutil.Truncate(raw, 200)))
		p.report("invalid")
		return command.ParsedCommand{}, false
	}
	p.report("ok")
	return cmd, true
}

func (p *Parser) report(result string) {
	if p.onModel != nil {
		p.onModel(result)
	}
}

// Reconcile merges the model answer with the fallback:
// at or above Execute the model wins outright; between Combine and Execute
// agreeing answers are merged with a capped bump and disagreeing ones keep
// the more confident; below Combine the fallback is used, or the default
// chat result when nothing matched.
func Reconcile(primary, fallback command.ParsedCommand, t Thresholds) command.ParsedCommand {
	switch {
	case primary.Confidence >= t.Execute:
		return primary
	case primary.Confidence >= t.Combine:
		if fallback.Recognized() && fallback.Action == primary.Action {
			merged := primary
			bump := fallback.Confidence
			if bump > t.AgreeBump {
				bump = t.AgreeBump
			}
			merged.Confidence = clamp(primary.Confidence + bump)
			merged.Source = command.SourceCombined
			if merged.Reason == "" {
				merged.Reason = fallback.Reason
			}
			if merged.Duration == nil {
				merged.Duration = fallback.Duration
			}
			if merged.MessageCount == 0 {
				merged.MessageCount = fallback.MessageCount
			}
			if len(merged.Targets) == 0 {
				merged.Targets = fallback.Targets
			}
			return merged
		}
		if fallback.Confidence > primary.Confidence {
			return fallback
		}
		return primary
	default:
		if fallback.Recognized() {
			return fallback
		}
		return command.Default()
	}
}

// finish applies defaults and the derived flags shared by every source.
func (p *Parser) finish(cmd command.ParsedCommand, text string) command.ParsedCommand {
	if !cmd.Recognized() {
		cmd.Action = command.ActionNone
		cmd.Mode = command.ModeChat
		cmd.RequiresConfirmation = false
		cmd.BatchOperation = false
		cmd.Duration = nil
		return cmd
	}

	if cmd.Duration == nil {
		cmd.Duration = modutil.DefaultDuration(cmd.Action)
	}
	if !modutil.TakesDuration(cmd.Action) {
		cmd.Duration = nil
	}
	if cmd.Action == command.ActionDeleteMessages {
		if cmd.MessageCount <= 0 {
			cmd.MessageCount = modutil.ExtractMessageCount(text)
		}
		if cmd.MessageCount > modutil.MaxMessageCount {
			cmd.MessageCount = modutil.MaxMessageCount
		}
	} else {
		cmd.MessageCount = 0
	}

	cmd.BatchOperation = len(cmd.Targets) > 1
	cmd.RequiresConfirmation = cmd.RequiresConfirmation || NeedsConfirmation(cmd.Action, len(cmd.Targets))
	if cmd.Confidence >= p.thresholds.Execute {
		cmd.Mode = command.ModeCommand
	} else {
		cmd.Mode = command.ModeChat
	}
	return cmd
}

// NeedsConfirmation is the parser's copy of the confirmation rule.
func NeedsConfirmation(action command.Action, targets int) bool {
	return action == command.ActionBan || action == command.ActionUnban || targets >= BatchConfirmationSize
}

// Structured builds the command for a slash invocation, which skips
// language analysis entirely.
func (p *Parser) Structured(action command.Action, targets []command.TargetRef, reason string, duration *command.Duration, count int) command.ParsedCommand {
	cmd := command.ParsedCommand{
		Action:       action,
		Targets:      targets,
		Reason:       modutil.Truncate(reason, modutil.MaxReasonLength),
		Duration:     duration,
		MessageCount: count,
		Confidence:   1,
		Source:       command.SourceStructured,
	}
	return p.finish(cmd, "")
}
