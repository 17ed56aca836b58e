package engine

import (
	"context"
	"strings"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/mention"
	"sentinel-nlmod/internal/modutil"
	"sentinel-nlmod/internal/parser"
	"sentinel-nlmod/internal/platform"
	"sentinel-nlmod/internal/reply"
	"sentinel-nlmod/internal/router"
	"sentinel-nlmod/internal/safety"

	"go.uber.org/zap"
)

// Message is an inbound chat message. Nil mention slices mean the gateway
// did not resolve mentions and they are read from the text.
type Message struct {
	GuildID   string
	ChannelID string
	AuthorID  string
	Text      string
	Users     []string
	Roles     []string
	Channels  []string
}

// Slash is a structured /mod invocation.
type Slash struct {
	GuildID      string
	ChannelID    string
	ActorID      string
	Action       command.Action
	UserIDs      []string
	Reason       string
	Duration     string
	MessageCount int
}

// request is a parsed command on its way through validation and routing.
type request struct {
	guildID   string
	channelID string
	lang      string
	actor     safety.Actor
	cmd       command.ParsedCommand
	context   mention.Context
	members   map[string]platform.Member
}

// HandleMessage runs the full pipeline for one chat message. Messages that
// neither mention the bot nor read as a direct command are ignored with an
// empty CHAT response.
func (e *Engine) HandleMessage(ctx context.Context, msg Message) reply.Response {
	if msg.GuildID == "" || strings.TrimSpace(msg.Text) == "" {
		return e.replies.Chat()
	}

	botID := ""
	if bot, err := e.platform.BotMember(ctx, msg.GuildID); err == nil {
		botID = bot.UserID
	}
	if msg.AuthorID == botID {
		return e.replies.Chat()
	}

	input := mention.Input{
		Text:     msg.Text,
		BotID:    botID,
		Users:    msg.Users,
		Roles:    msg.Roles,
		Channels: msg.Channels,
	}
	first := mention.Analyze(input)
	if !first.BotMentioned && !first.IsDirectCommand {
		return e.replies.Chat()
	}

	lang := e.language(ctx, msg.GuildID)
	actor, err := e.actor(ctx, msg.GuildID, msg.AuthorID)
	if err != nil {
		e.logger.Debug("actor lookup failed", zap.String("guild_id", msg.GuildID), zap.String("user_id", msg.AuthorID), zap.Error(err))
		return e.replies.Failure(lang, "lookup_failed")
	}

	targets := e.resolveTargets(ctx, msg.GuildID, first.Mentions.Users, botID)
	input.AuthorRolePosition = actor.Member.RolePosition
	input.RolePositions = targets.position
	analysis := mention.Analyze(input)

	// Banned users are no longer members; unban still needs them as targets
	// for the parser to score the command.
	refs := targets.refs
	if len(targets.absent) > 0 && unbanIntent(msg.Text, analysis) {
		refs = withAbsentTargets(command.ParsedCommand{Targets: refs}, targets.absent).Targets
	}

	cmd := e.parser.Analyze(ctx, parser.Input{Text: msg.Text, Context: analysis, Targets: refs})
	if cmd.Action == command.ActionUnban && len(targets.absent) > 0 {
		cmd = withAbsentTargets(cmd, targets.absent)
	}
	e.metrics.RecordParsed(cmd.Source)

	return e.dispatch(ctx, request{
		guildID:   msg.GuildID,
		channelID: msg.ChannelID,
		lang:      lang,
		actor:     actor,
		cmd:       cmd,
		context:   analysis,
		members:   memberIndex(targets.members),
	})
}

// HandleSlash runs a structured command through the same validation, mode
// and execution path as natural language.
func (e *Engine) HandleSlash(ctx context.Context, in Slash) reply.Response {
	lang := e.language(ctx, in.GuildID)
	if !in.Action.Valid() {
		return e.replies.Failure(lang, "denied_generic", in.Action.String())
	}

	var duration *command.Duration
	if raw := strings.TrimSpace(in.Duration); raw != "" {
		parsed, ok := modutil.ParseDuration(raw)
		if !ok {
			return e.replies.Failure(lang, "duration_invalid", modutil.ActionLabel(lang, in.Action), raw)
		}
		duration = parsed
	}

	actor, err := e.actor(ctx, in.GuildID, in.ActorID)
	if err != nil {
		return e.replies.Failure(lang, "lookup_failed")
	}
	targets := e.resolveTargets(ctx, in.GuildID, in.UserIDs, actor.Bot.UserID)
	refs := targets.refs
	if in.Action == command.ActionUnban {
		for _, id := range targets.absent {
			refs = append(refs, command.TargetRef{ID: id})
		}
	}

	cmd := e.parser.Structured(in.Action, refs, in.Reason, duration, in.MessageCount)
	e.metrics.RecordParsed(cmd.Source)

	return e.dispatch(ctx, request{
		guildID:   in.GuildID,
		channelID: in.ChannelID,
		lang:      lang,
		actor:     actor,
		cmd:       cmd,
		context:   mention.Context{IsDirectCommand: true, IsBatchOperation: len(refs) > 1},
		members:   memberIndex(targets.members),
	})
}

func (e *Engine) dispatch(ctx context.Context, req request) reply.Response {
	cmd := req.cmd
	decision := e.router.Resolve(router.Input{
		GuildID:               req.guildID,
		UserID:                req.actor.Member.UserID,
		Command:               cmd,
		Context:               req.context,
		ValidatorConfirmation: cmd.Recognized() && e.validator.RequiresConfirmation(cmd.Action, len(cmd.Targets)),
	})
	e.metrics.RecordMode(decision.Mode.String())
	e.logger.Debug("mode resolved",
		zap.String("guild_id", req.guildID),
		zap.String("user_id", req.actor.Member.UserID),
		zap.String("action", cmd.Action.String()),
		zap.Float64("confidence", cmd.Confidence),
		zap.String("source", cmd.Source),
		zap.String("mode", decision.Mode.String()),
		zap.String("rule", decision.Rule),
	)

	switch decision.Mode {
	case command.ModeChat:
		return e.replies.Chat()
	case command.ModeClarification:
		if decision.Rule == "missing_target" {
			return e.replies.MissingTarget(req.lang, cmd.Action)
		}
		return e.replies.Ambiguous(req.lang, cmd)
	case command.ModeConfirmation:
		if resp, ok := e.precheck(ctx, req, false); !ok {
			return resp
		}
		pending := e.confirmations.Request(pendingFor(req))
		e.metrics.RecordConfirmation("requested")
		resp := e.replies.Confirmation(req.lang, pending.ID, cmd, e.confirmations.Timeout())
		resp.UpdateKey = confirmationKey(pending.ID)
		return resp
	case command.ModeCommand:
		if resp, ok := e.precheck(ctx, req, true); !ok {
			return resp
		}
		return e.execute(ctx, req)
	default:
		e.logger.Error("unhandled mode", zap.String("mode", decision.Mode.String()))
		return e.replies.Chat()
	}
}

// precheck validates duration, actor and every target before anything runs
// or is held for confirmation. The rate limit is charged only when limit is
// set; confirmations are charged when they are accepted.
func (e *Engine) precheck(ctx context.Context, req request, limit bool) (reply.Response, bool) {
	cmd := req.cmd
	if err := modutil.ValidateDuration(cmd.Action, cmd.Duration); err != nil {
		return e.replies.Failure(req.lang, "duration_invalid", modutil.ActionLabel(req.lang, cmd.Action), err.Error()), false
	}

	members := make([]platform.Member, 0, len(cmd.Targets))
	for _, target := range cmd.Targets {
		member, ok := req.members[target.ID]
		if !ok {
			member = e.member(ctx, req.guildID, target)
		}
		members = append(members, member)
	}

	var decision safety.Decision
	if limit {
		decision = e.validator.ValidateActor(req.actor, cmd.Action, members)
	} else {
		decision = e.validator.CheckActor(req.actor, cmd.Action, members)
	}
	if !decision.Allowed {
		return e.replies.Rejection(req.lang, decision, ""), false
	}

	for _, member := range members {
		if decision := e.validator.ValidateTarget(req.actor, member, cmd.Action); !decision.Allowed {
			return e.replies.Rejection(req.lang, decision, "<@"+member.UserID+">"), false
		}
	}
	return reply.Response{}, true
}

func withAbsentTargets(cmd command.ParsedCommand, ids []string) command.ParsedCommand {
	present := make(map[string]struct{}, len(cmd.Targets))
	for _, target := range cmd.Targets {
		present[target.ID] = struct{}{}
	}
	targets := append([]command.TargetRef(nil), cmd.Targets...)
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			targets = append(targets, command.TargetRef{ID: id})
		}
	}
	cmd.Targets = targets
	cmd.BatchOperation = len(targets) > 1
	cmd.RequiresConfirmation = cmd.RequiresConfirmation || parser.NeedsConfirmation(cmd.Action, len(targets))
	return cmd
}

func unbanIntent(text string, analysis mention.Context) bool {
	if analysis.Command.Action == command.ActionUnban {
		return true
	}
	match, ok := modutil.FindAction(text)
	return ok && match.Action == command.ActionUnban
}

func memberIndex(members []platform.Member) map[string]platform.Member {
	index := make(map[string]platform.Member, len(members))
	for _, member := range members {
		index[member.UserID] = member
	}
	return index
}
