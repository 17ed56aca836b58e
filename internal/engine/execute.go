package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sentinel-nlmod/internal/batch"
	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/confirm"
	"sentinel-nlmod/internal/executor"
	"sentinel-nlmod/internal/modutil"
	"sentinel-nlmod/internal/platform"
	"sentinel-nlmod/internal/reply"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// execute runs a validated command: one target inline, several through the
// batch queue.
func (e *Engine) execute(ctx context.Context, req request) reply.Response {
	cmd := req.cmd
	if len(cmd.Targets) == 0 {
		return e.replies.Failure(req.lang, "no_targets")
	}
	params := cmd.Params(req.channelID)
	params.Language = req.lang
	actorID := req.actor.Member.UserID

	if len(cmd.Targets) == 1 {
		result := e.executor.Execute(ctx, executor.Request{
			GuildID: req.guildID,
			ActorID: actorID,
			Action:  cmd.Action,
			Target:  cmd.Targets[0],
			Params:  params,
			Group:   uuid.NewString(),
			Guard:   e.guard(req.guildID, actorID, cmd.Action, req.lang),
		})
		return e.replies.Result(req.lang, cmd, []command.TargetResult{result})
	}

	op, err := e.queue.Enqueue(batch.Operation{
		GuildID:   req.guildID,
		ActorID:   actorID,
		ChannelID: req.channelID,
		Language:  req.lang,
		Command:   cmd,
		Params:    params,
	})
	switch {
	case errors.Is(err, batch.ErrBatchTooLarge):
		return e.replies.Failure(req.lang, "batch_too_large", e.queue.MaxSize())
	case errors.Is(err, batch.ErrEmpty):
		return e.replies.Failure(req.lang, "no_targets")
	case err != nil:
		e.logger.Error("batch enqueue failed", zap.String("guild_id", req.guildID), zap.Error(err))
		return e.replies.Failure(req.lang, "denied_generic", err.Error())
	}
	e.logger.Info("batch queued",
		zap.String("guild_id", req.guildID),
		zap.String("batch_id", op.ID),
		zap.String("action", cmd.Action.String()),
		zap.Int("targets", op.Total),
	)
	return e.replies.Queued(req.lang, op.ID, op.Total)
}

// guard re-validates a target against fresh member state right before the
// platform call.
func (e *Engine) guard(guildID, actorID string, action command.Action, lang string) executor.Guard {
	return func(ctx context.Context, target command.TargetRef) error {
		actor, err := e.actor(ctx, guildID, actorID)
		if err != nil {
			return fmt.Errorf("actor lookup: %w", err)
		}
		member := e.member(ctx, guildID, target)
		if decision := e.validator.ValidateTarget(actor, member, action); !decision.Allowed {
			return &executor.RejectedError{Reason: reply.RejectionText(lang, decision, target.Mention())}
		}
		return nil
	}
}

func (e *Engine) runBatchTarget(ctx context.Context, op batch.Operation, target command.TargetRef) command.TargetResult {
	return e.executor.Execute(ctx, executor.Request{
		GuildID: op.GuildID,
		ActorID: op.ActorID,
		Action:  op.Command.Action,
		Target:  target,
		Params:  op.Params,
		Group:   op.ID,
		BatchID: op.ID,
		Guard:   e.guard(op.GuildID, op.ActorID, op.Command.Action, op.Language),
	})
}

func (e *Engine) batchProgress(op batch.Operation, p batch.Progress) {
	e.send(context.Background(), op.ChannelID, e.replies.Progress(op.Language, op.ID, p.Processed, p.Total, p.Succeeded, p.Failed))
}

func (e *Engine) batchComplete(op batch.Operation, s batch.Summary) {
	e.logger.Info("batch finished",
		zap.String("guild_id", op.GuildID),
		zap.String("batch_id", op.ID),
		zap.String("status", string(op.Status)),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
	)
	resp := e.replies.Summary(op.Language, op.ID, op.Command, op.Results, op.Status == batch.StatusCancelled, s.ErrorDetail)
	e.send(context.Background(), op.ChannelID, resp)
}

func (e *Engine) confirmationExpired(p confirm.Pending) {
	e.metrics.RecordConfirmation("expired")
	e.logger.Debug("confirmation expired", zap.String("guild_id", p.GuildID), zap.String("confirmation_id", p.ID))
	resp := e.replies.Text(command.ModeConfirmation, reply.T(p.Language, "confirm_expired", p.ID))
	resp.UpdateKey = confirmationKey(p.ID)
	e.send(context.Background(), p.ChannelID, resp)
}

func pendingFor(req request) confirm.Pending {
	return confirm.Pending{
		GuildID:     req.guildID,
		ChannelID:   req.channelID,
		RequesterID: req.actor.Member.UserID,
		Language:    req.lang,
		Command:     req.cmd,
	}
}

func confirmationKey(id string) string {
	return "confirm:" + id
}

// Confirm executes a pending command once its requester accepts it. The
// actor is validated again, rate limit included, at this point.
func (e *Engine) Confirm(ctx context.Context, id, userID string) reply.Response {
	pending, err := e.confirmations.Confirm(id, userID)
	if err != nil {
		return e.confirmationError(id, err)
	}
	e.metrics.RecordConfirmation("confirmed")

	lang := pending.Language
	actor, err := e.actor(ctx, pending.GuildID, userID)
	if err != nil {
		return e.replies.Failure(lang, "lookup_failed")
	}
	members := make([]platform.Member, 0, len(pending.Command.Targets))
	for _, target := range pending.Command.Targets {
		members = append(members, e.member(ctx, pending.GuildID, target))
	}
	if decision := e.validator.ValidateActor(actor, pending.Command.Action, members); !decision.Allowed {
		return e.replies.Rejection(lang, decision, "")
	}

	resp := e.execute(ctx, request{
		guildID:   pending.GuildID,
		channelID: pending.ChannelID,
		lang:      lang,
		actor:     actor,
		cmd:       pending.Command,
	})
	if resp.UpdateKey == "" {
		resp.UpdateKey = confirmationKey(id)
	}
	return resp
}

func (e *Engine) CancelConfirmation(ctx context.Context, id, userID string) reply.Response {
	pending, err := e.confirmations.Cancel(id, userID)
	if err != nil {
		return e.confirmationError(id, err)
	}
	e.metrics.RecordConfirmation("cancelled")
	resp := e.replies.Text(command.ModeConfirmation, reply.T(pending.Language, "confirm_cancelled"))
	resp.UpdateKey = confirmationKey(id)
	return resp
}

func (e *Engine) confirmationError(id string, err error) reply.Response {
	lang := e.settings.DefaultLanguage
	if pending, ok := e.confirmations.Get(id); ok {
		lang = pending.Language
	}
	if errors.Is(err, confirm.ErrNotRequester) {
		return e.replies.Failure(lang, "confirm_not_requester")
	}
	return e.replies.Failure(lang, "confirm_not_found")
}

// UndoLast reverses the actor's most recent reversible command (ban or
// mute) issued within the undo window, every target of it at once.
func (e *Engine) UndoLast(ctx context.Context, guildID, channelID, actorID string) reply.Response {
	lang := e.language(ctx, guildID)
	window := modutil.FormatDuration(lang, command.Minutes(int(e.undo.Window().Minutes()), ""))

	actor, err := e.actor(ctx, guildID, actorID)
	if err != nil {
		return e.replies.Failure(lang, "lookup_failed")
	}
	entries, ok := e.undo.TakeReversible(guildID, actorID)
	if !ok {
		return e.replies.Failure(lang, "undo_none", window)
	}

	original := entries[0].Action
	reverse, _ := original.Reverse()
	if decision := e.validator.CheckActor(actor, reverse, nil); !decision.Allowed {
		return e.replies.Rejection(lang, decision, "")
	}

	group := "undo:" + uuid.NewString()
	cmd := command.ParsedCommand{Action: reverse, Confidence: 1, Source: command.SourceStructured}
	results := make([]command.TargetResult, 0, len(entries))
	for _, entry := range entries {
		params := command.Params{
			Reason:    reply.T(lang, "undo_done", modutil.ActionLabel(lang, original)),
			ChannelID: channelID,
			Language:  lang,
		}
		target := entry.Result.Target
		cmd.Targets = append(cmd.Targets, target)
		results = append(results, e.executor.Execute(ctx, executor.Request{
			GuildID: guildID,
			ActorID: actorID,
			Action:  reverse,
			Target:  target,
			Params:  params,
			Group:   group,
		}))
	}
	e.logger.Info("undo",
		zap.String("guild_id", guildID),
		zap.String("actor_id", actorID),
		zap.String("action", original.String()),
		zap.Int("targets", len(entries)),
	)

	resp := e.replies.Result(lang, cmd, results)
	resp.Embed.Description = reply.T(lang, "undo_done", strings.ToLower(modutil.ActionLabel(lang, original)))
	return resp
}
