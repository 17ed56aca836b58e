// Package executor runs one moderation action against one target. Every
// attempt is audited and remembered for undo, whatever its outcome.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/metrics"
	"sentinel-nlmod/internal/modules/audit"
	"sentinel-nlmod/internal/platform"
	"sentinel-nlmod/internal/undo"

	"go.uber.org/zap"
)

const DefaultTimeout = 10 * time.Second

// Guard re-checks a target right before its attempt. A non-nil error fails
// the attempt without calling the platform.
type Guard func(ctx context.Context, target command.TargetRef) error

type Request struct {
	GuildID string
	ActorID string
	Action  command.Action
	Target  command.TargetRef
	Params  command.Params
	// Group ties together the attempts of one command for undo.
	Group   string
	BatchID string
	Guard   Guard
}

type Executor struct {
	platform platform.Platform
	audit    *audit.Logger
	undo     *undo.Store
	metrics  *metrics.Metrics
	timeout  time.Duration
	logger   *zap.Logger
}

func New(p platform.Platform, auditLogger *audit.Logger, undoStore *undo.Store, m *metrics.Metrics, timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		platform: p,
		audit:    auditLogger,
		undo:     undoStore,
		metrics:  m,
		timeout:  timeout,
		logger:   logger,
	}
}

type outcome struct {
	detail string
	err    error
}

// Execute never returns an error: failures, timeouts included, come back as
// an unsuccessful TargetResult.
func (e *Executor) Execute(ctx context.Context, req Request) command.TargetResult {
	start := time.Now()
	result := command.TargetResult{Target: req.Target}

	var err error
	if req.Guard != nil {
		err = req.Guard(ctx, req.Target)
	}
	if err == nil {
		result.Detail, err = e.call(ctx, req)
	}
	result.Duration = time.Since(start)
	result.Success = err == nil
	if err != nil {
		result.Error = err.Error()
	}

	e.metrics.RecordAction(req.Action.String(), resultLabel(err), result.Duration.Seconds())
	if err != nil && !isRejection(err) {
		e.logger.Warn("moderation action failed",
			zap.String("guild_id", req.GuildID),
			zap.String("action", req.Action.String()),
			zap.String("target_id", req.Target.ID),
			zap.Error(err),
		)
	}

	if e.audit != nil {
		e.audit.Record(ctx, audit.Record{
			GuildID:    req.GuildID,
			ActorID:    req.ActorID,
			Action:     req.Action.String(),
			TargetID:   req.Target.ID,
			Reason:     req.Params.Reason,
			Success:    result.Success,
			DurationMs: result.Duration.Milliseconds(),
			Error:      result.Error,
			BatchID:    req.BatchID,
			Detail:     result.Detail,
			At:         start,
		})
	}
	if e.undo != nil {
		e.undo.Record(undo.Entry{
			Group:   req.Group,
			GuildID: req.GuildID,
			ActorID: req.ActorID,
			Action:  req.Action,
			Params:  req.Params,
			Result:  result,
		})
	}
	return result
}

// call bounds the platform call by the executor timeout even when the
// platform ignores its context.
func (e *Executor) call(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		detail, err := platform.Apply(callCtx, e.platform, req.Action, req.GuildID, req.Target.ID, req.Params)
		done <- outcome{detail: detail, err: err}
	}()

	select {
	case out := <-done:
		if errors.Is(out.err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", platform.ErrTimeout, e.timeout)
		}
		return out.detail, out.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", platform.ErrTimeout, e.timeout)
		}
		return "", callCtx.Err()
	}
}

// RejectedError marks a guard denial, which is not a system failure.
type RejectedError struct {
	Reason string
}

func (r *RejectedError) Error() string {
	return r.Reason
}

func isRejection(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, platform.ErrTimeout):
		return "timeout"
	case isRejection(err):
		return "rejected"
	default:
		return "error"
	}
}
