// Package engine wires the moderation pipeline: mention analysis, parsing,
// safety validation, mode resolution and execution. It returns reply
// contracts and never sends messages itself.
package engine

import (
	"context"
	"errors"
	"time"

	"sentinel-nlmod/internal/analytics"
	"sentinel-nlmod/internal/batch"
	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/confirm"
	"sentinel-nlmod/internal/executor"
	"sentinel-nlmod/internal/llm"
	"sentinel-nlmod/internal/metrics"
	"sentinel-nlmod/internal/modules/audit"
	"sentinel-nlmod/internal/parser"
	"sentinel-nlmod/internal/platform"
	"sentinel-nlmod/internal/reply"
	"sentinel-nlmod/internal/router"
	"sentinel-nlmod/internal/safety"
	"sentinel-nlmod/internal/storage"
	"sentinel-nlmod/internal/undo"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultLookupTimeout   = 5 * time.Second
	defaultCleanupInterval = time.Minute
	retentionInterval      = 6 * time.Hour
)

// Notifier delivers responses produced outside a request, such as batch
// progress and expired confirmations.
type Notifier interface {
	Send(ctx context.Context, channelID string, resp reply.Response)
}

type Deps struct {
	Platform      platform.Platform
	Chat          llm.Completer
	Parser        *parser.Parser
	Validator     *safety.Validator
	Router        *router.Router
	Executor      *executor.Executor
	Confirmations *confirm.Store
	Undo          *undo.Store
	Audit         *audit.Logger
	Store         *storage.Store
	Analytics     *analytics.Service
	Replies       *reply.Builder
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

type Settings struct {
	DefaultLanguage string
	Batch           batch.Config
	ConfirmSweep    time.Duration
	CleanupInterval time.Duration
	LookupTimeout   time.Duration
	RetentionDays   int
	ChatEnabled     bool
}

type Engine struct {
	platform      platform.Platform
	chat          llm.Completer
	parser        *parser.Parser
	validator     *safety.Validator
	router        *router.Router
	executor      *executor.Executor
	queue         *batch.Queue
	confirmations *confirm.Store
	undo          *undo.Store
	audit         *audit.Logger
	store         *storage.Store
	analytics     *analytics.Service
	replies       *reply.Builder
	metrics       *metrics.Metrics
	logger        *zap.Logger
	settings      Settings
	notifier      Notifier
}

func New(deps Deps, settings Settings) (*Engine, error) {
	if deps.Platform == nil || deps.Parser == nil || deps.Validator == nil || deps.Router == nil || deps.Executor == nil {
		return nil, errors.New("engine: platform, parser, validator, router and executor are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Replies == nil {
		deps.Replies = reply.NewBuilder(reply.DefaultColors())
	}
	if deps.Confirmations == nil {
		deps.Confirmations = confirm.New(confirm.DefaultTimeout)
	}
	if deps.Undo == nil {
		deps.Undo = undo.New(undo.DefaultWindow, undo.DefaultMax)
	}
	if settings.DefaultLanguage == "" {
		settings.DefaultLanguage = "vi"
	}
	if settings.CleanupInterval <= 0 {
		settings.CleanupInterval = defaultCleanupInterval
	}
	if settings.LookupTimeout <= 0 {
		settings.LookupTimeout = defaultLookupTimeout
	}
	if settings.ConfirmSweep <= 0 {
		settings.ConfirmSweep = confirm.DefaultSweepInterval
	}

	e := &Engine{
		platform:      deps.Platform,
		chat:          deps.Chat,
		parser:        deps.Parser,
		validator:     deps.Validator,
		router:        deps.Router,
		executor:      deps.Executor,
		confirmations: deps.Confirmations,
		undo:          deps.Undo,
		audit:         deps.Audit,
		store:         deps.Store,
		analytics:     deps.Analytics,
		replies:       deps.Replies,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		settings:      settings,
	}

	queue, err := batch.New(settings.Batch, e.runBatchTarget, deps.Metrics, deps.Logger)
	if err != nil {
		return nil, err
	}
	queue.OnProgress(e.batchProgress)
	queue.OnComplete(e.batchComplete)
	e.queue = queue

	e.confirmations.OnExpire(e.confirmationExpired)
	e.validator.OnDeny(func(check safety.Check) {
		e.metrics.RecordDenial(string(check))
	})
	e.parser.OnModelResult(e.metrics.RecordLLM)
	return e, nil
}

func (e *Engine) SetNotifier(notifier Notifier) {
	e.notifier = notifier
}

func (e *Engine) Queue() *batch.Queue {
	return e.queue
}

// Run drives the periodic work until ctx is done: the batch drain loop, the
// confirmation sweep, rate-limit and undo cleanup, and audit retention.
func (e *Engine) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return e.queue.Run(ctx)
	})
	group.Go(func() error {
		return e.confirmations.Run(ctx, e.settings.ConfirmSweep)
	})
	group.Go(func() error {
		e.every(ctx, e.settings.CleanupInterval, e.cleanup)
		return nil
	})
	if e.store != nil && e.settings.RetentionDays > 0 {
		group.Go(func() error {
			e.every(ctx, retentionInterval, e.retention)
			return nil
		})
	}
	return group.Wait()
}

func (e *Engine) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (e *Engine) cleanup(context.Context) {
	limits := e.validator.Cleanup()
	entries := e.undo.Cleanup()
	if limits > 0 || entries > 0 {
		e.logger.Debug("state cleanup", zap.Int("rate_keys", limits), zap.Int("undo_entries", entries))
	}
}

func (e *Engine) retention(ctx context.Context) {
	if err := e.store.CleanupAuditLogs(ctx, e.settings.RetentionDays); err != nil {
		e.logger.Warn("audit retention failed", zap.Error(err))
	}
}

// language returns the guild's configured reply language.
func (e *Engine) language(ctx context.Context, guildID string) string {
	if e.store == nil || guildID == "" {
		return e.settings.DefaultLanguage
	}
	settings, err := e.store.GetGuildSettings(ctx, guildID, storage.GuildSettings{Language: e.settings.DefaultLanguage})
	if err != nil {
		e.logger.Warn("guild settings lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return e.settings.DefaultLanguage
	}
	if !reply.Supported(settings.Language) {
		return e.settings.DefaultLanguage
	}
	return settings.Language
}

// actor gathers the acting member, the bot member and the guild owner.
// Only the actor lookup is fatal.
func (e *Engine) actor(ctx context.Context, guildID, userID string) (safety.Actor, error) {
	ctx, cancel := context.WithTimeout(ctx, e.settings.LookupTimeout)
	defer cancel()

	member, err := e.platform.GetMember(ctx, guildID, userID)
	if err != nil {
		return safety.Actor{}, err
	}
	actor := safety.Actor{GuildID: guildID, Member: member}
	if bot, err := e.platform.BotMember(ctx, guildID); err == nil {
		actor.Bot = bot
	} else {
		e.logger.Debug("bot member lookup failed", zap.String("guild_id", guildID), zap.Error(err))
	}
	if owner, err := e.platform.GuildOwnerID(ctx, guildID); err == nil {
		actor.OwnerID = owner
	} else {
		e.logger.Debug("guild owner lookup failed", zap.String("guild_id", guildID), zap.Error(err))
	}
	return actor, nil
}

// resolved holds the verified targets of a message and the mentioned ids
// that are not guild members, which only unban may act on.
type resolved struct {
	members  []platform.Member
	refs     []command.TargetRef
	absent   []string
	position map[string]int
}

func (e *Engine) resolveTargets(ctx context.Context, guildID string, userIDs []string, botID string) resolved {
	ctx, cancel := context.WithTimeout(ctx, e.settings.LookupTimeout)
	defer cancel()

	out := resolved{position: make(map[string]int)}
	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == "" || id == botID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		member, err := e.platform.GetMember(ctx, guildID, id)
		if err != nil {
			if !errors.Is(err, platform.ErrNotFound) {
				e.logger.Debug("target lookup failed", zap.String("guild_id", guildID), zap.String("user_id", id), zap.Error(err))
			}
			out.absent = append(out.absent, id)
			continue
		}
		out.members = append(out.members, member)
		out.refs = append(out.refs, member.Ref())
		out.position[id] = member.RolePosition
	}
	return out
}

// member returns the target as the validator sees it. Non-members (unban)
// are represented by their id alone.
func (e *Engine) member(ctx context.Context, guildID string, target command.TargetRef) platform.Member {
	ctx, cancel := context.WithTimeout(ctx, e.settings.LookupTimeout)
	defer cancel()
	if member, err := e.platform.GetMember(ctx, guildID, target.ID); err == nil {
		return member
	}
	return platform.Member{UserID: target.ID, DisplayName: target.DisplayName, IsBot: target.IsBot, RolePosition: target.RolePosition}
}

func (e *Engine) send(ctx context.Context, channelID string, resp reply.Response) {
	if e.notifier == nil || channelID == "" || resp.Empty() {
		return
	}
	e.notifier.Send(ctx, channelID, resp)
}
