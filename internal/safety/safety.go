// Package safety decides whether an actor may run an action against a
// target. Decisions are plain values; the only state is the rate limiter and
// the admin-managed lists.
package safety

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/platform"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Check names the rule a Decision failed on.
type Check string

const (
	CheckBlacklist       Check = "blacklist"
	CheckPermission      Check = "permission"
	CheckHierarchy       Check = "hierarchy"
	CheckCooldown        Check = "cooldown"
	CheckMinuteLimit     Check = "rate_minute"
	CheckHourLimit       Check = "rate_hour"
	CheckProtected       Check = "protected"
	CheckSelf            Check = "self"
	CheckBot             Check = "bot"
	CheckOwner           Check = "owner"
	CheckTargetHierarchy Check = "target_hierarchy"
	CheckBotHierarchy    Check = "bot_hierarchy"
)

type Decision struct {
	Allowed            bool
	Check              Check
	Reason             string
	RequiredPermission string
	RetryAfter         time.Duration
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(check Check, reason string) Decision {
	return Decision{Allowed: false, Check: check, Reason: reason}
}

// Actor is everything the validator needs about who is acting and where.
type Actor struct {
	GuildID string
	OwnerID string
	Member  platform.Member
	Bot     platform.Member
}

func (a Actor) IsOwner() bool {
	return a.OwnerID != "" && a.Member.UserID == a.OwnerID
}

type Config struct {
	ProtectListed       bool
	ProtectSelf         bool
	ProtectBots         bool
	ProtectOwner        bool
	ProtectHigherRole   bool
	ProtectBotHierarchy bool
	ConfirmActions      []command.Action
	ConfirmTargets      int
	DefaultLimit        Limit
	Limits              map[command.Action]Limit
}

func DefaultConfig() Config {
	return Config{
		ProtectListed:       true,
		ProtectSelf:         true,
		ProtectBots:         true,
		ProtectOwner:        true,
		ProtectHigherRole:   true,
		ProtectBotHierarchy: true,
		ConfirmActions:      []command.Action{command.ActionBan, command.ActionUnban},
		ConfirmTargets:      3,
		DefaultLimit:        Limit{Cooldown: 2 * time.Second, PerMinute: 5, PerHour: 30},
		Limits: map[command.Action]Limit{
			command.ActionBan:   {Cooldown: 5 * time.Second, PerMinute: 5, PerHour: 30},
			command.ActionUnban: {Cooldown: 5 * time.Second, PerMinute: 5, PerHour: 30},
			command.ActionKick:  {Cooldown: 3 * time.Second, PerMinute: 5, PerHour: 30},
		},
	}
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Validator struct {
	cfg     Config
	lists   *Lists
	limiter *RateLimiter
	clock   Clock
	logger  *zap.Logger

	denialsMu sync.Mutex
	denials   map[Check]int
	onDeny    func(Check)
}

func NewValidator(cfg Config, lists *Lists, logger *zap.Logger) *Validator {
	if lists == nil {
		lists = NewLists(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConfirmTargets <= 0 {
		cfg.ConfirmTargets = 3
	}
	return &Validator{
		cfg:     cfg,
		lists:   lists,
		limiter: NewRateLimiter(),
		clock:   realClock{},
		logger:  logger,
		denials: make(map[Check]int),
	}
}

func (v *Validator) WithClock(clock Clock) {
	v.clock = clock
}

// OnDeny registers a hook called with the failed check of every denial.
func (v *Validator) OnDeny(fn func(Check)) {
	v.onDeny = fn
}

func (v *Validator) Lists() *Lists {
	return v.lists
}

// CheckActor runs the blacklist, permission and hierarchy checks without
// touching the rate limiter.
func (v *Validator) CheckActor(actor Actor, action command.Action, targets []platform.Member) Decision {
	return v.record(actor, action, v.checkActor(actor, action, targets))
}

// ValidateActor runs CheckActor and then the rate limit. A passing call
// records the invocation.
func (v *Validator) ValidateActor(actor Actor, action command.Action, targets []platform.Member) Decision {
	decision := v.checkActor(actor, action, targets)
	if decision.Allowed {
		limit := v.limitFor(action)
		if check, wait := v.limiter.Allow(actor.GuildID, actor.Member.UserID, action, limit, v.clock.Now()); check != "" {
			decision = deny(check, rateReason(check, wait))
			decision.RetryAfter = wait
		}
	}
	return v.record(actor, action, decision)
}

func (v *Validator) checkActor(actor Actor, action command.Action, targets []platform.Member) Decision {
	userID := actor.Member.UserID
	if v.lists.Contains(ListBlacklist, actor.GuildID, userID) {
		return deny(CheckBlacklist, "actor is blacklisted")
	}

	owner := actor.IsOwner()
	if !owner && !v.lists.Contains(ListWhitelist, actor.GuildID, userID) {
		bit, name := RequiredPermission(action)
		if !HasPermission(actor.Member.Permissions, bit) {
			decision := deny(CheckPermission, "missing permission "+name)
			decision.RequiredPermission = name
			return decision
		}
	}

	if !owner {
		for _, target := range targets {
			if target.UserID == userID {
				continue
			}
			if target.RolePosition >= actor.Member.RolePosition && target.RolePosition > 0 {
				return deny(CheckHierarchy, fmt.Sprintf("target %s has role position %d >= actor %d", target.UserID, target.RolePosition, actor.Member.RolePosition))
			}
		}
	}
	return allow()
}

// ValidateTarget checks one target. It must be called per target and per
// attempt; decisions are never cached.
func (v *Validator) ValidateTarget(actor Actor, target platform.Member, action command.Action) Decision {
	return v.record(actor, action, v.validateTarget(actor, target, action))
}

func (v *Validator) validateTarget(actor Actor, target platform.Member, action command.Action) Decision {
	cfg := v.cfg
	if cfg.ProtectListed && v.lists.Contains(ListProtected, actor.GuildID, target.UserID) {
		return deny(CheckProtected, "target is protected")
	}
	if cfg.ProtectSelf && target.UserID == actor.Member.UserID {
		return deny(CheckSelf, "cannot target yourself")
	}
	if cfg.ProtectBots && (target.IsBot || (actor.Bot.UserID != "" && target.UserID == actor.Bot.UserID)) {
		return deny(CheckBot, "cannot target a bot")
	}
	if cfg.ProtectOwner && actor.OwnerID != "" && target.UserID == actor.OwnerID {
		return deny(CheckOwner, "cannot target the guild owner")
	}
	if cfg.ProtectHigherRole && !actor.IsOwner() && action != command.ActionUnban && target.RolePosition >= actor.Member.RolePosition {
		return deny(CheckTargetHierarchy, fmt.Sprintf("target role position %d >= actor %d", target.RolePosition, actor.Member.RolePosition))
	}
	if cfg.ProtectBotHierarchy && actor.Bot.UserID != "" && target.RolePosition >= actor.Bot.RolePosition && reachesMember(action) {
		return deny(CheckBotHierarchy, fmt.Sprintf("target role position %d >= bot %d", target.RolePosition, actor.Bot.RolePosition))
	}
	return allow()
}

// RequiresConfirmation is pure: action in the confirmation set, or a target
// count at or above the configured size.
func (v *Validator) RequiresConfirmation(action command.Action, targetCount int) bool {
	if targetCount >= v.cfg.ConfirmTargets {
		return true
	}
	for _, candidate := range v.cfg.ConfirmActions {
		if candidate == action {
			return true
		}
	}
	return false
}

func (v *Validator) ResetRateLimits(guildID, userID string) int {
	return v.limiter.Reset(guildID, userID)
}

func (v *Validator) Cleanup() int {
	return v.limiter.Cleanup(v.clock.Now())
}

type Stats struct {
	TrackedRateKeys int
	Protected       int
	Blacklisted     int
	Whitelisted     int
	Denials         map[Check]int
}

func (v *Validator) Stats(guildID string) Stats {
	v.denialsMu.Lock()
	denials := make(map[Check]int, len(v.denials))
	for check, count := range v.denials {
		denials[check] = count
	}
	v.denialsMu.Unlock()

	return Stats{
		TrackedRateKeys: v.limiter.Tracked(),
		Protected:       v.lists.Size(ListProtected, guildID),
		Blacklisted:     v.lists.Size(ListBlacklist, guildID),
		Whitelisted:     v.lists.Size(ListWhitelist, guildID),
		Denials:         denials,
	}
}

func (v *Validator) limitFor(action command.Action) Limit {
	if limit, ok := v.cfg.Limits[action]; ok {
		return limit
	}
	return v.cfg.DefaultLimit
}

func (v *Validator) record(actor Actor, action command.Action, decision Decision) Decision {
	if decision.Allowed {
		return decision
	}
	v.denialsMu.Lock()
	v.denials[decision.Check]++
	v.denialsMu.Unlock()
	if v.onDeny != nil {
		v.onDeny(decision.Check)
	}
	v.logger.Debug("safety check denied",
		zap.String("guild_id", actor.GuildID),
		zap.String("user_id", actor.Member.UserID),
		zap.String("action", action.String()),
		zap.String("check", string(decision.Check)),
		zap.String("reason", decision.Reason),
	)
	return decision
}

// RequiredPermission maps an action to its permission bit and display name.
func RequiredPermission(action command.Action) (int64, string) {
	switch action {
	case command.ActionBan, command.ActionUnban:
		return discordgo.PermissionBanMembers, "BAN_MEMBERS"
	case command.ActionKick:
		return discordgo.PermissionKickMembers, "KICK_MEMBERS"
	case command.ActionMute, command.ActionUnmute, command.ActionWarn:
		return discordgo.PermissionModerateMembers, "MODERATE_MEMBERS"
	case command.ActionDeleteMessages:
		return discordgo.PermissionManageMessages, "MANAGE_MESSAGES"
	default:
		return discordgo.PermissionAdministrator, "ADMINISTRATOR"
	}
}

func HasPermission(perms, bit int64) bool {
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&bit != 0
}

// reachesMember reports whether the action needs the bot to outrank the
// target. Unban targets are no longer members.
func reachesMember(action command.Action) bool {
	return action != command.ActionUnban && action != command.ActionDeleteMessages && action != command.ActionWarn
}

func rateReason(check Check, wait time.Duration) string {
	wait = wait.Round(time.Second)
	switch check {
	case CheckCooldown:
		return fmt.Sprintf("cooldown active, retry in %s", wait)
	case CheckMinuteLimit:
		return fmt.Sprintf("per-minute limit reached, retry in %s", wait)
	default:
		return fmt.Sprintf("per-hour limit reached, retry in %s", wait)
	}
}

// ListAdd and ListRemove are the admin entry points for the three lists.
func (v *Validator) ListAdd(ctx context.Context, list List, guildID, userID, by string) error {
	return v.lists.Add(ctx, list, guildID, userID, by)
}

func (v *Validator) ListRemove(ctx context.Context, list List, guildID, userID string) error {
	return v.lists.Remove(ctx, list, guildID, userID)
}
