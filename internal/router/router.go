// Package router picks the response mode for a parsed message.
package router

import (
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/mention"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultStickyWindow = 5 * time.Minute
	defaultMemorySize   = 10000
)

type Input struct {
	GuildID string
	UserID  string
	Command command.ParsedCommand
	Context mention.Context
	// ValidatorConfirmation is the safety validator's own confirmation verdict.
	ValidatorConfirmation bool
}

type Decision struct {
	Mode   command.Mode
	Sticky bool
	Rule   string
}

// Turn is the remembered outcome of an actor's previous message.
type Turn struct {
	Mode   command.Mode
	Action command.Action
	At     time.Time
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Router applies the mode decision table and remembers each actor's last
// turn for session stickiness.
type Router struct {
	threshold float64
	window    time.Duration
	memory    *expirable.LRU[string, Turn]
	clock     Clock
}

func New(threshold float64, window time.Duration, size int) *Router {
	if window <= 0 {
		window = DefaultStickyWindow
	}
	if size <= 0 {
		size = defaultMemorySize
	}
	return &Router{
		threshold: threshold,
		window:    window,
		memory:    expirable.NewLRU[string, Turn](size, nil, window),
		clock:     realClock{},
	}
}

func (r *Router) WithClock(clock Clock) {
	r.clock = clock
}

// Resolve decides the mode and records it as the actor's latest turn.
//
//  1. recognized, confident, no confirmation needed -> COMMAND
//  2. recognized, confident, confirmation needed -> CONFIRMATION
//  3. recognized but unclear (no target, or low confidence outside a live
//     session), not casual -> CLARIFICATION
//  4. recognized and the previous turn was COMMAND within the window -> COMMAND (sticky)
//  5. anything else -> CHAT
func (r *Router) Resolve(in Input) Decision {
	decision := r.decide(in)
	r.memory.Add(memoryKey(in.GuildID, in.UserID), Turn{
		Mode:   decision.Mode,
		Action: in.Command.Action,
		At:     r.clock.Now(),
	})
	return decision
}

func (r *Router) decide(in Input) Decision {
	cmd := in.Command
	if !cmd.Recognized() {
		return Decision{Mode: command.ModeChat, Rule: "no_action"}
	}

	confirm := cmd.RequiresConfirmation || in.ValidatorConfirmation
	hasTargets := len(cmd.Targets) > 0
	confident := cmd.Confidence >= r.threshold

	switch {
	case confident && hasTargets && !confirm:
		return Decision{Mode: command.ModeCommand, Rule: "confident"}
	case confident && hasTargets && confirm:
		return Decision{Mode: command.ModeConfirmation, Rule: "confirmation"}
	}

	sticky := r.sticky(in.GuildID, in.UserID)
	if !in.Context.IsCasualMention {
		if confident && !hasTargets {
			return Decision{Mode: command.ModeClarification, Rule: "missing_target"}
		}
		if hasTargets && !sticky {
			return Decision{Mode: command.ModeClarification, Rule: "ambiguous"}
		}
	}
	if sticky && hasTargets {
		if confirm {
			return Decision{Mode: command.ModeConfirmation, Sticky: true, Rule: "sticky_confirmation"}
		}
		return Decision{Mode: command.ModeCommand, Sticky: true, Rule: "sticky"}
	}
	return Decision{Mode: command.ModeChat, Rule: "default"}
}

// Last returns the actor's previous turn if it is still inside the window.
func (r *Router) Last(guildID, userID string) (Turn, bool) {
	turn, ok := r.memory.Peek(memoryKey(guildID, userID))
	if !ok {
		return Turn{}, false
	}
	if r.clock.Now().Sub(turn.At) > r.window {
		return Turn{}, false
	}
	return turn, true
}

func (r *Router) sticky(guildID, userID string) bool {
	turn, ok := r.Last(guildID, userID)
	return ok && turn.Mode == command.ModeCommand
}

func (r *Router) Forget(guildID, userID string) {
	r.memory.Remove(memoryKey(guildID, userID))
}

func (r *Router) Size() int {
	return r.memory.Len()
}

func memoryKey(guildID, userID string) string {
	return guildID + ":" + userID
}
