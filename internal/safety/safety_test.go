package safety

import (
	"context"
	"sync"
	"testing"
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/platform"
	"sentinel-nlmod/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func moderator() Actor {
	return Actor{
		GuildID: "g1",
		OwnerID: "owner",
		Member:  platform.Member{UserID: "mod", RolePosition: 5, Permissions: discordgo.PermissionBanMembers | discordgo.PermissionKickMembers | discordgo.PermissionModerateMembers},
		Bot:     platform.Member{UserID: "bot", RolePosition: 10, IsBot: true},
	}
}

func newValidator(t *testing.T) (*Validator, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	v := NewValidator(DefaultConfig(), NewLists(nil), zap.NewNop())
	v.WithClock(clock)
	return v, clock
}

func TestValidateTargetEqualRole(t *testing.T) {
	v, _ := newValidator(t)
	decision := v.ValidateTarget(moderator(), platform.Member{UserID: "peer", RolePosition: 5}, command.ActionKick)
	if decision.Allowed {
		t.Fatalf("expected equal role position to be denied")
	}
	if decision.Check != CheckTargetHierarchy {
		t.Fatalf("expected target hierarchy check, got %s", decision.Check)
	}
}

func TestValidateTargetProtections(t *testing.T) {
	v, _ := newValidator(t)
	actor := moderator()
	if err := v.ListAdd(context.Background(), ListProtected, "g1", "vip", "owner"); err != nil {
		t.Fatalf("protect: %v", err)
	}

	cases := []struct {
		target platform.Member
		check  Check
	}{
		{platform.Member{UserID: "vip", RolePosition: 1}, CheckProtected},
		{platform.Member{UserID: "mod", RolePosition: 5}, CheckSelf},
		{platform.Member{UserID: "bot", RolePosition: 10, IsBot: true}, CheckBot},
		{platform.Member{UserID: "owner", RolePosition: 1}, CheckOwner},
		{platform.Member{UserID: "admin", RolePosition: 7}, CheckTargetHierarchy},
	}
	for _, tc := range cases {
		decision := v.ValidateTarget(actor, tc.target, command.ActionMute)
		if decision.Allowed || decision.Check != tc.check {
			t.Fatalf("target %s: expected %s, got %+v", tc.target.UserID, tc.check, decision)
		}
	}

	if decision := v.ValidateTarget(actor, platform.Member{UserID: "user", RolePosition: 1}, command.ActionMute); !decision.Allowed {
		t.Fatalf("expected regular member allowed, got %+v", decision)
	}
}

func TestValidateTargetBotHierarchy(t *testing.T) {
	v, _ := newValidator(t)
	actor := moderator()
	actor.Member.RolePosition = 20
	decision := v.ValidateTarget(actor, platform.Member{UserID: "senior", RolePosition: 12}, command.ActionKick)
	if decision.Allowed || decision.Check != CheckBotHierarchy {
		t.Fatalf("expected bot hierarchy denial, got %+v", decision)
	}
}

func TestValidateActorOrder(t *testing.T) {
	v, _ := newValidator(t)
	actor := moderator()
	ctx := context.Background()

	if err := v.ListAdd(ctx, ListBlacklist, "g1", "mod", "owner"); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if d := v.ValidateActor(actor, command.ActionBan, nil); d.Allowed || d.Check != CheckBlacklist {
		t.Fatalf("expected blacklist denial, got %+v", d)
	}
	if err := v.ListRemove(ctx, ListBlacklist, "g1", "mod"); err != nil {
		t.Fatalf("unblacklist: %v", err)
	}

	d := v.ValidateActor(actor, command.ActionDeleteMessages, nil)
	if d.Allowed || d.Check != CheckPermission || d.RequiredPermission != "MANAGE_MESSAGES" {
		t.Fatalf("expected permission denial, got %+v", d)
	}

	if err := v.ListAdd(ctx, ListWhitelist, "g1", "mod", "owner"); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	if d := v.ValidateActor(actor, command.ActionDeleteMessages, nil); !d.Allowed {
		t.Fatalf("expected whitelist to bypass permission bits, got %+v", d)
	}

	d = v.ValidateActor(actor, command.ActionKick, []platform.Member{{UserID: "admin", RolePosition: 9}})
	if d.Allowed || d.Check != CheckHierarchy {
		t.Fatalf("expected hierarchy denial, got %+v", d)
	}
}

func TestValidateActorOwnerBypass(t *testing.T) {
	v, _ := newValidator(t)
	actor := moderator()
	actor.Member = platform.Member{UserID: "owner", RolePosition: 0}
	if d := v.ValidateActor(actor, command.ActionBan, []platform.Member{{UserID: "x", RolePosition: 9}}); !d.Allowed {
		t.Fatalf("expected owner allowed, got %+v", d)
	}
}

func TestRateLimitPerMinute(t *testing.T) {
	v, clock := newValidator(t)
	actor := moderator()
	limit := v.limitFor(command.ActionMute)

	for i := 0; i < limit.PerMinute; i++ {
		if d := v.ValidateActor(actor, command.ActionMute, nil); !d.Allowed {
			t.Fatalf("attempt %d: expected allowed, got %+v", i+1, d)
		}
		clock.Advance(limit.Cooldown + time.Second)
	}

	d := v.ValidateActor(actor, command.ActionMute, nil)
	if d.Allowed {
		t.Fatalf("expected attempt %d to be rejected", limit.PerMinute+1)
	}
	if d.Check != CheckMinuteLimit || d.RetryAfter <= 0 {
		t.Fatalf("expected minute limit with retry, got %+v", d)
	}

	clock.Advance(time.Minute)
	if d := v.ValidateActor(actor, command.ActionMute, nil); !d.Allowed {
		t.Fatalf("expected window to reopen, got %+v", d)
	}
}

func TestRateLimitCooldownAndHour(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultLimit = Limit{Cooldown: 10 * time.Second, PerMinute: 100, PerHour: 3}
	v := NewValidator(cfg, nil, nil)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	v.WithClock(clock)
	actor := moderator()

	if d := v.ValidateActor(actor, command.ActionWarn, nil); !d.Allowed {
		t.Fatalf("expected first warn allowed, got %+v", d)
	}
	clock.Advance(time.Second)
	if d := v.ValidateActor(actor, command.ActionWarn, nil); d.Allowed || d.Check != CheckCooldown {
		t.Fatalf("expected cooldown, got %+v", d)
	}
	if d := v.ValidateActor(actor, command.ActionMute, nil); !d.Allowed {
		t.Fatalf("limits are per action, got %+v", d)
	}

	for i := 0; i < 2; i++ {
		clock.Advance(11 * time.Second)
		if d := v.ValidateActor(actor, command.ActionWarn, nil); !d.Allowed {
			t.Fatalf("expected warn %d allowed, got %+v", i+2, d)
		}
	}
	clock.Advance(11 * time.Second)
	if d := v.ValidateActor(actor, command.ActionWarn, nil); d.Allowed || d.Check != CheckHourLimit {
		t.Fatalf("expected hour limit, got %+v", d)
	}

	if removed := v.ResetRateLimits("g1", "mod"); removed != 2 {
		t.Fatalf("expected 2 windows reset, got %d", removed)
	}
	if d := v.ValidateActor(actor, command.ActionWarn, nil); !d.Allowed {
		t.Fatalf("expected allowed after reset, got %+v", d)
	}
}

func TestRateLimitKeepsHitOnRemovedEntry(t *testing.T) {
	r := NewRateLimiter()
	now := time.Unix(1_700_000_000, 0)
	limit := Limit{PerMinute: 1}
	key := rateKey("g1", "mod", command.ActionBan)

	stale := r.entry(key)
	if removed := r.Cleanup(now); removed != 1 {
		t.Fatalf("expected empty window cleaned, got %d", removed)
	}
	if _, _, live := r.allowOn(stale, limit, now); live {
		t.Fatalf("removed entry should not record")
	}

	if check, _ := r.Allow("g1", "mod", command.ActionBan, limit, now); check != "" {
		t.Fatalf("expected first ban allowed, got %s", check)
	}
	if check, _ := r.Allow("g1", "mod", command.ActionBan, limit, now.Add(time.Second)); check != CheckMinuteLimit {
		t.Fatalf("expected hit to be counted, got %q", check)
	}
	if r.Tracked() != 1 {
		t.Fatalf("expected one window, got %d", r.Tracked())
	}
}

func TestRateLimitConcurrentCleanup(t *testing.T) {
	r := NewRateLimiter()
	now := time.Unix(1_700_000_000, 0)
	limit := Limit{PerHour: 1000}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Allow("g1", "mod", command.ActionWarn, limit, now)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Cleanup(now)
			}
		}()
	}
	wg.Wait()

	k := rateKey("g1", "mod", command.ActionWarn)
	if got := r.entry(k).window.Count(now); got != 400 {
		t.Fatalf("expected 400 recorded hits, got %d", got)
	}
}

func TestCheckActorDoesNotRecord(t *testing.T) {
	v, _ := newValidator(t)
	actor := moderator()
	for i := 0; i < 20; i++ {
		if d := v.CheckActor(actor, command.ActionBan, nil); !d.Allowed {
			t.Fatalf("check %d: expected allowed, got %+v", i, d)
		}
	}
	if v.Stats("g1").TrackedRateKeys != 0 {
		t.Fatalf("expected no rate windows")
	}
}

func TestRequiresConfirmation(t *testing.T) {
	v, _ := newValidator(t)
	if !v.RequiresConfirmation(command.ActionBan, 1) || !v.RequiresConfirmation(command.ActionUnban, 1) {
		t.Fatalf("ban and unban require confirmation")
	}
	if v.RequiresConfirmation(command.ActionMute, 2) {
		t.Fatalf("two mutes do not require confirmation")
	}
	if !v.RequiresConfirmation(command.ActionWarn, 3) {
		t.Fatalf("three targets require confirmation")
	}
	for i := 0; i < 3; i++ {
		if v.RequiresConfirmation(command.ActionKick, 2) != v.RequiresConfirmation(command.ActionKick, 2) {
			t.Fatalf("expected identical answers")
		}
	}
}

func TestListsPersist(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	lists := NewLists(store)
	if err := lists.Add(context.Background(), ListProtected, "g1", "vip", "owner"); err != nil {
		t.Fatalf("add: %v", err)
	}

	reloaded := NewLists(store)
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reloaded.Contains(ListProtected, "g1", "vip") {
		t.Fatalf("expected persisted entry")
	}
	if reloaded.Contains(ListProtected, "g2", "vip") {
		t.Fatalf("entries are per guild")
	}

	reloaded.Seed(ListProtected, []string{"global"})
	if !reloaded.Contains(ListProtected, "g2", "global") {
		t.Fatalf("seeded entries apply to every guild")
	}
}
