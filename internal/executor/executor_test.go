package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/modules/audit"
	"sentinel-nlmod/internal/platform"
	"sentinel-nlmod/internal/storage"
	"sentinel-nlmod/internal/undo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	fake  *platform.Fake
	store *storage.Store
	undo  *undo.Store
	exec  *Executor
}

func newHarness(t *testing.T, timeout time.Duration) harness {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(store.Close)

	fake := platform.NewFake()
	fake.AddMember("g1", platform.Member{UserID: "u1", DisplayName: "one"})
	fake.AddMember("g1", platform.Member{UserID: "u2", DisplayName: "two"})

	undoStore := undo.New(5*time.Minute, 10)
	exec := New(fake, audit.NewLogger(store, zap.NewNop()), undoStore, nil, timeout, zap.NewNop())
	return harness{fake: fake, store: store, undo: undoStore, exec: exec}
}

func (h harness) actions(t *testing.T) []storage.ModerationAction {
	t.Helper()
	actions, err := h.store.ListModerationActions(context.Background(), "g1", time.Now().Add(-time.Hour), 100)
	require.NoError(t, err)
	return actions
}

func TestExecuteSuccessIsAuditedAndRemembered(t *testing.T) {
	h := newHarness(t, time.Second)
	result := h.exec.Execute(context.Background(), Request{
		GuildID: "g1",
		ActorID: "mod",
		Action:  command.ActionMute,
		Target:  command.TargetRef{ID: "u1"},
		Params:  command.Params{Reason: "spam", Duration: command.Minutes(10, "10 phút")},
		Group:   "cmd-1",
	})
	require.True(t, result.Success, result.Error)
	_, muted := h.fake.Muted("g1", "u1")
	assert.True(t, muted)

	actions := h.actions(t)
	require.Len(t, actions, 1)
	assert.Equal(t, "mute", actions[0].Action)
	assert.Equal(t, "spam", actions[0].Reason)
	assert.True(t, actions[0].Success)

	recent := h.undo.Recent("g1", "mod")
	require.Len(t, recent, 1)
	assert.Equal(t, "cmd-1", recent[0].Group)
}

func TestExecuteFailureDoesNotPanicAndIsAudited(t *testing.T) {
	h := newHarness(t, time.Second)
	result := h.exec.Execute(context.Background(), Request{
		GuildID: "g1",
		ActorID: "mod",
		Action:  command.ActionKick,
		Target:  command.TargetRef{ID: "ghost"},
	})
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)

	actions := h.actions(t)
	require.Len(t, actions, 1)
	assert.False(t, actions[0].Success)
	assert.NotEmpty(t, actions[0].Error)
	assert.Len(t, h.undo.Recent("g1", "mod"), 1)
}

func TestExecuteTimeout(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	h.fake.SetDelay(time.Second)

	start := time.Now()
	result := h.exec.Execute(context.Background(), Request{
		GuildID: "g1",
		ActorID: "mod",
		Action:  command.ActionWarn,
		Target:  command.TargetRef{ID: "u1"},
	})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, platform.ErrTimeout.Error())
}

func TestExecuteGuardSkipsPlatform(t *testing.T) {
	h := newHarness(t, time.Second)
	result := h.exec.Execute(context.Background(), Request{
		GuildID: "g1",
		ActorID: "mod",
		Action:  command.ActionBan,
		Target:  command.TargetRef{ID: "u2"},
		Guard: func(context.Context, command.TargetRef) error {
			return &RejectedError{Reason: "target is protected"}
		},
	})
	assert.False(t, result.Success)
	assert.Equal(t, "target is protected", result.Error)
	assert.Empty(t, h.fake.Calls())
	assert.True(t, isRejection(&RejectedError{}))
	assert.False(t, isRejection(errors.New("x")))
}
