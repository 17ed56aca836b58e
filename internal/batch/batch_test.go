package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"sentinel-nlmod/internal/command"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func targets(n int) []command.TargetRef {
	out := make([]command.TargetRef, n)
	for i := range out {
		out[i] = command.TargetRef{ID: fmt.Sprintf("u%d", i)}
	}
	return out
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Delay = 0
	cfg.Jitter = 0
	cfg.DrainInterval = 10 * time.Millisecond
	return cfg
}

func newQueue(t *testing.T, cfg Config, execute ExecuteFunc) *Queue {
	t.Helper()
	q, err := New(cfg, execute, nil, zap.NewNop())
	require.NoError(t, err)
	return q
}

func TestEnqueueLimits(t *testing.T) {
	q := newQueue(t, fastConfig(), func(context.Context, Operation, command.TargetRef) command.TargetResult {
		return command.TargetResult{Success: true}
	})

	_, err := q.Enqueue(Operation{Command: command.ParsedCommand{Targets: targets(11)}})
	assert.True(t, errors.Is(err, ErrBatchTooLarge))

	_, err = q.Enqueue(Operation{})
	assert.True(t, errors.Is(err, ErrEmpty))

	op, err := q.Enqueue(Operation{Command: command.ParsedCommand{Action: command.ActionKick, Targets: targets(10)}})
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, op.Status)
	assert.Equal(t, 10, op.Total)
	assert.NotEmpty(t, op.ID)
}

func TestEachTargetProcessedExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]int)
	q := newQueue(t, fastConfig(), func(_ context.Context, _ Operation, target command.TargetRef) command.TargetResult {
		mu.Lock()
		seen[target.ID]++
		mu.Unlock()
		if target.ID == "u2" {
			return command.TargetResult{Target: target, Error: "not found"}
		}
		return command.TargetResult{Target: target, Success: true}
	})

	var progress []Progress
	var summary Summary
	q.OnProgress(func(_ Operation, p Progress) { progress = append(progress, p) })
	q.OnComplete(func(_ Operation, s Summary) { summary = s })

	op, err := q.Enqueue(Operation{Command: command.ParsedCommand{Action: command.ActionWarn, Targets: targets(5)}})
	require.NoError(t, err)

	// Two concurrent drains must not run the operation twice.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Drain(context.Background())
		}()
	}
	wg.Wait()

	final, ok := q.Get(op.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, 5, final.Progress)
	assert.Len(t, final.Results, 5)
	for id, count := range seen {
		assert.Equal(t, 1, count, id)
	}
	require.Len(t, progress, 5)
	assert.Equal(t, Progress{Processed: 5, Total: 5, Succeeded: 4, Failed: 1}, progress[4])
	assert.Equal(t, 4, summary.Succeeded)
	assert.Contains(t, summary.ErrorDetail, "<@u2>: not found")
}

func TestAllFailuresMarkFailed(t *testing.T) {
	q := newQueue(t, fastConfig(), func(_ context.Context, _ Operation, target command.TargetRef) command.TargetResult {
		return command.TargetResult{Target: target, Error: "forbidden"}
	})
	op, err := q.Enqueue(Operation{Command: command.ParsedCommand{Targets: targets(2)}})
	require.NoError(t, err)
	q.Drain(context.Background())

	final, _ := q.Get(op.ID)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Equal(t, 1, q.Stats().Failed)
}

func TestCancelQueued(t *testing.T) {
	q := newQueue(t, fastConfig(), func(context.Context, Operation, command.TargetRef) command.TargetResult {
		t.Fatalf("cancelled operation must not run")
		return command.TargetResult{}
	})
	op, err := q.Enqueue(Operation{Command: command.ParsedCommand{Targets: targets(3)}})
	require.NoError(t, err)

	cancelled, err := q.Cancel(op.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 0, q.Drain(context.Background()))

	_, err = q.Cancel(op.ID)
	assert.True(t, errors.Is(err, ErrFinished))
	_, err = q.Cancel("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCancelExecutingStopsFutureTargets(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	q := newQueue(t, fastConfig(), func(_ context.Context, _ Operation, target command.TargetRef) command.TargetResult {
		calls++
		if calls == 1 {
			close(started)
			<-release
		}
		return command.TargetResult{Target: target, Success: true}
	})

	op, err := q.Enqueue(Operation{Command: command.ParsedCommand{Targets: targets(4)}})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		q.Drain(context.Background())
		close(done)
	}()
	<-started

	current, err := q.Cancel(op.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, current.Status)

	inFlight, ok := q.Get(op.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, inFlight.Status)
	assert.Equal(t, 1, q.Stats().Executing)
	close(release)
	<-done

	final, ok := q.Get(op.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, final.Status)
	assert.Equal(t, 1, final.Progress)
	assert.Equal(t, 1, calls)
}

func TestRunDrainsOnSignal(t *testing.T) {
	finished := make(chan Operation, 1)
	q := newQueue(t, fastConfig(), func(_ context.Context, _ Operation, target command.TargetRef) command.TargetResult {
		return command.TargetResult{Target: target, Success: true}
	})
	q.OnComplete(func(op Operation, _ Summary) { finished <- op })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx) }()

	op, err := q.Enqueue(Operation{Command: command.ParsedCommand{Targets: targets(2)}})
	require.NoError(t, err)

	select {
	case done := <-finished:
		assert.Equal(t, op.ID, done.ID)
		assert.Equal(t, StatusCompleted, done.Status)
	case <-time.After(2 * time.Second):
		t.Fatalf("batch did not finish")
	}
}
