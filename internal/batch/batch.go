// Package batch queues multi-target commands and runs them one operation at
// a time from a single drain loop.
package batch

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"sentinel-nlmod/internal/command"
	"sentinel-nlmod/internal/metrics"
	"sentinel-nlmod/internal/reply"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

var (
	ErrBatchTooLarge = errors.New("batch: too many targets")
	ErrEmpty         = errors.New("batch: no targets")
	ErrNotFound      = errors.New("batch: operation not found")
	ErrFinished      = errors.New("batch: operation already finished")
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Operation struct {
	ID          string
	GuildID     string
	ActorID     string
	ChannelID   string
	Language    string
	Command     command.ParsedCommand
	Params      command.Params
	Status      Status
	Progress    int
	Total       int
	Results     []command.TargetResult
	CreatedAt   time.Time
	CompletedAt time.Time
}

func (o Operation) Counts() (succeeded, failed int) {
	return reply.Count(o.Results)
}

func (o Operation) snapshot() Operation {
	o.Results = append([]command.TargetResult(nil), o.Results...)
	o.Command.Targets = append([]command.TargetRef(nil), o.Command.Targets...)
	return o
}

type Progress struct {
	Processed int
	Total     int
	Succeeded int
	Failed    int
}

type Summary struct {
	Succeeded   int
	Failed      int
	ErrorDetail string
}

// ExecuteFunc runs the operation's action against one target.
type ExecuteFunc func(ctx context.Context, op Operation, target command.TargetRef) command.TargetResult

type Config struct {
	MaxSize       int
	Delay         time.Duration
	Jitter        time.Duration
	DrainInterval time.Duration
	HistorySize   int
	ErrorBudget   int
}

func DefaultConfig() Config {
	return Config{
		MaxSize:       10,
		Delay:         100 * time.Millisecond,
		Jitter:        50 * time.Millisecond,
		DrainInterval: 5 * time.Second,
		HistorySize:   100,
		ErrorBudget:   1000,
	}
}

type Stats struct {
	Queued    int
	Executing int
	Completed int
	Failed    int
	Cancelled int
	Processed int
}

type Queue struct {
	mu        sync.Mutex
	cfg       Config
	execute   ExecuteFunc
	logger    *zap.Logger
	metrics   *metrics.Metrics
	queued    map[string]*Operation
	order     []string
	active    map[string]*Operation
	cancelled map[string]bool
	history   *lru.Cache[string, Operation]
	processed int
	signal    chan struct{}
	drainMu   sync.Mutex

	onProgress func(Operation, Progress)
	onComplete func(Operation, Summary)
}

func New(cfg Config, execute ExecuteFunc, m *metrics.Metrics, logger *zap.Logger) (*Queue, error) {
	defaults := DefaultConfig()
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaults.MaxSize
	}
	if cfg.Delay < 0 {
		cfg.Delay = defaults.Delay
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = defaults.DrainInterval
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaults.HistorySize
	}
	if cfg.ErrorBudget <= 0 {
		cfg.ErrorBudget = defaults.ErrorBudget
	}
	history, err := lru.New[string, Operation](cfg.HistorySize)
	if err != nil {
		return nil, err
	}
	return &Queue{
		cfg:       cfg,
		execute:   execute,
		logger:    logger,
		metrics:   m,
		queued:    make(map[string]*Operation),
		active:    make(map[string]*Operation),
		cancelled: make(map[string]bool),
		history:   history,
		signal:    make(chan struct{}, 1),
	}, nil
}

func (q *Queue) OnProgress(fn func(Operation, Progress)) {
	q.onProgress = fn
}

func (q *Queue) OnComplete(fn func(Operation, Summary)) {
	q.onComplete = fn
}

func (q *Queue) MaxSize() int {
	return q.cfg.MaxSize
}

// Enqueue stores op as queued and wakes the drain loop. The caller never
// executes anything itself.
func (q *Queue) Enqueue(op Operation) (Operation, error) {
	total := len(op.Command.Targets)
	if total == 0 {
		return Operation{}, ErrEmpty
	}
	if total > q.cfg.MaxSize {
		return Operation{}, ErrBatchTooLarge
	}

	op.ID = uuid.NewString()
	op.Status = StatusQueued
	op.Total = total
	op.Progress = 0
	op.Results = make([]command.TargetResult, 0, total)
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}

	q.mu.Lock()
	stored := op.snapshot()
	q.queued[op.ID] = &stored
	q.order = append(q.order, op.ID)
	q.mu.Unlock()

	q.wake()
	return op.snapshot(), nil
}

// Cancel removes a queued operation or flags an executing one so no further
// targets are attempted. Targets already issued are not rolled back.
func (q *Queue) Cancel(id string) (Operation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if op, ok := q.queued[id]; ok {
		delete(q.queued, id)
		q.removeOrder(id)
		op.Status = StatusCancelled
		op.CompletedAt = time.Now()
		q.history.Add(id, op.snapshot())
		q.metrics.RecordBatch(string(StatusCancelled))
		return op.snapshot(), nil
	}
	if op, ok := q.active[id]; ok {
		q.cancelled[id] = true
		op.Status = StatusCancelled
		return op.snapshot(), nil
	}
	if op, ok := q.history.Peek(id); ok {
		return op, ErrFinished
	}
	return Operation{}, ErrNotFound
}

func (q *Queue) Get(id string) (Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if op, ok := q.queued[id]; ok {
		return op.snapshot(), true
	}
	if op, ok := q.active[id]; ok {
		return op.snapshot(), true
	}
	return q.history.Get(id)
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := Stats{Queued: len(q.queued), Executing: len(q.active), Processed: q.processed}
	for _, op := range q.history.Values() {
		switch op.Status {
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// Run drains the queue on every signal and every DrainInterval until ctx is
// done.
func (q *Queue) Run(ctx context.Context) error {
	ticker := time.NewTicker(q.cfg.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-q.signal:
		}
		q.Drain(ctx)
	}
}

// Drain executes queued operations until none are left and returns how many
// it ran. Concurrent calls are serialized.
func (q *Queue) Drain(ctx context.Context) int {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	ran := 0
	for ctx.Err() == nil {
		op, ok := q.claim()
		if !ok {
			break
		}
		q.run(ctx, op)
		ran++
	}
	return ran
}

// claim moves the oldest queued operation to the active set.
func (q *Queue) claim() (Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.order) > 0 {
		id := q.order[0]
		q.order = q.order[1:]
		op, ok := q.queued[id]
		if !ok {
			continue
		}
		delete(q.queued, id)
		op.Status = StatusExecuting
		q.active[id] = op
		return op.snapshot(), true
	}
	return Operation{}, false
}

func (q *Queue) run(ctx context.Context, op Operation) {
	q.logger.Info("batch started", zap.String("batch_id", op.ID), zap.String("action", op.Command.Action.String()), zap.Int("targets", op.Total))

	for i, target := range op.Command.Targets {
		if q.isCancelled(op.ID) || ctx.Err() != nil {
			break
		}
		result := q.execute(ctx, op, target)

		q.mu.Lock()
		live := q.active[op.ID]
		live.Results = append(live.Results, result)
		live.Progress++
		q.processed++
		current := live.snapshot()
		q.mu.Unlock()

		if q.onProgress != nil {
			succeeded, failed := current.Counts()
			q.onProgress(current, Progress{Processed: current.Progress, Total: current.Total, Succeeded: succeeded, Failed: failed})
		}
		if i < len(op.Command.Targets)-1 && !q.pause(ctx) {
			break
		}
	}
	q.finish(ctx, op.ID)
}

func (q *Queue) finish(ctx context.Context, id string) {
	q.mu.Lock()
	live := q.active[id]
	delete(q.active, id)
	cancelled := q.cancelled[id] || (ctx.Err() != nil && live.Progress < live.Total)
	delete(q.cancelled, id)

	succeeded, failed := live.Counts()
	switch {
	case cancelled:
		live.Status = StatusCancelled
	case succeeded == 0:
		live.Status = StatusFailed
	default:
		live.Status = StatusCompleted
	}
	live.CompletedAt = time.Now()
	final := live.snapshot()
	q.history.Add(id, final)
	q.mu.Unlock()

	q.metrics.RecordBatch(string(final.Status))
	q.logger.Info("batch finished",
		zap.String("batch_id", id),
		zap.String("status", string(final.Status)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
	)
	if q.onComplete != nil {
		q.onComplete(final, Summary{
			Succeeded:   succeeded,
			Failed:      failed,
			ErrorDetail: reply.ErrorDetail(final.Results, q.cfg.ErrorBudget),
		})
	}
}

// pause waits the inter-target delay plus jitter. It reports false when ctx
// ends first.
func (q *Queue) pause(ctx context.Context) bool {
	wait := q.cfg.Delay
	if q.cfg.Jitter > 0 {
		wait += time.Duration(rand.Int64N(int64(q.cfg.Jitter)))
	}
	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (q *Queue) isCancelled(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled[id]
}

func (q *Queue) removeOrder(id string) {
	for i, queued := range q.order {
		if queued == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
