package audit

import (
	"context"
	"time"

	"sentinel-nlmod/internal/storage"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

const EventModeration = "moderation"

// Record is the audit entry emitted for every moderation attempt, successful
// or not.
type Record struct {
	GuildID    string    `json:"guildId"`
	ActorID    string    `json:"actorId"`
	Action     string    `json:"action"`
	TargetID   string    `json:"targetId"`
	Reason     string    `json:"reason,omitempty"`
	Success    bool      `json:"success"`
	DurationMs int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
	BatchID    string    `json:"batchId,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

// Sink receives a copy of every record, e.g. an external stream.
type Sink interface {
	Publish(ctx context.Context, record Record) error
}

type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.AuditLog)
	sinks  []Sink
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

func (l *Logger) AddSink(sink Sink) {
	if sink != nil {
		l.sinks = append(l.sinks, sink)
	}
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) {
	entry := storage.AuditLog{
		GuildID:   guildID,
		UserID:    userID,
		Level:     level,
		Event:     event,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry); err != nil {
			l.logger.Warn("audit log write failed", zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit", zap.String("level", level), zap.String("guild_id", guildID), zap.String("user_id", userID), zap.String("event", event), zap.String("details", details))
}

// Record persists one moderation attempt, mirrors it to the notifier and the
// sinks, and logs it. Write failures are logged, never returned.
func (l *Logger) Record(ctx context.Context, record Record) {
	if record.At.IsZero() {
		record.At = time.Now()
	}
	if l.store != nil {
		err := l.store.AddModerationAction(ctx, storage.ModerationAction{
			GuildID:    record.GuildID,
			ActorID:    record.ActorID,
			Action:     record.Action,
			TargetID:   record.TargetID,
			Reason:     record.Reason,
			Success:    record.Success,
			DurationMs: record.DurationMs,
			Error:      record.Error,
			BatchID:    record.BatchID,
			CreatedAt:  record.At,
		})
		if err != nil {
			l.logger.Warn("moderation action write failed", zap.Error(err))
		}
	}

	level := LevelInfo
	if !record.Success {
		level = LevelWarn
	}
	if l.notify != nil {
		details, err := json.Marshal(record)
		if err != nil {
			details = []byte(record.Action + " " + record.TargetID)
		}
		l.notify(ctx, storage.AuditLog{
			GuildID:   record.GuildID,
			UserID:    record.ActorID,
			Level:     level,
			Event:     EventModeration,
			Details:   string(details),
			CreatedAt: record.At,
		})
	}
	for _, sink := range l.sinks {
		if err := sink.Publish(ctx, record); err != nil {
			l.logger.Warn("audit sink failed", zap.Error(err))
		}
	}

	l.logger.Info("moderation",
		zap.String("guild_id", record.GuildID),
		zap.String("actor_id", record.ActorID),
		zap.String("action", record.Action),
		zap.String("target_id", record.TargetID),
		zap.Bool("success", record.Success),
		zap.Int64("duration_ms", record.DurationMs),
		zap.String("error", record.Error),
		zap.String("batch_id", record.BatchID),
	)
}

// DecodeRecord reads a record back from notifier details.
func DecodeRecord(details string) (Record, error) {
	var record Record
	err := json.Unmarshal([]byte(details), &record)
	return record, err
}
