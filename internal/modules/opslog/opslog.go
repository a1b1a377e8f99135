package opslog

import (
	"context"
	"time"

	"pittbot/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.OpsLog)
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// SetNotifier installs the channel sink. The bot sets this once the
// session is connected so entries also land in each guild's log channel.
func (l *Logger) SetNotifier(notify func(context.Context, storage.OpsLog)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) {
	entry := storage.OpsLog{
		GuildID:   guildID,
		UserID:    userID,
		Level:     level,
		Event:     event,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if l.store != nil {
		_ = l.store.AddOpsLog(ctx, entry)
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("ops", zap.String("level", level), zap.String("guild_id", guildID), zap.String("user_id", userID), zap.String("event", event), zap.String("details", details))
}

func (l *Logger) Info(ctx context.Context, guildID, userID, event, details string) {
	l.Log(ctx, LevelInfo, guildID, userID, event, details)
}

func (l *Logger) Warn(ctx context.Context, guildID, userID, event, details string) {
	l.Log(ctx, LevelWarn, guildID, userID, event, details)
}

func (l *Logger) Crit(ctx context.Context, guildID, userID, event, details string) {
	l.Log(ctx, LevelCrit, guildID, userID, event, details)
}
