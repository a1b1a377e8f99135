package opslog

import (
	"context"
	"testing"
	"time"

	"pittbot/internal/storage"

	"go.uber.org/zap"
)

func TestLogPersistsAndNotifies(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := NewLogger(store, zap.NewNop())

	var notified storage.OpsLog
	logger.SetNotifier(func(ctx context.Context, entry storage.OpsLog) {
		notified = entry
	})

	ctx := context.Background()
	logger.Warn(ctx, "g1", "u1", "verify_abort", "invite binding missing")

	if notified.Level != LevelWarn || notified.Event != "verify_abort" {
		t.Fatalf("unexpected notification %+v", notified)
	}

	logs, err := store.ListOpsLogs(ctx, "g1", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Details != "invite binding missing" {
		t.Fatalf("unexpected logs %+v", logs)
	}
}
