package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pittbot/internal/bot"
	"pittbot/internal/config"
	"pittbot/internal/modules/opslog"
	"pittbot/internal/storage"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	ops := opslog.NewLogger(store, logger)

	botSvc, err := bot.New(cfg, logger, store, ops)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Maintenance.CronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		cutoff := time.Now().Add(-time.Duration(cfg.Maintenance.PendingTTLHours) * time.Hour)
		pruned, err := store.DeleteStaleVerifyingUsers(ctx, cutoff)
		if err != nil {
			logger.Error("pending prune failed", zap.Error(err))
		} else if pruned > 0 {
			logger.Info("pruned stale pending verifications", zap.Int64("count", pruned))
		}

		if err := store.CleanupOpsLogs(ctx, cfg.Maintenance.RetentionDays); err != nil {
			logger.Error("ops log cleanup failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("maintenance schedule invalid", zap.Error(err))
	}
	scheduler.Start()

	var server *http.Server
	if cfg.Health.Enabled {
		server = &http.Server{Addr: cfg.Health.Addr}
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	<-scheduler.Stop().Done()
	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
