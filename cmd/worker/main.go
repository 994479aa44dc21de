package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/settle/internal/app"
	jobmetrics "github.com/odyssey-erp/settle/internal/jobs"
	"github.com/odyssey-erp/settle/internal/platform/cache"
	"github.com/odyssey-erp/settle/internal/platform/db"
	"github.com/odyssey-erp/settle/internal/settlement/fxrate"
	"github.com/odyssey-erp/settle/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	fallbackJob := jobs.NewFXFallbackRefreshJob(
		fxrate.NewRepository(pool),
		fxrate.NewFallbackStore(redisClient, cfg.FXPair(), cfg.FXFallbackTTL),
		logger,
		jobmetrics.NewMetrics(nil),
	)

	refreshTask, err := jobs.NewFXFallbackRefreshTask(cfg.FXPair())
	if err != nil {
		logger.Error("build fallback refresh task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskFXFallbackRefresh, Handler: fallbackJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.FXFallbackCron, Task: refreshTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("pair", cfg.FXPair()))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
