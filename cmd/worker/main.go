package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/cxp-circuitos/cxp/internal/ap"
	"github.com/cxp-circuitos/cxp/internal/app"
	jobmetrics "github.com/cxp-circuitos/cxp/internal/jobs"
	"github.com/cxp-circuitos/cxp/internal/platform/cache"
	"github.com/cxp-circuitos/cxp/internal/platform/db"
	"github.com/cxp-circuitos/cxp/jobs"
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

	apCache := ap.NewCache(redisClient, cfg.CacheTTL)
	apService := ap.NewService(ap.NewRepository(pool), apCache, logger, cfg.ExchangeRate())
	warmupJob := jobs.NewSummaryWarmupJob(apService, logger, jobmetrics.NewMetrics(nil))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	var schedule []jobs.CronRegistration
	if cfg.WarmupCron != "" {
		warmupTask, err := jobs.NewSummaryWarmupTask(jobs.SummaryWarmupPayload{Reason: "scheduled"})
		if err != nil {
			logger.Error("build warmup task", slog.Any("error", err))
			os.Exit(1)
		}
		schedule = append(schedule, jobs.CronRegistration{Spec: cfg.WarmupCron, Task: warmupTask})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSummaryWarmup, Handler: warmupJob.Handle},
		},
		Cron: schedule,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	// Every mutation bumps the cache version; rebuild summaries shortly after.
	err = apCache.ListenForInvalidation(ctx, func(version int64) {
		payload := jobs.SummaryWarmupPayload{Reason: "bump", Version: version}
		if _, err := client.EnqueueSummaryWarmup(ctx, payload); err != nil {
			logger.Warn("enqueue summary warmup", slog.Int64("version", version), slog.Any("error", err))
		}
	})
	if err != nil {
		logger.Error("subscribe cache bumps", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
