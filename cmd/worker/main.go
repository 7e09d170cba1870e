package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sitebooks/sitebooks/internal/app"
	jobmetrics "github.com/sitebooks/sitebooks/internal/jobs"
	"github.com/sitebooks/sitebooks/internal/platform/cache"
	"github.com/sitebooks/sitebooks/internal/platform/db"
	"github.com/sitebooks/sitebooks/internal/siteprofit"
	"github.com/sitebooks/sitebooks/jobs"
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
	if !cfg.JobsEnabled {
		logger.Info("background jobs disabled, worker exiting")
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, PingTimeout: 5 * time.Second})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, 5*time.Second)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	reportService := siteprofit.NewService(siteprofit.NewRepository(pool), siteprofit.ServiceConfig{
		MissingDepartment: cfg.ReportMissingDepartment,
		MaxParallelReads:  cfg.ReportMaxParallelReads,
	})
	snapshotService := siteprofit.NewSnapshotService(reportService, siteprofit.NewSnapshotRepository(pool))
	snapshotJob := jobs.NewSiteProfitSnapshotJob(snapshotService, logger, jobmetrics.NewMetrics(nil))

	var cron []jobs.CronRegistration
	if cfg.SnapshotCron != "" {
		// An empty payload resolves to month-to-date when the task runs.
		snapshotTask, err := jobs.NewSiteProfitSnapshotTask(time.Time{}, time.Time{})
		if err != nil {
			logger.Error("build snapshot task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.SnapshotCron,
			Task:    snapshotTask,
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSiteProfitSnapshot, Handler: snapshotJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("snapshot_cron", cfg.SnapshotCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
