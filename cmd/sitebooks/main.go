package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sitebooks/sitebooks/cmd/sitebooks/cli"
	"github.com/sitebooks/sitebooks/internal/app"
	"github.com/sitebooks/sitebooks/internal/observability"
	"github.com/sitebooks/sitebooks/internal/platform/cache"
	"github.com/sitebooks/sitebooks/internal/platform/db"
	"github.com/sitebooks/sitebooks/internal/siteprofit"
	"github.com/sitebooks/sitebooks/jobs"
	"github.com/sitebooks/sitebooks/migrations"
)

const usage = "usage: sitebooks [serve | migrate <up|down|version> | jobs <trigger|inspect|scheduled>]"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	command, args := "serve", os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	var code int
	switch command {
	case "serve":
		code = serve(ctx, cfg, logger)
	case "migrate":
		code = cli.MigrateCommand{
			Migrations: migrations.FS,
			DSN:        cfg.PGDSN,
			Stdout:     os.Stdout,
			Stderr:     os.Stderr,
		}.Run(args)
	case "jobs":
		code = cli.JobsCommand{
			RedisAddr: cfg.RedisAddr,
			Stdout:    os.Stdout,
			Stderr:    os.Stderr,
		}.Run(ctx, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		code = 2
	}
	stop()
	os.Exit(code)
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, PingTimeout: 5 * time.Second})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer dbpool.Close()

	readiness := map[string]app.Pinger{"postgres": dbpool}

	reportService := siteprofit.NewService(siteprofit.NewRepository(dbpool), siteprofit.ServiceConfig{
		MissingDepartment: cfg.ReportMissingDepartment,
		MaxParallelReads:  cfg.ReportMaxParallelReads,
	})
	snapshotService := siteprofit.NewSnapshotService(reportService, siteprofit.NewSnapshotRepository(dbpool))

	var (
		enqueuer   siteprofit.SnapshotEnqueuer
		jobHandler *jobs.Handler
	)
	if cfg.JobsEnabled {
		redisClient, err := cache.New(ctx, cfg.RedisAddr, 5*time.Second)
		if err != nil {
			logger.Warn("redis unavailable, background snapshots disabled", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			readiness["redis"] = app.RedisPinger{Client: redisClient}

			redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
			jobClient := jobs.NewClient(redisOpts)
			defer func() {
				if err := jobClient.Close(); err != nil {
					logger.Warn("job client close", slog.Any("error", err))
				}
			}()
			enqueuer = jobClient

			inspector := asynq.NewInspector(redisOpts)
			defer func() {
				if err := inspector.Close(); err != nil {
					logger.Warn("inspector close", slog.Any("error", err))
				}
			}()
			jobHandler = jobs.NewHandler(inspector, logger)
		}
	}

	siteProfitHandler := siteprofit.NewHandler(logger, reportService, snapshotService, enqueuer)
	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		SiteProfitHandler: siteProfitHandler,
		JobHandler:        jobHandler,
		Readiness:         readiness,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	code := 0
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			logger.Error("http server", slog.Any("error", err))
			code = 1
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return code
}
