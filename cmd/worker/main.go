package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/buildsight/buildsight/internal/app"
	"github.com/buildsight/buildsight/internal/observability"
	"github.com/buildsight/buildsight/internal/platform/cache"
	"github.com/buildsight/buildsight/internal/platform/db"
	"github.com/buildsight/buildsight/internal/reportgen"
	"github.com/buildsight/buildsight/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
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

	metrics := observability.NewMetrics()
	jobMetrics := metrics.Jobs()
	pipeline := app.NewPipeline(cfg, pool, redisClient, metrics, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	reportJob := reportgen.NewJob(reportgen.JobConfig{
		Service:  pipeline.Reports,
		Storage:  pipeline.Storage,
		Notifier: jobClient,
		Metrics:  jobMetrics,
		Logger:   logger,
	})
	readyJob := jobs.NewReportReadyJob(logger, jobMetrics)
	endUseJob := jobs.NewEndUseRefreshJob(pipeline.Store, pipeline.EndUse, logger, jobMetrics)
	purgeJob := jobs.NewReportPurgeJob(pipeline.Storage.Dir(), logger, jobMetrics)

	purgeTask, err := jobs.NewReportPurgeTask(cfg.ReportRetention)
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportGenerate, Handler: reportJob.Handle},
			{Type: jobs.TaskReportReady, Handler: readyJob.Handle},
			{Type: jobs.TaskEndUseRefresh, Handler: endUseJob.Handle},
			{Type: jobs.TaskReportPurge, Handler: purgeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
