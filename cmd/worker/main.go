package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/constructo-erp/constructo-erp/internal/app"
	"github.com/constructo-erp/constructo-erp/internal/companies"
	"github.com/constructo-erp/constructo-erp/internal/platform/cache"
	"github.com/constructo-erp/constructo-erp/internal/platform/db"
	"github.com/constructo-erp/constructo-erp/internal/projects"
	"github.com/constructo-erp/constructo-erp/internal/quotes"
	"github.com/constructo-erp/constructo-erp/jobs"
)

func main() {
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, statistics caching disabled", slog.Any("error", err))
		redisClient = nil
	}

	projectService := projects.NewService(projects.NewRepository(pool), logger)
	quoteService := quotes.NewService(quotes.ServiceParams{
		Repo:      quotes.NewRepository(pool),
		Projects:  projectService,
		Directory: companies.NewService(pool),
		Cache:     redisClient,
		Logger:    logger,
		Prefix:    cfg.QuoteNumberPrefix,
		StatsTTL:  cfg.StatsCacheTTL,
	})

	expiryTask, err := jobs.NewQuoteExpiryTask(jobs.QuoteExpiryPayload{})
	if err != nil {
		logger.Error("prepare expiry task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskQuoteExpiry, Handler: jobs.QuoteExpiryHandler(quoteService, logger)},
			{Type: jobs.TaskStatsWarmup, Handler: jobs.StatsWarmupHandler(quoteService, logger)},
		},
		Cron: []jobs.CronRegistration{
			// Daily expiry sweep shortly after midnight, hourly stats warmup.
			{Spec: "5 0 * * *", Task: expiryTask},
			{Spec: "@hourly", Task: jobs.NewStatsWarmupTask()},
		},
	})
	if err != nil {
		logger.Error("configure worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped cleanly")
}
