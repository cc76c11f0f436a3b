package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/constructo-erp/constructo-erp/internal/app"
	"github.com/constructo-erp/constructo-erp/internal/assistant"
	"github.com/constructo-erp/constructo-erp/internal/companies"
	"github.com/constructo-erp/constructo-erp/internal/employees"
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
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	directory := companies.NewService(pool)
	projectService := projects.NewService(projects.NewRepository(pool), logger)
	employeeService := employees.NewService(pool)

	quoteService := quotes.NewService(quotes.ServiceParams{
		Repo:      quotes.NewRepository(pool),
		Projects:  projectService,
		Directory: directory,
		Cache:     redisClient,
		Logger:    logger,
		Prefix:    cfg.QuoteNumberPrefix,
		StatsTTL:  cfg.StatsCacheTTL,
	})

	var assistantHandler *assistant.Handler
	if cfg.GeminiAPIKey != "" {
		agent, err := assistant.NewAgent(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, quoteService, logger)
		if err != nil {
			logger.Error("start assistant", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := agent.Close(); err != nil {
				logger.Warn("assistant close", slog.Any("error", err))
			}
		}()
		assistantHandler = assistant.NewHandler(logger, agent)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		QuotesHandler:    quotes.NewHandler(logger, quoteService, jobsClient),
		ProjectsHandler:  projects.NewHandler(logger, projectService),
		CompaniesHandler: companies.NewHandler(logger, directory),
		EmployeesHandler: employees.NewHandler(logger, employeeService),
		AssistantHandler: assistantHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped cleanly")
}
