package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasktrack/backend/internal/cache"
	"tasktrack/backend/internal/config"
	"tasktrack/backend/internal/database"
	"tasktrack/backend/internal/handlers"
	"tasktrack/backend/internal/logger"
	"tasktrack/backend/internal/server"
	"tasktrack/backend/internal/services"
	"tasktrack/backend/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("failed to load config", "error", err)
	}

	log := logger.Get(cfg.Server.LogLevel)

	db, err := database.NewDatabasePool(database.PoolConfigFromApp(cfg))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalw("failed to migrate schema", "error", err)
	}

	redisClient := cache.NewRedisClient(cfg)
	redisCache := cache.NewRedisCache(redisClient, cache.DefaultCircuitBreakerConfig())
	if err := redisCache.Health(); err != nil {
		log.Warnw("redis unreachable at startup, serving without cache hits", "error", err)
	}

	tokens := services.NewTokenService(cfg.Auth)
	authService := services.NewAuthService(cfg.Auth.BCryptCost)
	registerService := services.NewRegisterService(cfg.Auth.BCryptCost)
	userService := services.NewUserService(cfg.Auth.BCryptCost)
	taskService := services.NewCachedTaskService(services.NewTaskService(), redisCache)

	jobQueue := worker.NewJobQueue(redisClient)
	reminderWorker := worker.NewWorker(worker.WorkerConfig{
		RedisClient:  redisClient,
		Logger:       log,
		Queues:       cfg.Worker.Queues,
		PollInterval: cfg.Worker.PollInterval,
	})
	reminderWorker.RegisterHandler(worker.JobTypeTaskReminder, func(ctx context.Context, job *worker.Job) error {
		log.Infow("task due soon",
			"task_id", job.Payload["task_id"],
			"owner", job.Payload["owner"],
			"title", job.Payload["title"],
			"due_at", job.Payload["due_at"],
		)
		return nil
	})
	reminderWorker.Start(cfg.Worker.Concurrency)

	router := handlers.NewRouter(handlers.RouterDeps{
		Config:   cfg,
		DB:       db,
		Tokens:   tokens,
		Cache:    redisCache,
		Auth:     handlers.NewAuthHandler(db, authService, tokens),
		Register: handlers.NewRegisterHandler(db, registerService, tokens),
		Users:    handlers.NewUserHandler(db, userService),
		Tasks:    handlers.NewTaskHandler(db, taskService, jobQueue),
	})

	srv := server.New(cfg.Server, cfg.GetServerAddr(), router)

	go func() {
		log.Infow("server started", "addr", cfg.GetServerAddr(), "environment", cfg.Server.Environment)
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("forced shutdown", "error", err)
	}

	reminderWorker.Stop()

	if err := redisCache.Close(); err != nil {
		log.Errorw("failed to close redis", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Errorw("failed to close database", "error", err)
		}
	}

	log.Info("server stopped")
}
