package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ordermail/internal/config"
	"ordermail/internal/domain/notification"
	"ordermail/internal/infra/email"
	"ordermail/internal/infra/queue"
	"ordermail/internal/infra/store"
	"ordermail/internal/infra/template"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelDebug
	if cfg.App.Production {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("worker configuration loaded", "environment", cfg.App.Environment())

	if !cfg.Supabase.Enabled() {
		slog.Error("worker requires supabase.url and supabase.service_key")
		os.Exit(1)
	}

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	engine, err := template.NewEngine(cfg.Email.BrandName)
	if err != nil {
		slog.Error("failed to initialize template engine", "error", err)
		os.Exit(1)
	}

	transport, err := email.NewTransport(cfg)
	if err != nil {
		slog.Error("failed to initialize email transport", "error", err)
		os.Exit(1)
	}
	if closer, ok := transport.(io.Closer); ok {
		defer closer.Close()
	}

	logStore, err := store.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize supabase store", "error", err)
		os.Exit(1)
	}

	executor := notification.NewExecutor(transport, engine, notification.ExecutorConfig{
		MaxRetries:     cfg.Delivery.MaxRetries,
		BaseRetryDelay: cfg.Delivery.BaseRetryDelay(),
		AttemptTimeout: cfg.Delivery.AttemptTimeout(),
		Environment:    cfg.App.Environment(),
		Verbose:        !cfg.App.Production,
	})
	worker := notification.NewWorker(logStore, executor)

	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()
	enqueuer := queue.NewEnqueuer(asynqClient, cfg.Queue.MaxRetry)

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TaskTypeDeliver, worker.HandleTask)

	if err := asynqServer.Start(mux); err != nil {
		slog.Error("worker failed to start", "error", err)
		os.Exit(1)
	}
	slog.Info("worker started",
		"concurrency", cfg.Queue.Concurrency,
		"redis", cfg.Redis.Address,
		"transport", transport.Name(),
	)

	// ==========================================
	// Stale Task Reaper
	// ==========================================

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reaper := notification.NewReaper(logStore, enqueuer, notification.ReaperConfig{
		Interval:       time.Duration(cfg.Reaper.IntervalSec) * time.Second,
		StaleThreshold: time.Duration(cfg.Reaper.StaleThresholdSec) * time.Second,
		BatchSize:      cfg.Reaper.BatchSize,
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		reaper.Run(ctx)
	}()

	<-ctx.Done()
	slog.Info("shutting down worker...")
	<-done
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}
