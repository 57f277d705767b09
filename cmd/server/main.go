package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ordermail/internal/config"
	"ordermail/internal/domain/notification"
	"ordermail/internal/infra/email"
	"ordermail/internal/infra/queue"
	"ordermail/internal/infra/ratelimit"
	"ordermail/internal/infra/store"
	"ordermail/internal/infra/template"
	"ordermail/internal/router"
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

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"environment", cfg.App.Environment(),
		"provider", cfg.Email.Provider,
	)

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
	if !transport.IsConfigured() {
		slog.Warn("email transport not configured, sends will be simulated", "transport", transport.Name())
	}

	// The delivery log is optional; without it the service only sends synchronously.
	var logStore notification.LogStore
	if cfg.Supabase.Enabled() {
		s, err := store.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
		if err != nil {
			slog.Error("failed to initialize supabase store", "error", err)
			os.Exit(1)
		}
		logStore = s
		slog.Info("supabase store initialized")
	}

	notificationService := notification.NewService(transport, engine, logStore, notification.ServiceConfig{
		Executor: notification.ExecutorConfig{
			MaxRetries:     cfg.Delivery.MaxRetries,
			BaseRetryDelay: cfg.Delivery.BaseRetryDelay(),
			AttemptTimeout: cfg.Delivery.AttemptTimeout(),
		},
		Batch: notification.BatchOptions{
			BatchSize:       cfg.Batch.Size,
			InterBatchDelay: cfg.Batch.InterBatchDelay(),
		},
		FromAddress:       cfg.Email.FromAddress,
		ReplyToAddress:    cfg.Email.ReplyToAddress,
		Production:        cfg.App.Production,
		PrinterRecipients: cfg.Printer.Recipients,
	})

	if logStore != nil {
		asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		defer asynqClient.Close()

		recipientLimiter := ratelimit.NewRedisRecipientLimiter(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.RecipientRateLimit.MaxPerHour,
		)
		defer recipientLimiter.Close()

		notificationService.EnableQueue(queue.NewEnqueuer(asynqClient, cfg.Queue.MaxRetry), recipientLimiter)
		slog.Info("queued delivery enabled",
			"redis", cfg.Redis.Address,
			"max_per_hour", cfg.RecipientRateLimit.MaxPerHour,
		)
	}

	notificationHandler := notification.NewHandler(notificationService)
	r, ipLimiter := router.New(cfg, notificationHandler)

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Batches sleep between groups, so writes get more room than reads.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := ipLimiter.Evict(10 * time.Minute); n > 0 {
					slog.Debug("evicted idle rate limiters", "count", n)
				}
			}
		}
	}()

	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return
	}

	slog.Info("server exited gracefully")
}
