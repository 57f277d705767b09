package notification

import (
	"context"
	"log/slog"
	"time"
)

// ReaperConfig holds configuration for the stale log reaper.
type ReaperConfig struct {
	Interval time.Duration

	// StaleThreshold is how long a log may sit in queued/processing.
	StaleThreshold time.Duration

	// BatchSize caps recoveries per sweep.
	BatchSize int
}

// Reaper re-enqueues delivery logs stuck in queued or processing, which
// happens when redis loses a task or a worker dies mid-send. The log store
// is the source of truth; the queue is reconciled against it on a timer.
type Reaper struct {
	store    LogStore
	enqueuer Enqueuer
	config   ReaperConfig
}

// NewReaper creates a new stale task reaper.
func NewReaper(store LogStore, enqueuer Enqueuer, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &Reaper{
		store:    store,
		enqueuer: enqueuer,
		config:   cfg,
	}
}

// Run blocks until ctx is cancelled, sweeping every Interval.
func (r *Reaper) Run(ctx context.Context) {
	slog.Info("reaper started",
		"interval", r.config.Interval,
		"stale_threshold", r.config.StaleThreshold,
		"batch_size", r.config.BatchSize,
	)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one cycle and returns how many logs were re-enqueued.
func (r *Reaper) Sweep(ctx context.Context) int {
	olderThan := time.Now().Add(-r.config.StaleThreshold)

	stale, err := r.store.ListStale(ctx, olderThan, r.config.BatchSize)
	if err != nil {
		slog.Error("reaper: failed to list stale logs", "error", err)
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	slog.Warn("reaper: found stale logs", "count", len(stale))

	recovered := 0
	for _, log := range stale {
		// Back to queued so the worker does not see a half-finished state.
		if err := r.store.Update(ctx, log.ID, LogUpdate{Status: StatusQueued, Attempts: log.Attempts}); err != nil {
			slog.Error("reaper: failed to reset status", "log_id", log.ID, "error", err)
			continue
		}

		if err := r.enqueuer.EnqueueDelivery(log.ID); err != nil {
			slog.Error("reaper: failed to re-enqueue", "log_id", log.ID, "error", err)
			continue
		}

		recovered++
		slog.Info("reaper: recovered stale log",
			"log_id", log.ID,
			"kind", log.Kind,
			"original_status", log.Status,
			"age", time.Since(log.UpdatedAt).Round(time.Second),
		)
	}

	if recovered > 0 {
		slog.Info("reaper: sweep complete", "recovered", recovered, "total_stale", len(stale))
	}
	return recovered
}
