package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ordermail/internal/common"

	"github.com/hibiken/asynq"
)

// Worker processes queued deliveries.
// It loads the stored log, rebuilds the typed request, runs the executor,
// and writes the outcome back to the log.
type Worker struct {
	store    LogStore
	executor *Executor
}

// NewWorker creates a new delivery worker.
func NewWorker(store LogStore, executor *Executor) *Worker {
	return &Worker{store: store, executor: executor}
}

// ProcessTask handles a deliver task from the queue.
// Delivery failures are returned wrapped in asynq.SkipRetry: the executor
// already retried, so asynq archives the task instead of redelivering it.
func (w *Worker) ProcessTask(ctx context.Context, logID string) error {
	start := time.Now()

	log, err := w.store.GetByID(ctx, logID)
	if err != nil {
		return fmt.Errorf("fetching delivery log %s: %w", logID, err)
	}
	if log == nil {
		slog.Error("delivery log not found", "log_id", logID)
		return fmt.Errorf("delivery log not found: %s: %w", logID, asynq.SkipRetry)
	}

	switch log.Status {
	case StatusSent, StatusSimulated:
		slog.Info("delivery log already sent, skipping", "log_id", logID, "status", log.Status)
		return nil
	}

	if err := w.store.Update(ctx, logID, LogUpdate{Status: StatusProcessing}); err != nil {
		slog.Error("failed to update status to processing", "log_id", logID, "error", err)
	}

	req, err := log.Request()
	if err != nil {
		_ = w.store.Update(ctx, logID, LogUpdate{Status: StatusFailed, ErrorMessage: err.Error()})
		return fmt.Errorf("decoding delivery log %s: %w: %w", logID, err, asynq.SkipRetry)
	}

	res := w.executor.Execute(ctx, req)

	// A shutdown mid-send leaves the log in processing for the reaper.
	if !res.Success && ctx.Err() != nil {
		return fmt.Errorf("delivering %s: %w", logID, ctx.Err())
	}

	if err := w.store.Update(ctx, logID, UpdateFor(res)); err != nil {
		slog.Error("failed to record delivery result", "log_id", logID, "status", StatusFor(res), "error", err)
	}

	if !res.Success {
		slog.Error("queued delivery failed",
			"log_id", logID,
			"kind", req.Kind,
			"to", req.Recipient,
			"attempts", res.Attempts,
			"error", res.Error,
			"duration", time.Since(start),
		)
		return fmt.Errorf("%w: %w", common.NewProviderError(w.executor.transport.Name(), res.Error), asynq.SkipRetry)
	}

	slog.Info("queued delivery sent",
		"log_id", logID,
		"kind", req.Kind,
		"to", req.Recipient,
		"provider_message_id", res.ProviderMessageID,
		"simulated", res.Simulated,
		"duration", time.Since(start),
	)
	return nil
}

// HandleTask is the asynq handler for TaskTypeDeliver.
func (w *Worker) HandleTask(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDeliverTaskPayload(task.Payload())
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return w.ProcessTask(ctx, payload.LogID)
}
