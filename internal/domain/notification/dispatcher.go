package notification

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sender executes one request. *Executor implements it.
type Sender interface {
	Execute(ctx context.Context, req Request) DeliveryResult
}

// Dispatcher fans requests out in fixed-size batches. Requests inside a
// batch run concurrently; batches run one after another with a pause between.
type Dispatcher struct {
	sender Sender
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a new batch dispatcher.
func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender, sleep: sleepContext}
}

// Dispatch delivers every request and returns one item per request, in input order.
// A failing or panicking request never affects its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, requests []Request, opts BatchOptions) []BatchItem {
	opts = opts.withDefaults()
	items := make([]BatchItem, len(requests))
	batches := (len(requests) + opts.BatchSize - 1) / opts.BatchSize
	start := time.Now()

	slog.Info("batch dispatch started",
		"requests", len(requests),
		"batch_size", opts.BatchSize,
		"batches", batches,
		"inter_batch_delay", opts.InterBatchDelay,
	)

	for b := 0; b < batches; b++ {
		lo := b * opts.BatchSize
		hi := min(lo+opts.BatchSize, len(requests))

		slog.Info("processing batch", "batch", b+1, "of", batches, "size", hi-lo)

		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				res, err := d.runItem(ctx, requests[i])
				items[i] = BatchItem{Request: requests[i], Result: resultFor(requests[i], res, err)}
				return nil
			})
		}
		_ = g.Wait()

		if hi < len(requests) {
			if err := d.sleep(ctx, opts.InterBatchDelay); err != nil {
				// Remaining batches are reported as failed rather than dropped.
				slog.Warn("batch dispatch interrupted", "after_batch", b+1, "error", err)
				for i := hi; i < len(requests); i++ {
					items[i] = BatchItem{Request: requests[i], Result: DeliveryResult{Kind: requests[i].Kind, Error: err.Error()}}
				}
				break
			}
		}
	}

	summary := Summarize(Results(items))
	slog.Info("batch dispatch completed",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration", time.Since(start),
	)
	return items
}

// runItem executes one request, turning a panic into an *InternalError.
func (d *Dispatcher) runItem(ctx context.Context, req Request) (res DeliveryResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while delivering notification",
				"kind", req.Kind,
				"order_number", req.OrderNumber,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = &InternalError{Value: r}
		}
	}()
	return d.sender.Execute(ctx, req), nil
}

// resultFor maps a per-item outcome to the result reported to the caller.
func resultFor(req Request, res DeliveryResult, err error) DeliveryResult {
	if err != nil {
		return DeliveryResult{Kind: req.Kind, Success: false, Error: errInternalFailure}
	}
	return res
}

// Results extracts the results from a batch, preserving order.
func Results(items []BatchItem) []DeliveryResult {
	out := make([]DeliveryResult, len(items))
	for i, it := range items {
		out[i] = it.Result
	}
	return out
}
