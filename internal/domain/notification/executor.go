package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ExecutorConfig holds the single-send retry policy.
type ExecutorConfig struct {
	// MaxRetries is the total number of send attempts, not retries after the first.
	MaxRetries int

	// BaseRetryDelay is multiplied by the attempt number to get the backoff.
	BaseRetryDelay time.Duration

	// AttemptTimeout bounds one Deliver call. Zero leaves timing to the transport.
	AttemptTimeout time.Duration

	// Environment is stamped on message metadata.
	Environment string

	// Verbose logs message content before each send (non-production only).
	Verbose bool
}

const (
	DefaultMaxRetries     = 3
	DefaultBaseRetryDelay = time.Second
)

// Executor sends one request through the transport with bounded retries.
type Executor struct {
	transport Transport
	resolver  MessageResolver
	config    ExecutorConfig

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string
}

// NewExecutor creates a new delivery executor.
func NewExecutor(transport Transport, resolver MessageResolver, cfg ExecutorConfig) *Executor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseRetryDelay < 0 {
		cfg.BaseRetryDelay = DefaultBaseRetryDelay
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	return &Executor{
		transport: transport,
		resolver:  resolver,
		config:    cfg,
		sleep:     sleepContext,
		now:       time.Now,
		newID:     func() string { return "sim-" + uuid.NewString() },
	}
}

// Config returns the effective retry policy.
func (e *Executor) Config() ExecutorConfig {
	return e.config
}

// Backoff returns the wait before the attempt following attempt n (1-based).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(attempt)
}

// Execute runs validation, rendering, and the send/retry loop for req.
// It never returns an error: every outcome is a DeliveryResult.
func (e *Executor) Execute(ctx context.Context, req Request) DeliveryResult {
	result := DeliveryResult{Kind: req.Kind}
	logger := slog.With("kind", req.Kind, "order_number", req.OrderNumber, "to", req.Recipient)

	if err := Validate(req); err != nil {
		logger.Warn("notification rejected", "error", err)
		result.Error = err.Error()
		return result
	}

	rendered, err := e.resolver.Resolve(req.Kind, req.Payload)
	if err != nil {
		logger.Error("rendering notification failed", "error", err)
		result.Error = err.Error()
		return result
	}

	msg := &Message{
		To:      req.Recipient,
		Subject: rendered.Subject,
		HTML:    rendered.Body,
		Text:    rendered.Text,
		Metadata: Metadata{
			Kind:        req.Kind,
			OrderNumber: req.OrderNumber,
			Environment: e.config.Environment,
		},
	}

	if e.config.Verbose {
		logger.Debug("notification rendered",
			"subject", msg.Subject,
			"html_length", len(msg.HTML),
			"text_preview", preview(msg.Text, 200),
			"transport_configured", e.transport.IsConfigured(),
		)
	}

	if !e.transport.IsConfigured() {
		id := e.newID()
		logger.Warn("transport not configured, simulating send", "provider_message_id", id)
		result.Success = true
		result.Simulated = true
		result.ProviderMessageID = id
		result.Attempts = 1
		result.AttemptLog = []DeliveryAttempt{{
			Number:            1,
			StartedAt:         e.now(),
			Outcome:           OutcomeSuccess,
			ProviderMessageID: id,
		}}
		return result
	}

	return e.send(ctx, logger, msg, result)
}

// send is the Sending/Retrying loop. Attempts are strictly sequential.
func (e *Executor) send(ctx context.Context, logger *slog.Logger, msg *Message, result DeliveryResult) DeliveryResult {
	maxAttempts := e.config.MaxRetries

	for attempt := 1; ; attempt++ {
		record := DeliveryAttempt{Number: attempt, StartedAt: e.now()}
		logger.Info("sending notification", "attempt", attempt, "max_attempts", maxAttempts, "transport", e.transport.Name())

		id, err := e.deliver(ctx, msg)
		result.Attempts = attempt

		if err == nil {
			record.Outcome = OutcomeSuccess
			record.ProviderMessageID = id
			result.AttemptLog = append(result.AttemptLog, record)
			result.Success = true
			result.ProviderMessageID = id
			result.Error = ""
			logger.Info("notification sent", "attempt", attempt, "provider_message_id", id)
			return result
		}

		record.Error = err.Error()
		result.Error = err.Error()

		if IsPermanent(err) || isContextDone(ctx.Err()) {
			record.Outcome = OutcomePermanentFailure
			result.AttemptLog = append(result.AttemptLog, record)
			logger.Error("notification failed permanently", "attempt", attempt, "error", err)
			return result
		}

		record.Outcome = OutcomeTransientFailure
		result.AttemptLog = append(result.AttemptLog, record)

		if attempt >= maxAttempts {
			logger.Error("notification retries exhausted", "attempts", attempt, "error", err)
			return result
		}

		delay := Backoff(e.config.BaseRetryDelay, attempt)
		logger.Warn("notification send failed, retrying", "attempt", attempt, "retry_in", delay, "error", err)
		if err := e.sleep(ctx, delay); err != nil {
			result.Error = err.Error()
			logger.Warn("retry abandoned", "attempt", attempt, "error", err)
			return result
		}
	}
}

// deliver makes one transport call, bounded by AttemptTimeout when set.
func (e *Executor) deliver(ctx context.Context, msg *Message) (string, error) {
	if e.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.AttemptTimeout)
		defer cancel()
	}
	return e.transport.Deliver(ctx, msg)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
