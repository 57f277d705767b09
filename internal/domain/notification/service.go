package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ordermail/internal/common"
)

// Enqueuer hands a stored delivery log to the background worker.
type Enqueuer interface {
	EnqueueDelivery(logID string) error
}

// ServiceConfig is the configuration surface the service exposes to callers.
type ServiceConfig struct {
	Executor          ExecutorConfig
	Batch             BatchOptions
	FromAddress       string
	ReplyToAddress    string
	Production        bool
	PrinterRecipients []string
}

// SettingsView is the read-only configuration shown on the admin settings screen.
type SettingsView struct {
	FromAddress      string `json:"from_address"`
	ReplyToAddress   string `json:"reply_to_address"`
	Production       bool   `json:"is_production"`
	Configured       bool   `json:"is_configured"`
	Transport        string `json:"transport"`
	MaxRetries       int    `json:"max_retries"`
	BaseRetryDelayMs int64  `json:"base_retry_delay_ms"`
	BatchSize        int    `json:"batch_size"`
	QueueEnabled     bool   `json:"queue_enabled"`
}

// Service is the entry point for every notification operation.
// Synchronous sends go through the executor (single) or the dispatcher (batch);
// queued sends are persisted and handed to the worker.
type Service struct {
	transport  Transport
	executor   *Executor
	dispatcher *Dispatcher
	store      LogStore
	config     ServiceConfig

	enqueuer    Enqueuer
	rateLimiter RecipientRateLimiter

	now func() time.Time
}

// NewService creates a new notification service. store may be nil, in which
// case results are not recorded and the log endpoints report unavailable.
func NewService(transport Transport, resolver MessageResolver, store LogStore, cfg ServiceConfig) *Service {
	if cfg.Executor.Environment == "" {
		cfg.Executor.Environment = environment(cfg.Production)
	}
	cfg.Executor.Verbose = !cfg.Production
	cfg.Batch = cfg.Batch.withDefaults()

	executor := NewExecutor(transport, resolver, cfg.Executor)
	cfg.Executor = executor.Config()

	return &Service{
		transport:  transport,
		executor:   executor,
		dispatcher: NewDispatcher(executor),
		store:      store,
		config:     cfg,
		now:        time.Now,
	}
}

// EnableQueue wires the asynchronous path. limiter may be nil.
func (s *Service) EnableQueue(enqueuer Enqueuer, limiter RecipientRateLimiter) {
	s.enqueuer = enqueuer
	s.rateLimiter = limiter
}

// Executor exposes the executor for the queue worker.
func (s *Service) Executor() *Executor {
	return s.executor
}

// SendOrderEmail delivers one notification and records the outcome.
func (s *Service) SendOrderEmail(ctx context.Context, kind Kind, p Payload) DeliveryResult {
	req := NewRequest(kind, p)
	res := s.executor.Execute(ctx, req)
	s.record(ctx, req, res)
	return res
}

// SendOrderLifecycleEmails sends the confirmation and then the receipt for a new order.
// The receipt is attempted even when the confirmation fails.
func (s *Service) SendOrderLifecycleEmails(ctx context.Context, order Order) map[Kind]DeliveryResult {
	slog.Info("sending order lifecycle emails", "order_number", order.OrderNumber, "to", order.Email)

	results := map[Kind]DeliveryResult{
		KindConfirmation: s.SendOrderEmail(ctx, KindConfirmation, ConfirmationPayload{Order: order}),
	}
	results[KindReceipt] = s.SendOrderEmail(ctx, KindReceipt, ReceiptPayload{Order: order})

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	slog.Info("order lifecycle emails completed",
		"order_number", order.OrderNumber,
		"succeeded", succeeded,
		"total", len(results),
	)
	return results
}

// SendStatusUpdateEmail re-sends a notification on an admin action.
func (s *Service) SendStatusUpdateEmail(ctx context.Context, kind Kind, p Payload) DeliveryResult {
	slog.Info("sending status update", "kind", kind, "order_number", referenceOf(p))
	return s.SendOrderEmail(ctx, kind, p)
}

// SendBatch delivers requests in paced batches. Zero option fields fall back
// to the configured batch settings.
func (s *Service) SendBatch(ctx context.Context, requests []Request, opts BatchOptions) ([]BatchItem, Summary) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = s.config.Batch.BatchSize
	}
	if opts.InterBatchDelay <= 0 {
		opts.InterBatchDelay = s.config.Batch.InterBatchDelay
	}

	items := s.dispatcher.Dispatch(ctx, requests, opts)
	for _, it := range items {
		s.record(ctx, it.Request, it.Result)
	}
	return items, Summarize(Results(items))
}

// PrinterSummaryInput is the daily print run sent to the fulfillment partner.
type PrinterSummaryInput struct {
	Date       string         `json:"date"`
	Orders     []PrinterOrder `json:"orders"`
	Recipients []string       `json:"recipients"`
}

// SendPrinterSummary sends one printer_batch summary to each printer recipient.
// Recipients default to the configured list; date defaults to today (UTC).
func (s *Service) SendPrinterSummary(ctx context.Context, in PrinterSummaryInput) ([]BatchItem, Summary, error) {
	if len(in.Orders) == 0 {
		return nil, Summary{}, common.NewFieldError("orders", "no orders to print")
	}

	recipients := in.Recipients
	if len(recipients) == 0 {
		recipients = s.config.PrinterRecipients
	}
	if len(recipients) == 0 {
		return nil, Summary{}, common.NewFieldError("recipients", "no printer recipients configured")
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = s.now().UTC().Format(time.DateOnly)
	}
	ref := "PRINT-" + date

	requests := make([]Request, 0, len(recipients))
	for _, to := range recipients {
		p := PrinterBatchPayload{To: strings.TrimSpace(to), BatchRef: ref, Date: date, Orders: in.Orders}
		requests = append(requests, NewRequest(KindPrinterBatch, p))
	}

	slog.Info("sending printer summary",
		"batch_ref", ref,
		"orders", len(in.Orders),
		"recipients", len(requests),
	)

	items, summary := s.SendBatch(ctx, requests, BatchOptions{})
	return items, summary, nil
}

// HealthCheck reports transport readiness. It never fails.
func (s *Service) HealthCheck(ctx context.Context) TransportHealth {
	return CheckHealth(ctx, s.transport)
}

// Settings returns the effective configuration.
func (s *Service) Settings() SettingsView {
	return SettingsView{
		FromAddress:      s.config.FromAddress,
		ReplyToAddress:   s.config.ReplyToAddress,
		Production:       s.config.Production,
		Configured:       s.transport.IsConfigured(),
		Transport:        s.transport.Name(),
		MaxRetries:       s.config.Executor.MaxRetries,
		BaseRetryDelayMs: s.config.Executor.BaseRetryDelay.Milliseconds(),
		BatchSize:        s.config.Batch.BatchSize,
		QueueEnabled:     s.store != nil && s.enqueuer != nil,
	}
}

// QueueRequest is a notification to deliver in the background.
type QueueRequest struct {
	Request        Request
	IdempotencyKey string
}

// QueueResponse describes the stored log for a queued notification.
type QueueResponse struct {
	ID             string    `json:"id"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Kind           Kind      `json:"kind"`
	Status         LogStatus `json:"status"`
}

// Enqueue validates a request, checks idempotency and the recipient's rate
// limit, stores a log, and hands it to the worker.
func (s *Service) Enqueue(ctx context.Context, qr QueueRequest) (*QueueResponse, error) {
	if s.store == nil || s.enqueuer == nil {
		return nil, common.NewUnavailableError("queued delivery")
	}

	req := qr.Request
	if !req.Kind.Valid() {
		return nil, common.NewFieldError("kind", (&UnknownKindError{Kind: req.Kind}).Error())
	}
	if err := Validate(req); err != nil {
		return nil, err
	}

	if qr.IdempotencyKey != "" {
		existing, err := s.store.GetByIdempotencyKey(ctx, qr.IdempotencyKey)
		if err != nil {
			// Proceed without idempotency protection.
			slog.Error("idempotency check failed", "key", qr.IdempotencyKey, "error", err)
		}
		if existing != nil {
			slog.Info("idempotent request, returning existing log",
				"idempotency_key", qr.IdempotencyKey,
				"existing_id", existing.ID,
				"existing_status", existing.Status,
			)
			return &QueueResponse{
				ID:             existing.ID,
				IdempotencyKey: existing.IdempotencyKey,
				Kind:           existing.Kind,
				Status:         existing.Status,
			}, nil
		}
	}

	if s.rateLimiter != nil {
		allowed, err := s.rateLimiter.Allow(ctx, req.Recipient)
		if err != nil {
			// Fail open when redis is down.
			slog.Error("rate limit check failed, proceeding without limit", "recipient", req.Recipient, "error", err)
		} else if !allowed {
			return nil, common.NewRateLimitedError(req.Recipient)
		}
	}

	raw, err := EncodePayload(req.Payload)
	if err != nil {
		return nil, err
	}

	log := &DeliveryLog{
		IdempotencyKey: qr.IdempotencyKey,
		Kind:           req.Kind,
		Recipient:      req.Recipient,
		OrderNumber:    req.OrderNumber,
		Payload:        raw,
		Status:         StatusQueued,
	}
	if err := s.store.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("creating delivery log: %w", err)
	}

	if err := s.enqueuer.EnqueueDelivery(log.ID); err != nil {
		_ = s.store.Update(ctx, log.ID, LogUpdate{Status: StatusFailed, ErrorMessage: "failed to enqueue: " + err.Error()})
		return nil, fmt.Errorf("enqueuing delivery: %w", err)
	}

	slog.Info("notification enqueued",
		"id", log.ID,
		"kind", req.Kind,
		"order_number", req.OrderNumber,
		"to", req.Recipient,
	)

	return &QueueResponse{
		ID:             log.ID,
		IdempotencyKey: log.IdempotencyKey,
		Kind:           req.Kind,
		Status:         StatusQueued,
	}, nil
}

// GetNotification retrieves a delivery log by ID.
func (s *Service) GetNotification(ctx context.Context, id string) (*DeliveryLog, error) {
	if s.store == nil {
		return nil, common.NewUnavailableError("delivery log store")
	}
	log, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching delivery log: %w", err)
	}
	if log == nil {
		return nil, common.NewNotFoundError("notification", id)
	}
	return log, nil
}

// ListNotifications retrieves delivery logs with pagination and filtering.
func (s *Service) ListNotifications(ctx context.Context, filter ListFilter) (*ListResponse, error) {
	if s.store == nil {
		return nil, common.NewUnavailableError("delivery log store")
	}
	if filter.Kind != "" && !Kind(filter.Kind).Valid() {
		return nil, common.NewFieldError("kind", (&UnknownKindError{Kind: Kind(filter.Kind)}).Error())
	}
	filter = filter.Normalize()

	logs, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing delivery logs: %w", err)
	}
	if logs == nil {
		logs = []*DeliveryLog{}
	}

	return &ListResponse{
		Notifications: logs,
		Total:         total,
		Page:          filter.Page,
		PageSize:      filter.PageSize,
	}, nil
}

// record stores a synchronous result. Failures are logged and never surface.
func (s *Service) record(ctx context.Context, req Request, res DeliveryResult) {
	if s.store == nil {
		return
	}
	raw, err := EncodePayload(req.Payload)
	if err != nil {
		slog.Warn("encoding payload for delivery log failed", "kind", req.Kind, "error", err)
	}

	log := &DeliveryLog{
		Kind:              req.Kind,
		Recipient:         req.Recipient,
		OrderNumber:       req.OrderNumber,
		Payload:           raw,
		ProviderMessageID: res.ProviderMessageID,
		Status:            StatusFor(res),
		Attempts:          res.Attempts,
		ErrorMessage:      res.Error,
	}
	if res.Success {
		sent := s.now().UTC()
		log.SentAt = &sent
	}

	// The request context may already be cancelled; recording outlives it briefly.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.Create(storeCtx, log); err != nil {
		slog.Error("recording delivery log failed",
			"kind", req.Kind,
			"order_number", req.OrderNumber,
			"error", err,
		)
	}
}

func referenceOf(p Payload) string {
	if p == nil {
		return ""
	}
	return p.Reference()
}

func environment(production bool) string {
	if production {
		return "production"
	}
	return "development"
}
