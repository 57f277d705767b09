package notification

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ordermail/internal/common"

	"github.com/gin-gonic/gin"
)

// maxBatchRequests caps the size of one batch call.
const maxBatchRequests = 500

// Handler handles HTTP requests for the notification domain.
// Delivery failures are data: a failed DeliveryResult is returned with 200.
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type lifecycleBody struct {
	Order Order `json:"order"`
}

type batchBody struct {
	Requests          []Envelope `json:"requests" binding:"required"`
	BatchSize         int        `json:"batch_size"`
	InterBatchDelayMs int        `json:"inter_batch_delay_ms"`
}

type queueBody struct {
	Envelope
	IdempotencyKey string `json:"idempotency_key"`
}

// BatchResponse is returned by the batch and printer endpoints.
type BatchResponse struct {
	Items   []BatchItem `json:"items"`
	Summary Summary     `json:"summary"`
}

// Send handles POST /api/v1/emails
func (h *Handler) Send(c *gin.Context) {
	req, ok := bindEnvelope(c)
	if !ok {
		return
	}
	common.Success(c, http.StatusOK, h.service.SendOrderEmail(c.Request.Context(), req.Kind, req.Payload))
}

// SendLifecycle handles POST /api/v1/emails/lifecycle
func (h *Handler) SendLifecycle(c *gin.Context) {
	var body lifecycleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := Validate(NewRequest(KindConfirmation, ConfirmationPayload{Order: body.Order})); err != nil {
		common.HandleError(c, err)
		return
	}

	results := h.service.SendOrderLifecycleEmails(c.Request.Context(), body.Order)
	common.Success(c, http.StatusOK, results)
}

// SendStatusUpdate handles POST /api/v1/emails/status
func (h *Handler) SendStatusUpdate(c *gin.Context) {
	req, ok := bindEnvelope(c)
	if !ok {
		return
	}
	if req.Kind == KindPrinterBatch {
		common.Error(c, http.StatusBadRequest, "kind: printer summaries are sent through /printer/send")
		return
	}
	common.Success(c, http.StatusOK, h.service.SendStatusUpdateEmail(c.Request.Context(), req.Kind, req.Payload))
}

// SendBatch handles POST /api/v1/emails/batch
func (h *Handler) SendBatch(c *gin.Context) {
	var body batchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(body.Requests) == 0 {
		common.Error(c, http.StatusBadRequest, "requests: at least one request is required")
		return
	}
	if len(body.Requests) > maxBatchRequests {
		common.Error(c, http.StatusBadRequest, fmt.Sprintf("requests: at most %d requests per batch", maxBatchRequests))
		return
	}

	requests := make([]Request, len(body.Requests))
	for i, env := range body.Requests {
		req, err := env.Decode()
		if err != nil {
			common.HandleError(c, common.NewFieldError(fmt.Sprintf("requests[%d]", i), decodeError(err).Error()))
			return
		}
		requests[i] = req
	}

	opts := BatchOptions{
		BatchSize:       body.BatchSize,
		InterBatchDelay: time.Duration(body.InterBatchDelayMs) * time.Millisecond,
	}
	items, summary := h.service.SendBatch(c.Request.Context(), requests, opts)
	common.Success(c, http.StatusOK, BatchResponse{Items: items, Summary: summary})
}

// Queue handles POST /api/v1/emails/queue
// Stores the notification for background delivery and returns 202 Accepted.
func (h *Handler) Queue(c *gin.Context) {
	var body queueBody
	if err := c.ShouldBindJSON(&body); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req, err := body.Envelope.Decode()
	if err != nil {
		common.HandleError(c, decodeError(err))
		return
	}

	resp, err := h.service.Enqueue(c.Request.Context(), QueueRequest{Request: req, IdempotencyKey: body.IdempotencyKey})
	if err != nil {
		slog.Error("enqueue notification failed",
			"error", err,
			"kind", req.Kind,
			"order_number", req.OrderNumber,
			"to", req.Recipient,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusAccepted, resp)
}

// Health handles GET /api/v1/emails/health
func (h *Handler) Health(c *gin.Context) {
	common.Success(c, http.StatusOK, h.service.HealthCheck(c.Request.Context()))
}

// Settings handles GET /api/v1/emails/settings
func (h *Handler) Settings(c *gin.Context) {
	common.Success(c, http.StatusOK, h.service.Settings())
}

// SendPrinterSummary handles POST /api/v1/printer/send
func (h *Handler) SendPrinterSummary(c *gin.Context) {
	var in PrinterSummaryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	for i, to := range in.Recipients {
		if !ValidEmail(to) {
			common.HandleError(c, common.NewFieldError(fmt.Sprintf("recipients[%d]", i), "invalid email format"))
			return
		}
	}

	items, summary, err := h.service.SendPrinterSummary(c.Request.Context(), in)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, BatchResponse{Items: items, Summary: summary})
}

// GetNotification handles GET /api/v1/notifications/:id
func (h *Handler) GetNotification(c *gin.Context) {
	log, err := h.service.GetNotification(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, log)
}

// ListNotifications handles GET /api/v1/notifications
func (h *Handler) ListNotifications(c *gin.Context) {
	var filter ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}

	resp, err := h.service.ListNotifications(c.Request.Context(), filter)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.Success(c, http.StatusOK, resp)
}

// RegisterRoutes registers the API-key protected routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	emails := rg.Group("/emails")
	emails.POST("", h.Send)
	emails.POST("/lifecycle", h.SendLifecycle)
	emails.POST("/status", h.SendStatusUpdate)
	emails.POST("/batch", h.SendBatch)
	emails.POST("/queue", h.Queue)
	emails.GET("/health", h.Health)
	emails.GET("/settings", h.Settings)

	rg.GET("/notifications", h.ListNotifications)
	rg.GET("/notifications/:id", h.GetNotification)
}

// RegisterPrinterRoutes registers the scheduler-triggered routes.
func (h *Handler) RegisterPrinterRoutes(rg *gin.RouterGroup) {
	rg.POST("/printer/send", h.SendPrinterSummary)
}

// bindEnvelope decodes and validates a {kind, payload} body, writing a 400 on failure.
func bindEnvelope(c *gin.Context) (Request, bool) {
	var env Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return Request{}, false
	}
	req, err := env.Decode()
	if err != nil {
		common.HandleError(c, decodeError(err))
		return Request{}, false
	}
	if err := Validate(req); err != nil {
		common.HandleError(c, err)
		return Request{}, false
	}
	return req, true
}

// decodeError turns an unknown kind into a client error.
func decodeError(err error) error {
	var unknown *UnknownKindError
	if errors.As(err, &unknown) {
		return common.NewFieldError("kind", unknown.Error())
	}
	return err
}
