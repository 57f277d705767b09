package notification

import (
	"encoding/json"
	"time"
)

// LogStatus is the lifecycle state of a persisted delivery log.
type LogStatus string

const (
	StatusQueued     LogStatus = "queued"
	StatusProcessing LogStatus = "processing"
	StatusSent       LogStatus = "sent"
	StatusSimulated  LogStatus = "simulated"
	StatusFailed     LogStatus = "failed"
)

// DeliveryLog is the persisted record of one notification, queued or sent inline.
type DeliveryLog struct {
	ID                string          `json:"id"`
	IdempotencyKey    string          `json:"idempotency_key,omitempty"`
	Kind              Kind            `json:"kind"`
	Recipient         string          `json:"recipient"`
	OrderNumber       string          `json:"order_number"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	ProviderMessageID string          `json:"provider_message_id,omitempty"`
	Status            LogStatus       `json:"status"`
	Attempts          int             `json:"attempts"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	SentAt            *time.Time      `json:"sent_at,omitempty"`
}

// Request rebuilds the typed request from the stored payload.
func (l *DeliveryLog) Request() (Request, error) {
	return Envelope{Kind: l.Kind, Payload: l.Payload}.Decode()
}

// StatusFor maps a finished result to the log status it should be stored with.
func StatusFor(r DeliveryResult) LogStatus {
	switch {
	case r.Success && r.Simulated:
		return StatusSimulated
	case r.Success:
		return StatusSent
	default:
		return StatusFailed
	}
}

// LogUpdate carries the fields written when a log changes state.
type LogUpdate struct {
	Status            LogStatus
	ProviderMessageID string
	Attempts          int
	ErrorMessage      string
}

// UpdateFor builds the update that records r.
func UpdateFor(r DeliveryResult) LogUpdate {
	return LogUpdate{
		Status:            StatusFor(r),
		ProviderMessageID: r.ProviderMessageID,
		Attempts:          r.Attempts,
		ErrorMessage:      r.Error,
	}
}

// ListFilter defines pagination and filtering options for listing delivery logs.
type ListFilter struct {
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
	Status      string `form:"status"`
	Recipient   string `form:"recipient"`
	Kind        string `form:"kind"`
	OrderNumber string `form:"order_number"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize clamps paging to sane values.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > maxPageSize {
		f.PageSize = defaultPageSize
	}
	return f
}

// ListResponse wraps a paginated list of delivery logs.
type ListResponse struct {
	Notifications []*DeliveryLog `json:"notifications"`
	Total         int            `json:"total"`
	Page          int            `json:"page"`
	PageSize      int            `json:"page_size"`
}
