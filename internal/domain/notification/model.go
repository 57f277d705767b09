package notification

import "time"

// Request is one notification to deliver. Build it with NewRequest; it is
// not modified after construction.
type Request struct {
	Kind        Kind    `json:"kind"`
	Recipient   string  `json:"recipient"`
	OrderNumber string  `json:"order_number"`
	Payload     Payload `json:"payload"`
}

// NewRequest derives recipient and order number from the payload.
func NewRequest(kind Kind, p Payload) Request {
	req := Request{Kind: kind, Payload: p}
	if p != nil {
		req.Recipient = p.Recipient()
		req.OrderNumber = p.Reference()
	}
	return req
}

// RenderedMessage is the resolver output: subject plus HTML body and a plain-text fallback.
type RenderedMessage struct {
	Subject string
	Body    string
	Text    string
}

// Message is the transport-ready envelope.
type Message struct {
	To       string
	Subject  string
	HTML     string
	Text     string
	Metadata Metadata
}

// Metadata is stamped on outgoing messages as provider tags or X- headers.
type Metadata struct {
	Kind        Kind
	OrderNumber string
	Environment string
}

// AttemptOutcome classifies one send attempt.
type AttemptOutcome string

const (
	OutcomeSuccess          AttemptOutcome = "success"
	OutcomeTransientFailure AttemptOutcome = "transient_failure"
	OutcomePermanentFailure AttemptOutcome = "permanent_failure"
)

// DeliveryAttempt records a single call to the transport.
type DeliveryAttempt struct {
	Number            int            `json:"number"`
	StartedAt         time.Time      `json:"started_at"`
	Outcome           AttemptOutcome `json:"outcome"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// DeliveryResult is the single externally visible outcome of a Request.
// Attempts is zero when the request never reached the transport.
type DeliveryResult struct {
	Kind              Kind              `json:"kind"`
	Success           bool              `json:"success"`
	ProviderMessageID string            `json:"provider_message_id,omitempty"`
	Error             string            `json:"error,omitempty"`
	Attempts          int               `json:"attempts"`
	Simulated         bool              `json:"simulated,omitempty"`
	AttemptLog        []DeliveryAttempt `json:"attempt_log,omitempty"`
}

// BatchItem pairs a request with its result.
type BatchItem struct {
	Request Request        `json:"request"`
	Result  DeliveryResult `json:"result"`
}

// BatchOptions controls fan-out pacing. Zero fields take the defaults.
type BatchOptions struct {
	BatchSize       int
	InterBatchDelay time.Duration
}

const (
	DefaultBatchSize       = 10
	DefaultInterBatchDelay = time.Second
)

func (o BatchOptions) withDefaults() BatchOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.InterBatchDelay <= 0 {
		o.InterBatchDelay = DefaultInterBatchDelay
	}
	return o
}

// TransportHealth is a point-in-time health snapshot.
type TransportHealth struct {
	Healthy    bool   `json:"healthy"`
	Configured bool   `json:"configured"`
	Message    string `json:"message"`
}

// KindSummary counts outcomes for one kind.
type KindSummary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Summary aggregates a list of results.
type Summary struct {
	Total     int                  `json:"total"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	ByKind    map[Kind]KindSummary `json:"by_kind"`
}
