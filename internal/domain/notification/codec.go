package notification

import (
	"encoding/json"
	"fmt"

	"ordermail/internal/common"
)

// Envelope is the wire form of a notification: the kind selects the payload variant.
type Envelope struct {
	Kind    Kind            `json:"kind" binding:"required"`
	Payload json.RawMessage `json:"payload" binding:"required"`
}

// DecodePayload parses raw into the payload variant for kind.
func DecodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	if !kind.Valid() {
		return nil, &UnknownKindError{Kind: kind}
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, common.NewFieldError("payload", "payload is required")
	}

	var (
		p   Payload
		err error
	)
	switch kind {
	case KindConfirmation:
		var v ConfirmationPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindReceipt:
		var v ReceiptPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindProduction:
		var v ProductionPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindShipped:
		var v ShippedPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindDelivered:
		var v DeliveredPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindPrinterBatch:
		var v PrinterBatchPayload
		err = json.Unmarshal(raw, &v)
		p = v
	}
	if err != nil {
		return nil, common.NewFieldError("payload", fmt.Sprintf("decoding %s payload: %v", kind, err))
	}
	return p, nil
}

// Decode turns an envelope into a request.
func (e Envelope) Decode() (Request, error) {
	p, err := DecodePayload(e.Kind, e.Payload)
	if err != nil {
		return Request{}, err
	}
	return NewRequest(e.Kind, p), nil
}

// EncodePayload serializes p for storage; DecodePayload(p.Kind(), raw) restores it.
func EncodePayload(p Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", p.Kind(), err)
	}
	return raw, nil
}
