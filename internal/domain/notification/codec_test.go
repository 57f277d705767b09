package notification

import (
	"encoding/json"
	"errors"
	"testing"

	"ordermail/internal/common"
)

func TestEnvelopeDecode(t *testing.T) {
	raw := json.RawMessage(`{
		"order_number": "LNK-1001",
		"email": "ada@example.com",
		"customer_name": "Ada",
		"tracking": {"number": "1Z999", "url": "https://track.example/1Z999"}
	}`)

	req, err := Envelope{Kind: KindShipped, Payload: raw}.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	p, ok := req.Payload.(ShippedPayload)
	if !ok {
		t.Fatalf("expected ShippedPayload, got %T", req.Payload)
	}
	if req.Recipient != "ada@example.com" || req.OrderNumber != "LNK-1001" || p.Tracking.Number != "1Z999" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestDecodePayloadErrors(t *testing.T) {
	var unknown *UnknownKindError
	if _, err := DecodePayload("welcome", json.RawMessage(`{}`)); !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownKindError, got %v", err)
	}

	var ve *common.ValidationError
	if _, err := DecodePayload(KindReceipt, nil); !errors.As(err, &ve) || ve.Field != "payload" {
		t.Fatalf("expected payload field error for missing payload, got %v", err)
	}
	if _, err := DecodePayload(KindReceipt, json.RawMessage(`null`)); !errors.As(err, &ve) {
		t.Fatalf("expected field error for null payload, got %v", err)
	}
	if _, err := DecodePayload(KindReceipt, json.RawMessage(`{"order_number": 12}`)); !errors.As(err, &ve) {
		t.Fatalf("expected field error for malformed payload, got %v", err)
	}
}

func TestStoredPayloadRestoresRequest(t *testing.T) {
	p := PrinterBatchPayload{
		To:       "print@example.com",
		BatchRef: "PRINT-2026-10-15",
		Date:     "2026-10-15",
		Orders:   []PrinterOrder{{OrderNumber: "LNK-1", Card: CardConfig{Quantity: 2}}},
	}
	raw, err := EncodePayload(p)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}

	log := &DeliveryLog{Kind: KindPrinterBatch, Payload: raw}
	req, err := log.Request()
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	got, ok := req.Payload.(PrinterBatchPayload)
	if !ok || got.TotalCards() != 2 || req.Recipient != "print@example.com" || req.OrderNumber != "PRINT-2026-10-15" {
		t.Fatalf("unexpected restored request %+v", req)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		res  DeliveryResult
		want LogStatus
	}{
		{DeliveryResult{Success: true}, StatusSent},
		{DeliveryResult{Success: true, Simulated: true}, StatusSimulated},
		{DeliveryResult{Error: "boom"}, StatusFailed},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.res); got != tt.want {
			t.Fatalf("StatusFor(%+v) = %s, want %s", tt.res, got, tt.want)
		}
	}
}

func TestListFilterNormalize(t *testing.T) {
	f := ListFilter{Page: -1, PageSize: 500}.Normalize()
	if f.Page != 1 || f.PageSize != 20 {
		t.Fatalf("unexpected normalized filter %+v", f)
	}
	f = ListFilter{Page: 3, PageSize: 50}.Normalize()
	if f.Page != 3 || f.PageSize != 50 {
		t.Fatalf("valid paging should be kept, got %+v", f)
	}
}

func TestDeliverTaskPayload(t *testing.T) {
	task, err := NewDeliverTask("log-42")
	if err != nil {
		t.Fatalf("NewDeliverTask: %v", err)
	}
	if task.Type() != TaskTypeDeliver {
		t.Fatalf("unexpected task type %q", task.Type())
	}
	p, err := ParseDeliverTaskPayload(task.Payload())
	if err != nil || p.LogID != "log-42" {
		t.Fatalf("unexpected payload %+v, err %v", p, err)
	}
	if _, err := ParseDeliverTaskPayload([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for missing log_id")
	}
}
