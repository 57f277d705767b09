package store

import (
	"encoding/json"
	"testing"
	"time"

	"ordermail/internal/domain/notification"
)

func TestUpdateFields(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	sent := updateFields(notification.LogUpdate{
		Status:            notification.StatusSent,
		ProviderMessageID: "abc@example.com",
		Attempts:          2,
	}, now)
	if sent["status"] != "sent" || sent["attempts"] != 2 || sent["provider_message_id"] != "abc@example.com" {
		t.Fatalf("unexpected update %v", sent)
	}
	if sent["sent_at"] != "2026-10-15T09:00:00Z" {
		t.Fatalf("expected sent_at, got %v", sent["sent_at"])
	}
	if v, ok := sent["error_message"]; !ok || v != nil {
		t.Fatalf("expected error_message cleared, got %v", v)
	}

	processing := updateFields(notification.LogUpdate{Status: notification.StatusProcessing}, now)
	for _, k := range []string{"attempts", "provider_message_id", "error_message", "sent_at"} {
		if _, ok := processing[k]; ok {
			t.Fatalf("processing update must not touch %s: %v", k, processing)
		}
	}

	failed := updateFields(notification.LogUpdate{Status: notification.StatusFailed, Attempts: 3, ErrorMessage: "550"}, now)
	if failed["error_message"] != "550" || failed["attempts"] != 3 {
		t.Fatalf("unexpected failed update %v", failed)
	}
	if _, ok := failed["sent_at"]; ok {
		t.Fatalf("failed update must not set sent_at")
	}
}

func TestRowConversion(t *testing.T) {
	sentAt := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	log := &notification.DeliveryLog{
		IdempotencyKey:    "k-1",
		Kind:              notification.KindShipped,
		Recipient:         "ada@example.com",
		OrderNumber:       "LNK-1001",
		Payload:           json.RawMessage(`{"order_number":"LNK-1001"}`),
		ProviderMessageID: "re_1",
		Status:            notification.StatusSent,
		Attempts:          1,
		SentAt:            &sentAt,
	}

	row := logToRow(log)
	if row.ID != "" || row.CreatedAt != "" {
		t.Fatalf("generated columns must be left to the database: %+v", row)
	}
	if row.ErrorMessage != nil || *row.IdempotencyKey != "k-1" {
		t.Fatalf("unexpected optional columns %+v", row)
	}

	row.ID = "uuid-1"
	row.CreatedAt = "2026-10-15T08:59:59.123456+00:00"
	row.UpdatedAt = "2026-10-15T09:00:00.5"
	back := rowToLog(&row)

	if back.ID != "uuid-1" || back.Kind != notification.KindShipped || back.IdempotencyKey != "k-1" || back.Attempts != 1 {
		t.Fatalf("unexpected log %+v", back)
	}
	if back.SentAt == nil || !back.SentAt.Equal(sentAt) {
		t.Fatalf("unexpected sent_at %v", back.SentAt)
	}
	if back.CreatedAt.IsZero() || back.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to parse, got %v and %v", back.CreatedAt, back.UpdatedAt)
	}
}

func TestParseRows(t *testing.T) {
	logs, err := parseRows([]byte(`[{"id":"1","kind":"receipt","recipient":"a@b.co","order_number":"X","status":"queued","attempts":0}]`))
	if err != nil || len(logs) != 1 || logs[0].Status != notification.StatusQueued {
		t.Fatalf("unexpected rows %+v, err %v", logs, err)
	}
	if _, err := parseRows([]byte(`{`)); err == nil {
		t.Fatalf("expected parse error")
	}
	if !parseTime("garbage").IsZero() {
		t.Fatalf("expected zero time for garbage")
	}
}
