package template

import (
	"errors"
	"strings"
	"testing"

	"ordermail/internal/domain/notification"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine("Linkist")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func sampleOrder() notification.Order {
	return notification.Order{
		OrderNumber:  "LNK-1001",
		CustomerName: "Ada Lovelace",
		Email:        "ada@example.com",
		Card:         notification.CardConfig{FirstName: "Ada", LastName: "Lovelace", Title: "Engineer", Quantity: 2},
		Shipping: notification.Address{
			FullName:     "Ada Lovelace",
			AddressLine1: "1 Analytical Way",
			City:         "London",
			Country:      "UK",
			PostalCode:   "N1 9GU",
		},
		Pricing: notification.Pricing{Subtotal: 58, Shipping: 5, Tax: 4.64, Total: 67.64},
	}
}

func TestResolveEveryKind(t *testing.T) {
	e := newEngine(t)
	order := sampleOrder()
	payloads := map[notification.Kind]notification.Payload{
		notification.KindConfirmation: notification.ConfirmationPayload{Order: order},
		notification.KindReceipt:      notification.ReceiptPayload{Order: order},
		notification.KindProduction:   notification.ProductionPayload{Order: order},
		notification.KindShipped:      notification.ShippedPayload{Order: order},
		notification.KindDelivered:    notification.DeliveredPayload{Order: order},
		notification.KindPrinterBatch: notification.PrinterBatchPayload{
			To: "print@example.com", BatchRef: "PRINT-2026-10-15", Date: "2026-10-15",
			Orders: []notification.PrinterOrder{{OrderNumber: "LNK-1001", Card: order.Card, Shipping: order.Shipping}},
		},
	}

	for _, kind := range notification.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			msg, err := e.Resolve(kind, payloads[kind])
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if msg.Subject == "" || msg.Body == "" || msg.Text == "" {
				t.Fatalf("expected subject, html and text, got %+v", msg)
			}
			if !strings.Contains(msg.Body, "LNK-1001") {
				t.Fatalf("expected the order number in the body")
			}
			if strings.ContainsAny(msg.Text, "<>{}") {
				t.Fatalf("plain text still contains markup or css:\n%s", msg.Text)
			}
		})
	}
}

func TestResolveSubjects(t *testing.T) {
	e := newEngine(t)
	order := sampleOrder()

	tests := []struct {
		kind notification.Kind
		p    notification.Payload
		want string
	}{
		{notification.KindConfirmation, notification.ConfirmationPayload{Order: order}, "Order Confirmed - LNK-1001 | Linkist"},
		{notification.KindReceipt, notification.ReceiptPayload{Order: order}, "Receipt for Order LNK-1001 | Linkist"},
		{notification.KindDelivered, notification.DeliveredPayload{Order: order}, "Your Linkist Card Has Arrived! - LNK-1001"},
		{notification.KindPrinterBatch, notification.PrinterBatchPayload{
			To: "p@example.com", BatchRef: "B", Date: "2026-10-15",
			Orders: []notification.PrinterOrder{{OrderNumber: "A"}},
		}, "Linkist Print Orders - 2026-10-15 (1 order)"},
	}
	for _, tt := range tests {
		msg, err := e.Resolve(tt.kind, tt.p)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", tt.kind, err)
		}
		if msg.Subject != tt.want {
			t.Fatalf("Resolve(%s) subject = %q, want %q", tt.kind, msg.Subject, tt.want)
		}
	}
}

func TestResolveShippedPlaceholders(t *testing.T) {
	e := newEngine(t)
	order := sampleOrder()
	order.CustomerName = ""

	msg, err := e.Resolve(notification.KindShipped, notification.ShippedPayload{Order: order})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, want := range []string{PlaceholderTrackingNumber, PlaceholderEstimatedDelivery, PlaceholderCustomerName} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("expected placeholder %q in text:\n%s", want, msg.Text)
		}
	}

	msg, err = e.Resolve(notification.KindShipped, notification.ShippedPayload{
		Order:    sampleOrder(),
		Tracking: notification.Tracking{Number: "1Z999AA1", URL: "https://track.example/1Z999AA1"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.Contains(msg.Text, "1Z999AA1") || strings.Contains(msg.Text, PlaceholderTrackingNumber) {
		t.Fatalf("expected the real tracking number:\n%s", msg.Text)
	}
}

func TestResolvePrinterPlaceholders(t *testing.T) {
	e := newEngine(t)
	msg, err := e.Resolve(notification.KindPrinterBatch, notification.PrinterBatchPayload{
		To: "p@example.com", BatchRef: "B", Date: "2026-10-15",
		Orders: []notification.PrinterOrder{{OrderNumber: "A"}, {OrderNumber: "B", Card: notification.CardConfig{Quantity: 4}}},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, want := range []string{"Material: " + PlaceholderMaterial, "Title: " + PlaceholderPrinterTitle, "Total quantity: 5 cards"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("expected %q in text:\n%s", want, msg.Text)
		}
	}
	if !strings.HasSuffix(msg.Subject, "(2 orders)") {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
}

func TestResolveEscapesInput(t *testing.T) {
	e := newEngine(t)
	order := sampleOrder()
	order.CustomerName = `<script>alert("x")</script>`

	msg, err := e.Resolve(notification.KindConfirmation, notification.ConfirmationPayload{Order: order})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if strings.Contains(msg.Body, "<script>alert") {
		t.Fatalf("customer input must be escaped in html")
	}
}

func TestResolveErrors(t *testing.T) {
	e := newEngine(t)
	order := sampleOrder()

	var unknown *notification.UnknownKindError
	if _, err := e.Resolve("welcome", notification.ConfirmationPayload{Order: order}); !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownKindError, got %v", err)
	}

	var mismatch *notification.PayloadMismatchError
	if _, err := e.Resolve(notification.KindReceipt, notification.ConfirmationPayload{Order: order}); !errors.As(err, &mismatch) {
		t.Fatalf("expected PayloadMismatchError, got %v", err)
	}
	if _, err := e.Resolve(notification.KindReceipt, nil); !errors.As(err, &mismatch) {
		t.Fatalf("expected PayloadMismatchError for nil payload, got %v", err)
	}
}

func TestStripHTML(t *testing.T) {
	in := `<html><head><style>.a{color:red}</style></head><body><p>Hello &amp; welcome</p><div>Line   two</div><br/>end</body></html>`
	want := "Hello & welcome\nLine two\nend"
	if got := stripHTML(in); got != want {
		t.Fatalf("stripHTML = %q, want %q", got, want)
	}
}

func TestNewEngineDefaultBrand(t *testing.T) {
	e, err := NewEngine("  ")
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if e.brand != "Linkist" {
		t.Fatalf("expected default brand, got %q", e.brand)
	}
}
