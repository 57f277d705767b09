package notification

import (
	"errors"
	"testing"

	"ordermail/internal/common"
)

func TestValidate(t *testing.T) {
	order := testOrder("LNK-1")

	noEmail := order
	noEmail.Email = ""
	badEmail := order
	badEmail.Email = "not-an-email"
	noNumber := order
	noNumber.OrderNumber = "  "

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"valid", NewRequest(KindConfirmation, ConfirmationPayload{Order: order}), ""},
		{"missing recipient", NewRequest(KindConfirmation, ConfirmationPayload{Order: noEmail}), "recipient"},
		{"bad recipient", NewRequest(KindReceipt, ReceiptPayload{Order: badEmail}), "recipient"},
		{"missing order number", NewRequest(KindShipped, ShippedPayload{Order: noNumber}), "order_number"},
		{"mismatched payload", NewRequest(KindDelivered, ConfirmationPayload{Order: order}), "payload"},
		{"nil payload", Request{Kind: KindReceipt, Recipient: "a@b.co", OrderNumber: "X"}, "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			var ve *common.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

func TestValidEmail(t *testing.T) {
	good := []string{"a@b.co", "first.last+tag@sub.example.com"}
	bad := []string{"", "plain", "a@b", "a b@c.com", "a@@b.com", "@b.com"}

	for _, addr := range good {
		if !ValidEmail(addr) {
			t.Fatalf("expected %q to be valid", addr)
		}
	}
	for _, addr := range bad {
		if ValidEmail(addr) {
			t.Fatalf("expected %q to be invalid", addr)
		}
	}
}

func TestPayloadFor(t *testing.T) {
	order := testOrder("LNK-7")
	for _, kind := range []Kind{KindConfirmation, KindReceipt, KindProduction, KindShipped, KindDelivered} {
		p, err := PayloadFor(kind, order)
		if err != nil {
			t.Fatalf("PayloadFor(%s): %v", kind, err)
		}
		if p.Kind() != kind || p.Reference() != "LNK-7" || p.Recipient() != order.Email {
			t.Fatalf("PayloadFor(%s) built %#v", kind, p)
		}
	}

	var mismatch *PayloadMismatchError
	if _, err := PayloadFor(KindPrinterBatch, order); !errors.As(err, &mismatch) {
		t.Fatalf("expected PayloadMismatchError for printer batch, got %v", err)
	}
	var unknown *UnknownKindError
	if _, err := PayloadFor("welcome", order); !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownKindError, got %v", err)
	}
}

func TestPrinterBatchTotalCards(t *testing.T) {
	p := PrinterBatchPayload{Orders: []PrinterOrder{
		{Card: CardConfig{Quantity: 3}},
		{Card: CardConfig{}},
	}}
	if got := p.TotalCards(); got != 4 {
		t.Fatalf("expected 4 cards, got %d", got)
	}
}

func TestCardDisplayName(t *testing.T) {
	c := CardConfig{CardFirstName: "A.", FirstName: "Ada", LastName: "Lovelace"}
	if got := c.DisplayName(); got != "A. Lovelace" {
		t.Fatalf("unexpected display name %q", got)
	}
	if got := (CardConfig{}).DisplayName(); got != "" {
		t.Fatalf("expected empty display name, got %q", got)
	}
}
