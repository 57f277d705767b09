package notification

import "strings"

// Kind enumerates the lifecycle notifications the service can deliver.
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindReceipt      Kind = "receipt"
	KindProduction   Kind = "production"
	KindShipped      Kind = "shipped"
	KindDelivered    Kind = "delivered"
	KindPrinterBatch Kind = "printer_batch"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{
	KindConfirmation,
	KindReceipt,
	KindProduction,
	KindShipped,
	KindDelivered,
	KindPrinterBatch,
}

// Valid reports whether k is a recognized kind.
func (k Kind) Valid() bool {
	switch k {
	case KindConfirmation, KindReceipt, KindProduction, KindShipped, KindDelivered, KindPrinterBatch:
		return true
	}
	return false
}

// Payload is the typed data a kind's template needs. Each kind has exactly
// one payload variant; the set is closed to this package.
type Payload interface {
	Kind() Kind
	// Recipient is the address the notification goes to.
	Recipient() string
	// Reference is the order number, or the batch reference for printer summaries.
	Reference() string

	payload()
}

// CardConfig describes the physical card as printed.
type CardConfig struct {
	CardFirstName string `json:"card_first_name,omitempty"`
	CardLastName  string `json:"card_last_name,omitempty"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Title         string `json:"title,omitempty"`
	Mobile        string `json:"mobile,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
	BaseMaterial  string `json:"base_material,omitempty"`
	Color         string `json:"color,omitempty"`
	Texture       string `json:"texture,omitempty"`
	Pattern       string `json:"pattern,omitempty"`
}

// DisplayName is the name printed on the card, preferring the card-specific fields.
func (c CardConfig) DisplayName() string {
	first := c.CardFirstName
	if first == "" {
		first = c.FirstName
	}
	last := c.CardLastName
	if last == "" {
		last = c.LastName
	}
	return strings.TrimSpace(first + " " + last)
}

// Address is a postal shipping address.
type Address struct {
	FullName     string `json:"full_name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	PostalCode   string `json:"postal_code"`
	PhoneNumber  string `json:"phone_number,omitempty"`
}

// Pricing is the order's price breakdown in USD.
type Pricing struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Order carries the fields shared by every customer-facing kind.
type Order struct {
	OrderNumber       string     `json:"order_number"`
	CustomerName      string     `json:"customer_name"`
	Email             string     `json:"email"`
	Card              CardConfig `json:"card"`
	Shipping          Address    `json:"shipping"`
	Pricing           Pricing    `json:"pricing"`
	EstimatedDelivery string     `json:"estimated_delivery,omitempty"`
}

func (o Order) Recipient() string { return o.Email }
func (o Order) Reference() string { return o.OrderNumber }

// Tracking identifies a shipment with the carrier.
type Tracking struct {
	Number string `json:"number,omitempty"`
	URL    string `json:"url,omitempty"`
}

type ConfirmationPayload struct{ Order }

type ReceiptPayload struct{ Order }

type ProductionPayload struct{ Order }

// ShippedPayload adds carrier tracking; absent tracking renders placeholders.
type ShippedPayload struct {
	Order
	Tracking Tracking `json:"tracking"`
}

type DeliveredPayload struct{ Order }

// PrinterOrder is one card the fulfillment partner must print.
type PrinterOrder struct {
	OrderNumber string     `json:"order_number"`
	Card        CardConfig `json:"card"`
	Shipping    Address    `json:"shipping"`
}

// PrinterBatchPayload is the daily print summary sent to the fulfillment partner.
type PrinterBatchPayload struct {
	To       string         `json:"to"`
	BatchRef string         `json:"batch_ref"`
	Date     string         `json:"date"`
	Orders   []PrinterOrder `json:"orders"`
}

func (p PrinterBatchPayload) Recipient() string { return p.To }
func (p PrinterBatchPayload) Reference() string { return p.BatchRef }

// TotalCards sums card quantities, counting an unset quantity as one.
func (p PrinterBatchPayload) TotalCards() int {
	total := 0
	for _, o := range p.Orders {
		if o.Card.Quantity > 0 {
			total += o.Card.Quantity
		} else {
			total++
		}
	}
	return total
}

func (ConfirmationPayload) Kind() Kind { return KindConfirmation }
func (ReceiptPayload) Kind() Kind      { return KindReceipt }
func (ProductionPayload) Kind() Kind   { return KindProduction }
func (ShippedPayload) Kind() Kind      { return KindShipped }
func (DeliveredPayload) Kind() Kind    { return KindDelivered }
func (PrinterBatchPayload) Kind() Kind { return KindPrinterBatch }

func (ConfirmationPayload) payload() {}
func (ReceiptPayload) payload()      {}
func (ProductionPayload) payload()   {}
func (ShippedPayload) payload()      {}
func (DeliveredPayload) payload()    {}
func (PrinterBatchPayload) payload() {}

// PayloadFor wraps an order in the payload variant for kind. Shipped orders
// get empty tracking; printer batches cannot be built from a single order.
func PayloadFor(kind Kind, order Order) (Payload, error) {
	switch kind {
	case KindConfirmation:
		return ConfirmationPayload{Order: order}, nil
	case KindReceipt:
		return ReceiptPayload{Order: order}, nil
	case KindProduction:
		return ProductionPayload{Order: order}, nil
	case KindShipped:
		return ShippedPayload{Order: order}, nil
	case KindDelivered:
		return DeliveredPayload{Order: order}, nil
	case KindPrinterBatch:
		return nil, &PayloadMismatchError{Kind: kind, Got: "order"}
	default:
		return nil, &UnknownKindError{Kind: kind}
	}
}
