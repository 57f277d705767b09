package template

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"ordermail/internal/domain/notification"
)

var _ notification.MessageResolver = (*Engine)(nil)

//go:embed templates/*.html
var templateFS embed.FS

// Placeholders rendered when optional payload fields are absent.
const (
	PlaceholderTrackingNumber    = "Tracking number pending"
	PlaceholderTrackingURL       = "#"
	PlaceholderEstimatedDelivery = "To be confirmed"
	PlaceholderCardTitle         = "Professional"
	PlaceholderCustomerName      = "there"
	PlaceholderMaterial          = "Standard PVC"
	PlaceholderColor             = "Default"
	PlaceholderTexture           = "None"
	PlaceholderPattern           = "None"
	PlaceholderPrinterTitle      = "N/A"
)

// subjects maps each kind to its subject format. Order kinds receive the
// order number and brand; printer batches are formatted separately.
var subjects = map[notification.Kind]string{
	notification.KindConfirmation: "Order Confirmed - %[1]s | %[2]s",
	notification.KindReceipt:      "Receipt for Order %[1]s | %[2]s",
	notification.KindProduction:   "Your Card is in Production - %[1]s | %[2]s",
	notification.KindShipped:      "Package Shipped - %[1]s | %[2]s",
	notification.KindDelivered:    "Your %[2]s Card Has Arrived! - %[1]s",
}

var funcs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// Engine resolves notifications into HTML and plain-text messages using
// html/template with templates embedded in the binary.
type Engine struct {
	templates *template.Template
	brand     string
}

// NewEngine parses the embedded templates. brand is used in subjects and bodies.
func NewEngine(brand string) (*Engine, error) {
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing embedded templates: %w", err)
	}
	if strings.TrimSpace(brand) == "" {
		brand = "Linkist"
	}
	return &Engine{templates: tmpl, brand: brand}, nil
}

// orderView is the data every customer-facing template sees.
type orderView struct {
	Brand             string
	CustomerName      string
	OrderNumber       string
	CardName          string
	CardTitle         string
	Quantity          int
	Pricing           notification.Pricing
	Shipping          notification.Address
	EstimatedDelivery string
	TrackingNumber    string
	TrackingURL       string
}

type printerOrderView struct {
	Index       int
	OrderNumber string
	Name        string
	Title       string
	Material    string
	Color       string
	Texture     string
	Pattern     string
	Quantity    int
	Shipping    notification.Address
}

type printerView struct {
	Brand      string
	Date       string
	BatchRef   string
	Orders     []printerOrderView
	TotalCards int
}

// Resolve renders p for kind. It fails only for kinds outside the enum;
// missing optional fields render placeholders.
func (e *Engine) Resolve(kind notification.Kind, p notification.Payload) (notification.RenderedMessage, error) {
	if !kind.Valid() {
		return notification.RenderedMessage{}, &notification.UnknownKindError{Kind: kind}
	}

	var (
		subject string
		data    any
	)
	switch v := p.(type) {
	case notification.ConfirmationPayload:
		subject, data = e.orderMessage(kind, v.Order, notification.Tracking{})
	case notification.ReceiptPayload:
		subject, data = e.orderMessage(kind, v.Order, notification.Tracking{})
	case notification.ProductionPayload:
		subject, data = e.orderMessage(kind, v.Order, notification.Tracking{})
	case notification.ShippedPayload:
		subject, data = e.orderMessage(kind, v.Order, v.Tracking)
	case notification.DeliveredPayload:
		subject, data = e.orderMessage(kind, v.Order, notification.Tracking{})
	case notification.PrinterBatchPayload:
		subject, data = e.printerMessage(v)
	default:
		got := "nil"
		if p != nil {
			got = string(p.Kind())
		}
		return notification.RenderedMessage{}, &notification.PayloadMismatchError{Kind: kind, Got: got}
	}
	if p.Kind() != kind {
		return notification.RenderedMessage{}, &notification.PayloadMismatchError{Kind: kind, Got: string(p.Kind())}
	}

	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, string(kind)+".html", data); err != nil {
		return notification.RenderedMessage{}, fmt.Errorf("executing template %s: %w", kind, err)
	}
	body := buf.String()

	return notification.RenderedMessage{
		Subject: subject,
		Body:    body,
		Text:    stripHTML(body),
	}, nil
}

func (e *Engine) orderMessage(kind notification.Kind, o notification.Order, t notification.Tracking) (string, orderView) {
	view := orderView{
		Brand:             e.brand,
		CustomerName:      orDefault(o.CustomerName, PlaceholderCustomerName),
		OrderNumber:       o.OrderNumber,
		CardName:          o.Card.DisplayName(),
		CardTitle:         orDefault(o.Card.Title, PlaceholderCardTitle),
		Quantity:          quantity(o.Card.Quantity),
		Pricing:           o.Pricing,
		Shipping:          o.Shipping,
		EstimatedDelivery: orDefault(o.EstimatedDelivery, PlaceholderEstimatedDelivery),
		TrackingNumber:    orDefault(t.Number, PlaceholderTrackingNumber),
		TrackingURL:       orDefault(t.URL, PlaceholderTrackingURL),
	}
	return fmt.Sprintf(subjects[kind], o.OrderNumber, e.brand), view
}

func (e *Engine) printerMessage(p notification.PrinterBatchPayload) (string, printerView) {
	view := printerView{
		Brand:      e.brand,
		Date:       p.Date,
		BatchRef:   p.BatchRef,
		Orders:     make([]printerOrderView, len(p.Orders)),
		TotalCards: p.TotalCards(),
	}
	for i, o := range p.Orders {
		view.Orders[i] = printerOrderView{
			Index:       i + 1,
			OrderNumber: o.OrderNumber,
			Name:        o.Card.DisplayName(),
			Title:       orDefault(o.Card.Title, PlaceholderPrinterTitle),
			Material:    orDefault(o.Card.BaseMaterial, PlaceholderMaterial),
			Color:       orDefault(o.Card.Color, PlaceholderColor),
			Texture:     orDefault(o.Card.Texture, PlaceholderTexture),
			Pattern:     orDefault(o.Card.Pattern, PlaceholderPattern),
			Quantity:    quantity(o.Card.Quantity),
			Shipping:    o.Shipping,
		}
	}

	n := len(p.Orders)
	plural := "s"
	if n == 1 {
		plural = ""
	}
	subject := fmt.Sprintf("%s Print Orders - %s (%d order%s)", e.brand, p.Date, n, plural)
	return subject, view
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func quantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

var (
	invisibleRe = regexp.MustCompile(`(?is)<(head|style|script)[^>]*>.*?</(head|style|script)>`)
	breakRe     = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|h[1-6]|li|tr|ul)>`)
	tagRe       = regexp.MustCompile(`<[^>]*>`)
	spaceRe     = regexp.MustCompile(`[ \t\r\f\v]+`)
)

// stripHTML produces a plain-text fallback: one line per block element,
// entities decoded, blank lines dropped.
func stripHTML(s string) string {
	s = invisibleRe.ReplaceAllString(s, "")
	s = breakRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
