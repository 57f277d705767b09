package notification

import (
	"regexp"
	"strings"

	"ordermail/internal/common"
)

// emailShape accepts local@domain.tld with no whitespace and a single @.
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether addr has a basic email shape.
func ValidEmail(addr string) bool {
	return emailShape.MatchString(addr)
}

// Validate checks a request before any rendering or network work.
func Validate(req Request) error {
	if strings.TrimSpace(req.Recipient) == "" {
		return common.NewFieldError("recipient", "email is required")
	}
	if !ValidEmail(req.Recipient) {
		return common.NewFieldError("recipient", "invalid email format")
	}
	if strings.TrimSpace(req.OrderNumber) == "" {
		return common.NewFieldError("order_number", "order number is required")
	}
	if req.Payload == nil {
		return common.NewFieldError("payload", "payload is required")
	}
	if req.Kind.Valid() && req.Payload.Kind() != req.Kind {
		return common.NewFieldError("payload", (&PayloadMismatchError{Kind: req.Kind, Got: string(req.Payload.Kind())}).Error())
	}
	return nil
}
