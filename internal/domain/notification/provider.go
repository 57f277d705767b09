package notification

import "context"

// Transport defines the contract for the mail delivery mechanism.
// Implementations live in infra/email (SMTP relay, Resend API).
// Deliver must be safe for concurrent use; implementations build their
// connection or client lazily and reuse it.
type Transport interface {
	// IsConfigured reports whether every credential and endpoint setting is
	// present and non-blank. Unconfigured transports are never called.
	IsConfigured() bool

	// Deliver sends a message and returns the provider's message ID.
	// Failures are *TransportError values classified transient or permanent.
	Deliver(ctx context.Context, msg *Message) (string, error)

	// Verify performs a lightweight handshake for health reporting only.
	Verify(ctx context.Context) error

	// Name identifies the transport in logs and errors.
	Name() string
}

// MessageResolver turns a kind and its payload into a rendered message.
// Implementations live in infra/template/. Resolve is pure and only fails
// with *UnknownKindError for kinds outside the enum.
type MessageResolver interface {
	Resolve(kind Kind, p Payload) (RenderedMessage, error)
}
