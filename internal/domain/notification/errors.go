package notification

import (
	"context"
	"errors"
	"fmt"
)

// UnknownKindError is returned when a kind is outside the supported set.
// It is a contract violation and never retried.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown notification kind: %q", e.Kind)
}

// PayloadMismatchError is returned when a payload variant does not belong to the requested kind.
type PayloadMismatchError struct {
	Kind Kind
	Got  string
}

func (e *PayloadMismatchError) Error() string {
	return fmt.Sprintf("payload %s does not match kind %q", e.Got, e.Kind)
}

// FailureClass drives the retry decision for a transport error.
type FailureClass int

const (
	// Transient failures (network, timeout, rate limit, 4xx SMTP, 5xx HTTP) are retried.
	Transient FailureClass = iota
	// Permanent failures (auth, rejected address, quota) are not.
	Permanent
)

func (c FailureClass) String() string {
	if c == Permanent {
		return "permanent"
	}
	return "transient"
}

// TransportError is the classified failure every Transport returns.
type TransportError struct {
	Class    FailureClass
	Provider string
	// Code is the provider status (SMTP reply code or HTTP status), zero if none.
	Code int
	Err  error
}

func (e *TransportError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s %s failure (%d): %v", e.Provider, e.Class, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s failure: %v", e.Provider, e.Class, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransientError wraps err as a retryable transport failure.
func NewTransientError(provider string, code int, err error) *TransportError {
	return &TransportError{Class: Transient, Provider: provider, Code: code, Err: err}
}

// NewPermanentError wraps err as a non-retryable transport failure.
func NewPermanentError(provider string, code int, err error) *TransportError {
	return &TransportError{Class: Permanent, Provider: provider, Code: code, Err: err}
}

// IsPermanent reports whether err must not be retried. Unclassified errors
// are transient.
func IsPermanent(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Class == Permanent
	}
	return false
}

// InternalError reports an unexpected failure (a panic) while processing one request.
type InternalError struct {
	Value any
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal failure: %v", e.Value)
}

// errInternalFailure is the caller-facing text for an InternalError.
const errInternalFailure = "internal failure"

func isContextDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
