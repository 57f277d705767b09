package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError("bad"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", NewFieldError("recipient", "invalid")), http.StatusBadRequest},
		{NewNotFoundError("delivery log", "42"), http.StatusNotFound},
		{NewUnauthorizedError(""), http.StatusUnauthorized},
		{NewRateLimitedError("a@b.com"), http.StatusTooManyRequests},
		{NewUnavailableError("queued delivery"), http.StatusServiceUnavailable},
		{NewProviderError("smtp", "down"), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Fatalf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFieldErrorMessage(t *testing.T) {
	err := NewFieldError("recipient", "invalid email format")
	if err.Error() != "recipient: invalid email format" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
