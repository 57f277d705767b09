package notification

import (
	"context"
	"fmt"
)

// CheckHealth reports whether transport is configured and reachable.
// Unconfigured transports are reported unhealthy without any network call.
// It never panics.
func CheckHealth(ctx context.Context, transport Transport) (health TransportHealth) {
	if !transport.IsConfigured() {
		return TransportHealth{
			Healthy:    false,
			Configured: false,
			Message:    "transport credentials not configured",
		}
	}

	defer func() {
		if r := recover(); r != nil {
			health = TransportHealth{
				Healthy:    false,
				Configured: true,
				Message:    fmt.Sprintf("transport error: %v", r),
			}
		}
	}()

	if err := transport.Verify(ctx); err != nil {
		return TransportHealth{
			Healthy:    false,
			Configured: true,
			Message:    fmt.Sprintf("transport error: %v", err),
		}
	}
	return TransportHealth{
		Healthy:    true,
		Configured: true,
		Message:    fmt.Sprintf("%s transport is healthy and configured", transport.Name()),
	}
}
