package notification

import "context"

// RecipientRateLimiter caps how many queued notifications one address may receive.
// Implementations live in infra/ratelimit/.
type RecipientRateLimiter interface {
	// Allow reports whether another notification may be sent to recipient.
	Allow(ctx context.Context, recipient string) (bool, error)
}
