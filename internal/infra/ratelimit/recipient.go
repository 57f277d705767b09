package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"ordermail/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

var _ notification.RecipientRateLimiter = (*RedisRecipientLimiter)(nil)

// slidingWindow trims entries older than the window, then adds the new
// member only if the remaining count is under the limit. Returns 1 if added.
//
// KEYS[1] window key; ARGV: now (ns), window start (ns), limit, member, ttl (ms)
var slidingWindow = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RedisRecipientLimiter caps queued notifications per recipient with a
// sliding window: each send is a sorted-set member scored by its timestamp.
type RedisRecipientLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	now    func() time.Time
}

// NewRedisRecipientLimiter creates a limiter allowing maxPerHour sends per address.
func NewRedisRecipientLimiter(redisAddr, password string, db int, maxPerHour int) *RedisRecipientLimiter {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
	return NewRecipientLimiter(client, maxPerHour, time.Hour)
}

// NewRecipientLimiter wraps an existing client with a custom window.
func NewRecipientLimiter(client *redis.Client, max int, window time.Duration) *RedisRecipientLimiter {
	return &RedisRecipientLimiter{
		client: client,
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Key returns the redis key holding recipient's window. Addresses are case-insensitive.
func Key(recipient string) string {
	return "ordermail:ratelimit:" + strings.ToLower(strings.TrimSpace(recipient))
}

// Allow reports whether recipient is under the limit and, if so, records the send.
// The check and the record are one atomic script run. A non-positive limit disables limiting.
func (r *RedisRecipientLimiter) Allow(ctx context.Context, recipient string) (bool, error) {
	if r.max <= 0 {
		return true, nil
	}
	now := r.now()
	windowStart := now.Add(-r.window)

	// Unique member so concurrent sends in the same nanosecond both count.
	randBytes := make([]byte, 4)
	_, _ = rand.Read(randBytes)
	member := fmt.Sprintf("%d:%s", now.UnixNano(), hex.EncodeToString(randBytes))

	added, err := slidingWindow.Run(ctx, r.client, []string{Key(recipient)},
		now.UnixNano(),
		windowStart.UnixNano(),
		r.max,
		member,
		(r.window + time.Minute).Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("checking recipient rate limit: %w", err)
	}
	return added == 1, nil
}

// Close closes the Redis connection.
func (r *RedisRecipientLimiter) Close() error {
	return r.client.Close()
}
