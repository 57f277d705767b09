package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestKeyNormalizesRecipient(t *testing.T) {
	if got := Key("  Ada@Example.COM "); got != "ordermail:ratelimit:ada@example.com" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestAllowDisabledLimit(t *testing.T) {
	// No redis is needed when the limit is off.
	l := NewRecipientLimiter(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), 0, time.Hour)
	defer l.Close()

	ok, err := l.Allow(context.Background(), "ada@example.com")
	if err != nil || !ok {
		t.Fatalf("expected disabled limiter to allow, got %v, %v", ok, err)
	}
}

// TestAllowSlidingWindow needs a live redis: ORDERMAIL_TEST_REDIS=localhost:6379.
func TestAllowSlidingWindow(t *testing.T) {
	addr := os.Getenv("ORDERMAIL_TEST_REDIS")
	if addr == "" {
		t.Skip("ORDERMAIL_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	l := NewRecipientLimiter(client, 2, time.Minute)
	defer l.Close()

	ctx := context.Background()
	recipient := uuid.NewString() + "@example.com"
	t.Cleanup(func() { client.Del(context.Background(), Key(recipient)) })

	for i := 0; i < 2; i++ {
		if ok, err := l.Allow(ctx, recipient); err != nil || !ok {
			t.Fatalf("send %d should be allowed: %v, %v", i+1, ok, err)
		}
	}
	if ok, err := l.Allow(ctx, recipient); err != nil || ok {
		t.Fatalf("third send should be limited: %v, %v", ok, err)
	}

	// Moving the clock past the window frees the slots.
	l.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if ok, err := l.Allow(ctx, recipient); err != nil || !ok {
		t.Fatalf("send after the window should be allowed: %v, %v", ok, err)
	}
}
