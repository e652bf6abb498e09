//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

type counterClient struct {
	RedisClient
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func (c *counterClient) Incr(ctx context.Context, key string) (int64, error) {
	if c.incrErr != nil {
		return 0, c.incrErr
	}
	c.counts[key]++
	return c.counts[key], nil
}

func (c *counterClient) Expire(ctx context.Context, key string, d time.Duration) error {
	c.expires[key] = d
	return nil
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()

	t.Run("should allow up to the limit within a window", func(t *testing.T) {
		// --- Arrange ---
		c := &counterClient{counts: map[string]int64{}, expires: map[string]time.Duration{}}
		rl := NewRateLimiter(c)
		key := IdentifierKey(" +1555 ", "initiate")

		// --- Act ---
		var allowed int
		for i := 0; i < 5; i++ {
			ok, err := rl.Allow(ctx, key, 3, time.Minute)
			if err != nil {
				t.Fatalf("allow: %v", err)
			}
			if ok {
				allowed++
			}
		}

		// --- Assert ---
		if allowed != 3 {
			t.Errorf("expected 3 allowed calls, got %d", allowed)
		}
		if c.expires[key] != time.Minute {
			t.Errorf("window should be set on first hit, got %v", c.expires[key])
		}
		if key != "rate_limit:+1555:initiate" {
			t.Errorf("unexpected key %q", key)
		}
	})

	t.Run("should surface redis errors", func(t *testing.T) {
		c := &counterClient{incrErr: errors.New("down")}
		if _, err := NewRateLimiter(c).Allow(ctx, "k", 1, time.Second); err == nil {
			t.Fatal("expected an error")
		}
	})
}
