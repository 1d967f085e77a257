package service

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	opts, err := redis.ParseURL("redis://localhost:6379/15") // DB 15 for tests
	require.NoError(t, err)

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available for testing: %v", err)
	}
	client.FlushDB(context.Background())
	return client
}

func TestRateLimiter_Basic(t *testing.T) {
	client := newTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	limiter := NewRateLimiter(client)

	t.Run("allows requests within limit", func(t *testing.T) {
		ip := "10.0.0.1"
		limit := 3
		window := 10 * time.Second

		for i := 0; i < limit; i++ {
			allowed, _ := limiter.Allow(ctx, SurfaceRedeem, ip, limit, window)
			assert.True(t, allowed, "Request %d should be allowed", i+1)
		}

		allowed, resetAt := limiter.Allow(ctx, SurfaceRedeem, ip, limit, window)
		assert.False(t, allowed, "Request should be rate limited")
		assert.True(t, resetAt.After(time.Now()), "Reset time should be in future")
	})

	t.Run("sliding window behavior", func(t *testing.T) {
		ip := "10.0.0.2"
		limit := 2
		window := 2 * time.Second

		allowed, _ := limiter.Allow(ctx, SurfaceRedeem, ip, limit, window)
		assert.True(t, allowed)
		allowed, _ = limiter.Allow(ctx, SurfaceRedeem, ip, limit, window)
		assert.True(t, allowed)

		allowed, _ = limiter.Allow(ctx, SurfaceRedeem, ip, limit, window)
		assert.False(t, allowed)

		time.Sleep(2100 * time.Millisecond)

		allowed, _ = limiter.Allow(ctx, SurfaceRedeem, ip, limit, window)
		assert.True(t, allowed)
	})

	t.Run("different ips are independent", func(t *testing.T) {
		limit := 1
		window := 10 * time.Second

		allowed, _ := limiter.Allow(ctx, SurfaceInventory, "10.0.0.3", limit, window)
		assert.True(t, allowed)
		allowed, _ = limiter.Allow(ctx, SurfaceInventory, "10.0.0.3", limit, window)
		assert.False(t, allowed)

		allowed, _ = limiter.Allow(ctx, SurfaceInventory, "10.0.0.4", limit, window)
		assert.True(t, allowed)
	})

	t.Run("surfaces keep separate windows", func(t *testing.T) {
		ip := "10.0.0.5"
		limit := 1
		window := 10 * time.Second

		allowed, _ := limiter.Allow(ctx, SurfaceRedeem, ip, limit, window)
		assert.True(t, allowed)
		allowed, _ = limiter.Allow(ctx, SurfaceRedeem, ip, limit, window)
		assert.False(t, allowed)

		// Exhausting the redeem budget leaves inventory untouched
		allowed, _ = limiter.Allow(ctx, SurfaceInventory, ip, limit, window)
		assert.True(t, allowed)
	})
}

func TestRateLimiter_FailClosed(t *testing.T) {
	invalidClient := redis.NewClient(&redis.Options{
		Addr: "localhost:9999", // Invalid port
	})
	defer invalidClient.Close()

	limiter := NewRateLimiter(invalidClient)

	// Redemption ids can be guessed, so a broken limiter denies rather
	// than waving traffic through.
	allowed, resetAt := limiter.Allow(context.Background(), SurfaceRedeem, "10.0.0.9", 1, time.Minute)
	require.False(t, allowed, "Should deny request on Redis failure")
	require.True(t, resetAt.After(time.Now()), "Should return valid reset time")
}
