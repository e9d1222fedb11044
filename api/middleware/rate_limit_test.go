package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func serveLimited(t *testing.T, limiter Limiter, ip string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	handler := RateLimit(limiter, "auth", nil)(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func TestMemoryLimiterRejectsAfterBurst(t *testing.T) {
	limiter := NewMemoryLimiter(rate.Every(time.Hour), 2, time.Minute)

	require.Equal(t, http.StatusNoContent, serveLimited(t, limiter, "198.51.100.1").Code)
	require.Equal(t, http.StatusNoContent, serveLimited(t, limiter, "198.51.100.1").Code)

	rec := serveLimited(t, limiter, "198.51.100.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.JSONEq(t, `{"success":false,"message":"Too many requests. Please try again later."}`, rec.Body.String())

	require.Equal(t, http.StatusNoContent, serveLimited(t, limiter, "198.51.100.2").Code)
}

func TestMemoryLimiterForgetsIdleKeys(t *testing.T) {
	limiter := NewMemoryLimiter(rate.Every(time.Hour), 1, time.Minute)
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return current }

	allowed, err := limiter.Allow(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, allowed)

	current = current.Add(2 * time.Minute)
	_, err = limiter.Allow(context.Background(), "b")
	require.NoError(t, err)
	require.Equal(t, 1, limiter.size())
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLimiter(client, "serenity", time.Minute, 3)
	ctx := context.Background()

	for range 3 {
		allowed, err := limiter.Allow(ctx, "203.0.113.5")
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, err := limiter.Allow(ctx, "203.0.113.5")
	require.NoError(t, err)
	require.False(t, allowed)
	require.True(t, server.Exists("serenity:203.0.113.5"))

	server.FastForward(61 * time.Second)
	allowed, err = limiter.Allow(ctx, "203.0.113.5")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestRedisLimiterThroughMiddleware(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedisLimiter(client, "", time.Minute, 1)
	require.Equal(t, http.StatusNoContent, serveLimited(t, limiter, "203.0.113.9").Code)
	require.Equal(t, http.StatusTooManyRequests, serveLimited(t, limiter, "203.0.113.9").Code)
	require.True(t, server.Exists("auth:203.0.113.9"))
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestRateLimitRejectsWhenLimiterFails(t *testing.T) {
	rec := serveLimited(t, brokenLimiter{}, "203.0.113.1")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
