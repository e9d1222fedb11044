package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"serenity/internal/dto"
	"serenity/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const tooManyRequestsMessage = "Too many requests. Please try again later."

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit keys requests by client IP under prefix. Limiter failures reject
// the request.
func RateLimit(limiter Limiter, prefix string, log *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil {
				return next(c)
			}
			key := c.RealIP()
			if prefix != "" {
				key = fmt.Sprintf("%s:%s", prefix, key)
			}
			allowed, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				if log != nil {
					log.WithError(err).WithField("key", key).Error("rate limiter unavailable")
				}
				return c.JSON(http.StatusServiceUnavailable, dto.Failure(service.GenericErrorMessage))
			}
			if !allowed {
				return c.JSON(http.StatusTooManyRequests, dto.Failure(tooManyRequestsMessage))
			}
			return next(c)
		}
	}
}

// MemoryLimiter keeps one token bucket per key and forgets keys idle for ttl.
type MemoryLimiter struct {
	limiters map[string]*rate.Limiter
	mutex    sync.Mutex
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	lastSeen map[string]time.Time
	now      func() time.Time
}

func NewMemoryLimiter(r rate.Limit, burst int, ttl time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     r,
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	return l.getLimiter(key).Allow(), nil
}

func (l *MemoryLimiter) getLimiter(key string) *rate.Limiter {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	if limiter, ok := l.limiters[key]; ok {
		l.lastSeen[key] = now
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[key] = limiter
	l.lastSeen[key] = now
	l.cleanup(now)
	return limiter
}

func (l *MemoryLimiter) cleanup(now time.Time) {
	if l.ttl == 0 {
		return
	}
	cutoff := now.Add(-l.ttl)
	for key, last := range l.lastSeen {
		if last.Before(cutoff) {
			delete(l.lastSeen, key)
			delete(l.limiters, key)
		}
	}
}

func (l *MemoryLimiter) size() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.limiters)
}
