package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"
)

// Result is the outcome of a single rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter provides distributed per-key rate limiting backed by a redis
// sliding window, with an in-memory token bucket fallback when redis is
// unavailable.
type Limiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient

	fallbackLimiters map[string]*rate.Limiter
	fallbackMutex    sync.Mutex
}

// NewLimiter builds a limiter over the shared redis client. redisClient
// may be disabled; all checks then use the in-memory fallback.
func NewLimiter(redisClient *RedisClient) *Limiter {
	l := &Limiter{
		redisClient:      redisClient,
		fallbackLimiters: make(map[string]*rate.Limiter),
	}

	if redisClient.IsEnabled() {
		l.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, rate limiting is in-memory only")
	}

	go l.cleanupFallbackLimiters()

	return l
}

// AllowEndpoint checks a per-minute, per-IP limit scoped to a named
// endpoint.
func (l *Limiter) AllowEndpoint(ctx context.Context, endpoint, ip string, limit int) (*Result, error) {
	key := fmt.Sprintf("ratelimit:endpoint:%s:%s", endpoint, ip)
	return l.allow(ctx, key, limit, time.Minute)
}

func (l *Limiter) allow(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	if l.redisClient.IsEnabled() && l.redisLimiter != nil {
		result, err := l.allowRedis(ctx, key, limit, period)
		if err != nil {
			slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
			return l.allowFallback(key, limit, period), nil
		}
		return result, nil
	}
	return l.allowFallback(key, limit, period), nil
}

func (l *Limiter) allowRedis(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	res, err := l.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit,
		Burst:  limit,
		Period: period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}, nil
}

func (l *Limiter) allowFallback(key string, limit int, period time.Duration) *Result {
	l.fallbackMutex.Lock()
	limiter, ok := l.fallbackLimiters[key]
	if !ok {
		rps := rate.Limit(float64(limit) / period.Seconds())
		limiter = rate.NewLimiter(rps, limit)
		l.fallbackLimiters[key] = limiter
	}
	l.fallbackMutex.Unlock()

	allowed := limiter.Allow()

	remaining := int(limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(period),
	}
	if !allowed {
		result.RetryAfter = time.Until(result.ResetAt)
	}
	return result
}

// cleanupFallbackLimiters bounds fallback map growth under churny IPs.
func (l *Limiter) cleanupFallbackLimiters() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		l.fallbackMutex.Lock()
		if len(l.fallbackLimiters) > 1000 {
			slog.Info("Resetting fallback rate limiters", "count", len(l.fallbackLimiters))
			l.fallbackLimiters = make(map[string]*rate.Limiter)
		}
		l.fallbackMutex.Unlock()
	}
}
