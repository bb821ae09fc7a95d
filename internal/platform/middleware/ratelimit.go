package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/juju/ratelimit"
	"github.com/labstack/echo/v4"

	"github.com/claimsnet/claims/internal/platform/metrics"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int64
	// IdleTTL drops buckets that stayed full for this long.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
		IdleTTL:           30 * time.Minute,
	}
}

type rateLimiterStore struct {
	mu      sync.Mutex
	buckets map[string]*ratelimit.Bucket
	seen    map[string]time.Time
	config  RateLimitConfig
}

func newRateLimiterStore(cfg RateLimitConfig) *rateLimiterStore {
	return &rateLimiterStore{
		buckets: make(map[string]*ratelimit.Bucket),
		seen:    make(map[string]time.Time),
		config:  cfg,
	}
}

func (s *rateLimiterStore) bucket(key string, now time.Time) *ratelimit.Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = ratelimit.NewBucketWithRate(s.config.RequestsPerSecond, s.config.BurstSize)
		s.buckets[key] = b
		metrics.RateLimiterBuckets.Set(float64(len(s.buckets)))
	}
	s.seen[key] = now
	return b
}

// sweep removes buckets that are full and idle past the TTL.
func (s *rateLimiterStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, b := range s.buckets {
		if now.Sub(s.seen[key]) > s.config.IdleTTL && b.Available() == b.Capacity() {
			delete(s.buckets, key)
			delete(s.seen, key)
		}
	}
	metrics.RateLimiterBuckets.Set(float64(len(s.buckets)))
}

// RateLimit limits requests per tenant and client IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.RequestsPerSecond <= 0 || cfg.BurstSize <= 0 {
		cfg = DefaultRateLimitConfig()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	store := newRateLimiterStore(cfg)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / cfg.RequestsPerSecond)))
	lastSweep := time.Now()
	var sweepMu sync.Mutex

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()
			sweepMu.Lock()
			if now.Sub(lastSweep) > cfg.IdleTTL {
				lastSweep = now
				go store.sweep(now)
			}
			sweepMu.Unlock()

			key := c.RealIP()
			if tenantID, ok := c.Get("jwt_tenant_id").(string); ok && tenantID != "" {
				key = tenantID + ":" + key
			}

			b := store.bucket(key, now)
			c.Response().Header().Set("X-RateLimit-Limit", limit)
			if b.TakeAvailable(1) == 0 {
				c.Response().Header().Set("Retry-After", retryAfter)
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(b.Available(), 10))
			return next(c)
		}
	}
}
