// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements request rate limiting in two layers:
//
//   - a per-replica token bucket (golang.org/x/time/rate) that smooths bursts
//   - an optional fixed window shared by all replicas through cache.Counter
//     (Redis in production), which caps sustained volume per identity
//
// Identities are the session user when Authenticate resolved one and the
// client IP otherwise. Idempotent replays flagged by IdempotencyValidator
// never consume budget.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/choukwa/choukwa-backend/internal/cache"
)

// keyFunc maps a request to its rate-limit identity.
type keyFunc func(*gin.Context) string

// KeyBySessionOrIP keys authenticated requests by role and user ID and
// anonymous ones by client IP. The role prefix keeps an official who also
// files complaints as a citizen in separate buckets per session.
func KeyBySessionOrIP() keyFunc {
	return func(c *gin.Context) string {
		if s, ok := SessionFrom(c); ok {
			return "user:" + string(s.Role) + ":" + s.UserID
		}
		if v, ok := c.Get(CtxKeyUserID); ok {
			if id, ok := v.(string); ok && id != "" {
				return "user:" + id
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimitOptions configures a RateLimiter.
type RateLimitOptions struct {
	RPS   float64 // token refill per second, per key and replica
	Burst int     // bucket size; values <= 0 become 1

	// Shared, PerWindow and Window enable the cross-replica cap. The cap is
	// off when Shared is nil or PerWindow <= 0.
	Shared    cache.Counter
	PerWindow int64
	Window    time.Duration

	// IdleTTL evicts local buckets that have not been used for this long.
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces RateLimitOptions. Safe for concurrent use.
type RateLimiter struct {
	opt   RateLimitOptions
	keyFn keyFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups uint64
}

const sweepEvery = 5000

// NewRateLimiter builds a limiter keyed by keyFn.
func NewRateLimiter(opt RateLimitOptions, keyFn keyFunc) *RateLimiter {
	if opt.Burst <= 0 {
		opt.Burst = 1
	}
	if opt.IdleTTL <= 0 {
		opt.IdleTTL = 10 * time.Minute
	}
	if opt.Window <= 0 {
		opt.Window = time.Minute
	}
	return &RateLimiter{
		opt:     opt,
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
	}
}

// limiterFor returns the local bucket for key. Idle buckets are swept every
// sweepEvery lookups, before key itself is touched, so a stale bucket for key
// is replaced rather than refreshed.
func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.opt.IdleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rate.Limit(rl.opt.RPS), rl.opt.Burst)
	rl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replay that must not consume rate-limit budget.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the middleware. Rejected requests get 429 with a
// Retry-After header (whole seconds, at least 1) and the standard error
// envelope with code "rate_limited".
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		key := rl.keyFn(c)
		now := time.Now()

		res := rl.limiterFor(key, now).ReserveN(now, 1)
		if !res.OK() {
			rl.reject(c, "local", time.Second)
			return
		}
		if d := res.DelayFrom(now); d > 0 {
			res.CancelAt(now)
			rl.reject(c, "local", d)
			return
		}

		if rl.opt.Shared != nil && rl.opt.PerWindow > 0 {
			n, left, err := rl.opt.Shared.Incr(c.Request.Context(), "ratelimit:"+key, rl.opt.Window)
			switch {
			case err != nil:
				// Counter outages must not take the API down.
				LoggerFrom(c).Warn().Err(err).Msg("shared rate limit unavailable")
			case n > rl.opt.PerWindow:
				rl.reject(c, "shared", left)
				return
			}
		}
		c.Next()
	}
}

func (rl *RateLimiter) reject(c *gin.Context, layer string, retry time.Duration) {
	rateLimited.WithLabelValues(layer).Inc()
	secs := int(math.Ceil(retry.Seconds()))
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "rate_limited",
		"message":    "rate limit exceeded",
	})
}
