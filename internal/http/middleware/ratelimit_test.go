package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/cache"
	"github.com/choukwa/choukwa-backend/internal/domain"
)

func limitedRouter(rl *RateLimiter, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-1"); c.Next() })
	r.Use(pre...)
	r.Use(rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func hit(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	return w
}

func TestKeyBySessionOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req

	key := KeyBySessionOrIP()
	if got := key(c); got != "ip:203.0.113.9" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Set(CtxKeyUserID, "u123")
	if got := key(c); got != "user:u123" {
		t.Fatalf("user key = %q", got)
	}
	c.Set(ctxKeySession, &auth.Session{UserID: "u123", Role: domain.RoleLocalDeputy})
	if got := key(c); got != "user:local_deputy:u123" {
		t.Fatalf("session key = %q", got)
	}
}

func TestNewRateLimiter_DefaultsAndBucketReuse(t *testing.T) {
	rl := NewRateLimiter(RateLimitOptions{RPS: 2}, KeyBySessionOrIP())
	if rl.opt.Burst != 1 || rl.opt.IdleTTL != 10*time.Minute || rl.opt.Window != time.Minute {
		t.Fatalf("defaults not applied: %+v", rl.opt)
	}
	now := time.Now()
	lim := rl.limiterFor("k1", now)
	if lim.Burst() != 1 {
		t.Fatalf("burst = %d", lim.Burst())
	}
	if rl.limiterFor("k1", now) != lim {
		t.Fatalf("bucket for the same key must be reused")
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(RateLimitOptions{RPS: 1, Burst: 1, IdleTTL: time.Minute}, KeyBySessionOrIP())
	now := time.Now()
	rl.limiterFor("stale", now.Add(-2*time.Minute))
	rl.limiterFor("fresh", now)

	rl.mu.Lock()
	rl.lookups = sweepEvery - 1
	rl.mu.Unlock()
	rl.limiterFor("new", now)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["stale"]; ok {
		t.Fatalf("stale bucket should be swept")
	}
	if _, ok := rl.buckets["fresh"]; !ok {
		t.Fatalf("fresh bucket should survive")
	}
	if rl.lookups != 0 {
		t.Fatalf("lookup counter should reset, got %d", rl.lookups)
	}
}

func TestIsRateBypass(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if IsRateBypass(c) {
		t.Fatalf("bypass must default to false")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatalf("non-bool value must not bypass")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatalf("expected bypass")
	}
}

func TestRateLimiter_LocalBucketRejectsAndReplaysBypass(t *testing.T) {
	rl := NewRateLimiter(RateLimitOptions{RPS: 1, Burst: 1}, KeyBySessionOrIP())
	base := testutil.ToFloat64(rateLimited.WithLabelValues("local"))
	r := limitedRouter(rl)

	if w := hit(r); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	w := hit(r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] != "rid-1" {
		t.Fatalf("unexpected body: %v", body)
	}
	if got := testutil.ToFloat64(rateLimited.WithLabelValues("local")); got != base+1 {
		t.Fatalf("rate_limited{local} = %v; want %v", got, base+1)
	}

	replay := limitedRouter(rl, func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() })
	if w := hit(replay); w.Code != http.StatusOK {
		t.Fatalf("replay should bypass the limiter, got %d", w.Code)
	}
}

func TestRateLimiter_SharedWindowCapsAcrossReplicas(t *testing.T) {
	shared := cache.NewMemory()
	opt := RateLimitOptions{RPS: 100, Burst: 100, Shared: shared, PerWindow: 2, Window: 30 * time.Second}
	a := limitedRouter(NewRateLimiter(opt, KeyBySessionOrIP()))
	b := limitedRouter(NewRateLimiter(opt, KeyBySessionOrIP()))

	if w := hit(a); w.Code != http.StatusOK {
		t.Fatalf("replica a: %d", w.Code)
	}
	if w := hit(b); w.Code != http.StatusOK {
		t.Fatalf("replica b: %d", w.Code)
	}
	w := hit(a)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request across replicas should be limited, got %d", w.Code)
	}
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || secs < 1 || secs > 30 {
		t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
}

type brokenCounter struct{}

func (brokenCounter) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis: connection refused")
}

func TestRateLimiter_SharedCounterOutageFailsOpen(t *testing.T) {
	rl := NewRateLimiter(RateLimitOptions{RPS: 100, Burst: 100, Shared: brokenCounter{}, PerWindow: 1}, KeyBySessionOrIP())
	r := limitedRouter(rl)
	for i := 0; i < 3; i++ {
		if w := hit(r); w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}
}
