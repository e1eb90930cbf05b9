package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type lookupCall struct {
	userID, scope, key string
}

// idemRouter serves POST and GET /complaints behind IdempotencyValidator,
// optionally as an authenticated user, and records what handlers observed.
func idemRouter(opts IdempotencyOptions, lookup IdempotencyLookup, userID string) (*gin.Engine, *struct {
	key    string
	replay bool
	bypass bool
}) {
	gin.SetMode(gin.TestMode)
	seen := &struct {
		key    string
		replay bool
		bypass bool
	}{}
	r := gin.New()
	r.Use(RequestID())
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(CtxKeyUserID, userID)
		}
		c.Next()
	})
	r.Use(IdempotencyValidator(opts, lookup))
	h := func(c *gin.Context) {
		seen.key, _ = GetIdempotencyKey(c)
		seen.replay = IsReplay(c)
		seen.bypass = IsRateBypass(c)
		c.Status(http.StatusNoContent)
	}
	r.POST("/complaints", h)
	r.GET("/complaints", h)
	return r, seen
}

func sendWithKey(r http.Handler, method, key string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, "/complaints", nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyAccessors_IgnoreWrongTypes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	if k, ok := GetIdempotencyKey(c); ok || k != "" {
		t.Fatalf("empty context returned key %q", k)
	}
	if IsReplay(c) || userIDFromCtx(c) != "" {
		t.Fatalf("empty context should be neither replay nor authenticated")
	}

	c.Set(ctxKeyIdemKey, 7)
	c.Set(ctxKeyIdemReplay, "true")
	c.Set(CtxKeyUserID, 42)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key accepted")
	}
	if IsReplay(c) {
		t.Fatalf("non-bool replay flag accepted")
	}
	if userIDFromCtx(c) != "" {
		t.Fatalf("non-string user id accepted")
	}

	c.Set(ctxKeyIdemKey, "k-1")
	c.Set(ctxKeyIdemReplay, true)
	c.Set(CtxKeyUserID, "citizen-1")
	if k, ok := GetIdempotencyKey(c); !ok || k != "k-1" {
		t.Fatalf("key = %q, %v", k, ok)
	}
	if !IsReplay(c) || userIDFromCtx(c) != "citizen-1" {
		t.Fatalf("typed values not read back")
	}
}

func TestIdempotencyValidator_RejectsMalformedKeys(t *testing.T) {
	r, _ := idemRouter(IdempotencyOptions{MaxLen: 16}, nil, "")

	cases := map[string]string{
		"too long":  strings.Repeat("k", 17),
		"space":     "two words",
		"quote":     `k"1`,
		"slash":     "a/b",
		"non-ascii": "مفتاح",
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			w := sendWithKey(r, http.MethodPost, key)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status=%d", w.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if body["code"] != "bad_idempotency_key" || body["request_id"] == "" {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

func TestIdempotencyValidator_CustomPattern(t *testing.T) {
	r, seen := idemRouter(IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, nil, "")

	if w := sendWithKey(r, http.MethodPost, "abc"); w.Code != http.StatusBadRequest {
		t.Fatalf("letters should fail a digits-only pattern, got %d", w.Code)
	}
	if w := sendWithKey(r, http.MethodPost, "12345"); w.Code != http.StatusNoContent || seen.key != "12345" {
		t.Fatalf("status=%d key=%q", w.Code, seen.key)
	}
}

func TestIdempotencyValidator_IgnoresReadsAndMissingHeader(t *testing.T) {
	called := false
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		called = true
		return true, nil
	}
	r, seen := idemRouter(IdempotencyOptions{}, lookup, "citizen-1")

	// A malformed key on a read is not even looked at.
	if w := sendWithKey(r, http.MethodGet, "not valid"); w.Code != http.StatusNoContent || seen.key != "" {
		t.Fatalf("GET: status=%d key=%q", w.Code, seen.key)
	}
	if w := sendWithKey(r, http.MethodPost, ""); w.Code != http.StatusNoContent || seen.key != "" {
		t.Fatalf("POST without key: status=%d key=%q", w.Code, seen.key)
	}
	if called {
		t.Fatalf("lookup should not run without a write key")
	}
}

func TestIdempotencyValidator_AnonymousWritesSkipLookup(t *testing.T) {
	called := false
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		called = true
		return true, nil
	}
	r, seen := idemRouter(IdempotencyOptions{}, lookup, "")

	w := sendWithKey(r, http.MethodPost, "submit-1")
	if w.Code != http.StatusNoContent || seen.key != "submit-1" {
		t.Fatalf("status=%d key=%q", w.Code, seen.key)
	}
	if called || seen.replay {
		t.Fatalf("anonymous request must not be looked up or replayed")
	}
}

func TestIdempotencyValidator_LookupOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		found  bool
		err    error
		replay bool
	}{
		{"miss", false, nil, false},
		{"hit", true, nil, true},
		{"store down", false, errors.New("db gone"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureLogger(t)
			var got lookupCall
			lookup := func(_ context.Context, userID, scope, key string, now time.Time) (bool, error) {
				if now.Location() != time.UTC {
					t.Errorf("lookup time not UTC: %v", now)
				}
				got = lookupCall{userID, scope, key}
				return tc.found, tc.err
			}
			r, seen := idemRouter(IdempotencyOptions{}, lookup, "citizen-1")

			w := sendWithKey(r, http.MethodPost, "submit-1")
			if w.Code != http.StatusNoContent {
				t.Fatalf("status=%d", w.Code)
			}
			want := lookupCall{"citizen-1", "POST /complaints", "submit-1"}
			if got != want {
				t.Fatalf("lookup got %+v; want %+v", got, want)
			}
			if seen.replay != tc.replay || seen.bypass != tc.replay {
				t.Fatalf("replay=%v bypass=%v; want %v", seen.replay, seen.bypass, tc.replay)
			}
			logged := strings.Contains(buf.String(), "idempotency lookup failed")
			if logged != (tc.err != nil) {
				t.Fatalf("lookup failure logged=%v, logs:\n%s", logged, buf.String())
			}
		})
	}
}

func TestIdempotencyScope_FallsBackToRawPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPatch, "/api/v1/complaints/c-1/status", nil)
	if got := IdempotencyScope(c); got != "PATCH /api/v1/complaints/c-1/status" {
		t.Fatalf("scope = %q", got)
	}
}
