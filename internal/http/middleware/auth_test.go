package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/cache"
	"github.com/choukwa/choukwa-backend/internal/config"
	"github.com/choukwa/choukwa-backend/internal/domain"
)

func newTokens(t *testing.T) *auth.Manager {
	t.Helper()
	return auth.NewManager(config.AuthConfig{
		JWTSecret: "test-secret-0123456789",
		TokenTTL:  time.Hour,
	}, cache.NewMemory())
}

func issue(t *testing.T, m *auth.Manager, s auth.Session) (string, *auth.Session) {
	t.Helper()
	tok, sess, err := m.Issue(s)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok, &sess
}

func authRouter(m *auth.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(m))
	r.GET("/public", func(c *gin.Context) {
		_, ok := SessionFrom(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})
	r.GET("/me", RequireSession(), func(c *gin.Context) {
		s, _ := SessionFrom(c)
		ctxSess, _ := auth.FromContext(c.Request.Context())
		uid, _ := c.Get(CtxKeyUserID)
		c.JSON(http.StatusOK, gin.H{"user_id": s.UserID, "ctx_user_id": ctxSess.UserID, "key": uid})
	})
	r.GET("/admin", RequireRole(domain.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/officials", RequireRole(domain.RoleMP, domain.RoleLocalDeputy), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func decodeCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	code, _ := body["code"].(string)
	return code
}

func TestAuthenticate_AnonymousAndBearer(t *testing.T) {
	m := newTokens(t)
	r := authRouter(m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/public", nil))
	if w.Code != http.StatusOK || w.Body.String() != `{"authenticated":false}` {
		t.Fatalf("anonymous public: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized || decodeCode(t, w) != "unauthorized" {
		t.Fatalf("anonymous /me: %d %s", w.Code, w.Body.String())
	}

	tok, _ := issue(t, m, auth.Session{UserID: "u1", Role: domain.RoleCitizen})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("bearer /me: %d %s", w.Code, w.Body.String())
	}
	var got map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got["user_id"] != "u1" || got["ctx_user_id"] != "u1" || got["key"] != "u1" {
		t.Fatalf("session not propagated: %v", got)
	}
}

func TestAuthenticate_QueryTokenOnlyForGET(t *testing.T) {
	m := newTokens(t)
	r := authRouter(m)
	tok, _ := issue(t, m, auth.Session{UserID: "mp-1", Role: domain.RoleMP, OfficialID: "mp-1"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?access_token="+tok, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("query token on GET: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/officials?access_token="+tok, nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("query token on POST must be ignored, got %d", w.Code)
	}
}

func TestAuthenticate_BadAndRevokedTokens(t *testing.T) {
	m := newTokens(t)
	r := authRouter(m)

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token should be rejected even on public routes, got %d", w.Code)
	}

	tok, sess := issue(t, m, auth.Session{UserID: "u1", Role: domain.RoleCitizen})
	if err := m.Revoke(context.Background(), sess); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: %d", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["message"] != "session revoked" {
		t.Fatalf("unexpected message: %v", body)
	}
}

func TestRequireRole(t *testing.T) {
	m := newTokens(t)
	r := authRouter(m)

	cases := []struct {
		name   string
		sess   *auth.Session
		method string
		path   string
		want   int
	}{
		{"anonymous admin", nil, http.MethodGet, "/admin", http.StatusUnauthorized},
		{"citizen admin", &auth.Session{UserID: "u1", Role: domain.RoleCitizen}, http.MethodGet, "/admin", http.StatusForbidden},
		{"admin admin", &auth.Session{UserID: "a1", Role: domain.RoleAdmin}, http.MethodGet, "/admin", http.StatusNoContent},
		{"deputy officials", &auth.Session{UserID: "d1", Role: domain.RoleLocalDeputy, OfficialID: "d1"}, http.MethodPost, "/officials", http.StatusNoContent},
		{"admin officials", &auth.Session{UserID: "a1", Role: domain.RoleAdmin}, http.MethodPost, "/officials", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.sess != nil {
				tok, _ := issue(t, m, *tc.sess)
				req.Header.Set("Authorization", "Bearer "+tok)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status=%d want %d body=%s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}
