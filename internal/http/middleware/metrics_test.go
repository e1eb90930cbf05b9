package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/domain"
)

func TestMetrics_RouteAndRoleLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/complaints/:id", func(c *gin.Context) {
		c.Set(ctxKeySession, &auth.Session{UserID: "u-1", Role: domain.RoleMP})
		c.String(http.StatusOK, "hello")
	})
	r.GET("/empty", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseMP := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/complaints/:id", "200", "mp"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404", "anonymous"))
	baseEmpty := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/empty", "204", "anonymous"))

	for _, p := range []string{"/complaints/c-1", "/complaints/c-2", "/nope/123", "/empty"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/complaints/:id", "200", "mp")); got != baseMP+2 {
		t.Fatalf("route counter = %v; want %v", got, baseMP+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404", "anonymous")); got != baseMiss+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, baseMiss+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/empty", "204", "anonymous")); got != baseEmpty+1 {
		t.Fatalf("empty counter = %v; want %v", got, baseEmpty+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
