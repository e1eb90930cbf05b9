// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the session of a request from its bearer token and
// provides role guards for route groups. Authentication is optional at the
// group level: public endpoints run without a session, guarded ones are
// wrapped with RequireSession or RequireRole.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/domain"
)

// Context keys shared with the logging, rate-limit and idempotency middleware.
const (
	CtxKeyUserID  = "userID"
	ctxKeySession = "session"
)

// TokenParser validates a bearer token. *auth.Manager implements it.
type TokenParser interface {
	Parse(ctx context.Context, token string) (*auth.Session, error)
}

// Authenticate parses the bearer token when one is present and stores the
// session in both the Gin context and the request context. A request without
// a token continues anonymously; a request with a bad token is rejected with
// 401 so clients notice expired sessions.
//
// EventSource clients cannot set headers, so the token may also travel in the
// access_token query parameter of GET requests.
func Authenticate(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		sess, err := p.Parse(c.Request.Context(), token)
		if err != nil {
			msg := "invalid session token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "session expired"
			} else if errors.Is(err, auth.ErrRevokedToken) {
				msg = "session revoked"
			}
			abortJSON(c, http.StatusUnauthorized, "unauthorized", msg)
			return
		}
		c.Set(ctxKeySession, sess)
		c.Set(CtxKeyUserID, sess.UserID)
		c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), sess))
		c.Next()
	}
}

// SessionFrom returns the session resolved by Authenticate.
func SessionFrom(c *gin.Context) (*auth.Session, bool) {
	v, ok := c.Get(ctxKeySession)
	if !ok {
		return nil, false
	}
	s, ok := v.(*auth.Session)
	return s, ok && s != nil
}

// RequireSession rejects anonymous requests with 401.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := SessionFrom(c); !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		c.Next()
	}
}

// RequireRole rejects anonymous requests with 401 and sessions whose role is
// not one of roles with 403.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := SessionFrom(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if !sess.HasRole(roles...) {
			abortJSON(c, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c.Request.Method == http.MethodGet {
		return strings.TrimSpace(c.Query("access_token"))
	}
	return ""
}

// abortJSON writes the standard error envelope. The handlers package owns the
// richer helper; middleware cannot import it without a cycle.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       code,
		"message":    msg,
	})
}
