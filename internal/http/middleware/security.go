// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file sets the HTTP hardening headers of the JSON API.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests. Only
	// enable it when TLS terminates in front of every replica.
	EnableHSTS bool
	HSTSMaxAge time.Duration // defaults to 180 days

	// NoStore forbids caching of every response.
	NoStore bool

	// PrivateCache marks responses to authenticated requests as
	// "private, no-cache": complaint payloads carry citizen phone numbers and
	// must never sit in a shared cache, while browsers may still revalidate
	// them with the ETags the list endpoints return.
	PrivateCache bool

	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
}

const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityHeaders attaches the hardening headers before the handler runs, so
// handlers can still override Cache-Control (the event stream does).
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	if opt.HSTSMaxAge <= 0 {
		opt.HSTSMaxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(opt.HSTSMaxAge.Seconds())) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		// Tokens may travel in the access_token query of event streams.
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		switch {
		case opt.NoStore:
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		case opt.PrivateCache && hasCredentials(c.Request):
			h.Set("Cache-Control", "private, no-cache")
			h.Add("Vary", "Authorization")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if rid := h.Get("X-Request-ID"); rid != "" {
			exposeHeader(h, "X-Request-ID")
		}

		c.Next()
	}
}

// hasCredentials reports whether the request carries a session token.
func hasCredentials(r *http.Request) bool {
	return r.Header.Get("Authorization") != "" || r.URL.Query().Get("access_token") != ""
}

// exposeHeader appends name to Access-Control-Expose-Headers once.
func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	switch {
	case cur == "":
		h.Set(key, name)
	case !strings.Contains(strings.ToLower(cur), strings.ToLower(name)):
		h.Set(key, cur+", "+name)
	}
}

// isHTTPS reports whether the request arrived over TLS, directly or through a
// proxy that set X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
