// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger. Citizen phone
// numbers are the identity of this system, so nothing that reaches the logs
// may carry one in clear: request bodies are never logged, sensitive headers
// are masked and query strings and header values are scrubbed of session
// tokens, UUIDs, e-mail addresses and phone numbers.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are replaced by "[REDACTED]" on top of Authorization,
	// Cookie and Set-Cookie. Case-insensitive.
	MaskHeaders []string
}

var (
	tokenQueryRE = regexp.MustCompile(`(?i)((?:access_token|token)=)[^&]*`)
	uuidRE       = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-8][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE      = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Algerian mobile (0550 12 34 56) and landline (021 12 34 56) numbers,
	// local or international (+213…, 00213…); "+" may arrive URL-encoded.
	dzPhoneRE = regexp.MustCompile(`(?:(?:\+|%2[bB]|\b00)213[ .\-]?|\b0)[2-7]\d(?:[ .\-]?\d){6,7}\b`)
	// Anything else that looks like a phone number.
	phoneRE = regexp.MustCompile(`(?:\+|%2[bB])?\b(?:\d{1,3}[ .\-]?)?(?:\(?\d{2,4}\)?[ .\-]?)?\d{3,4}[ .\-]?\d{4}\b`)
)

// redact scrubs identifiers from s. UUIDs go first so the phone patterns
// cannot bite into their digit groups.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = tokenQueryRE.ReplaceAllString(s, "${1}[REDACTED]")
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	s = dzPhoneRE.ReplaceAllString(s, "[REDACTED:phone]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger attaches the request-scoped logger (see LoggerFrom) and
// writes one "http_request" line per request: info below 400, warn for 4xx,
// error for 5xx or when handlers recorded errors on the context.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		lc := log.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path)
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			lc = lc.Str("trace_id", sc.TraceID().String())
		}
		l := lc.Logger()
		c.Set(ctxKeyLogger, &l)

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", redact(c.Errors.String()))
		}
		if uid := userIDFromCtx(c); uid != "" {
			ev = ev.Str("user_id", uid)
		}

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}

		ev.
			Str("query", truncate(redact(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
