package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/events"
	"github.com/choukwa/choukwa-backend/internal/http/middleware"
)

// eventFilter restricts the stream to what the session may see: admins get
// everything, officials the complaints routed or forwarded to them, citizens
// their own complaints.
func eventFilter(sess *auth.Session) func(events.Event) bool {
	return func(e events.Event) bool {
		if sess.IsAdmin() {
			return true
		}
		if !strings.HasPrefix(string(e.Kind), "complaint.") {
			return false
		}
		if sess.IsOfficial() {
			return e.Concerns(sess.OfficialID)
		}
		return e.OwnerID != "" && e.OwnerID == sess.UserID
	}
}

// Events godoc
// @ID          streamEvents
// @Summary     Live change notifications
// @Description Server-Sent Events stream of complaint (and, for admins, registration) changes. EventSource clients pass the token as access_token. A "ping" event is sent periodically.
// @Tags        Events
// @Produce     text/event-stream
// @Security    BearerAuth
// @Param       access_token  query  string  false  "Session token for clients that cannot set headers"
// @Success     200           {object}  events.Event
// @Failure     503           {object}  handlers.ErrorResponse  "Streaming disabled"
// @Router      /events [get]
func (h *Handlers) Events(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	if h.svc.Broker == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "event stream unavailable")
		return
	}

	ch, cancel := h.svc.Broker.Subscribe(32, eventFilter(sess))
	defer cancel()

	// The server write timeout would otherwise cut long-lived streams.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	lg := middleware.LoggerFrom(c)
	lg.Debug().Str("user_id", sess.UserID).Msg("event stream opened")
	defer lg.Debug().Str("user_id", sess.UserID).Msg("event stream closed")

	heartbeat := time.NewTicker(h.svc.Heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, open := <-ch:
			if !open {
				return
			}
			c.SSEvent(string(e.Kind), e)
			c.Writer.Flush()
		case t := <-heartbeat.C:
			c.SSEvent("ping", t.UTC().Format(time.RFC3339))
			c.Writer.Flush()
		}
	}
}
