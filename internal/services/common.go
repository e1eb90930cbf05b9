package services

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/events"
)

// textPolicy strips every tag. Free text is stored and served as plain text.
var textPolicy = bluemonday.StrictPolicy()

// maxCleanRounds bounds how many layers of entity encoding cleanText peels.
const maxCleanRounds = 4

// cleanText removes markup from user input, including markup hidden behind
// HTML entities, and trims it. The result is plain text without entities.
func cleanText(s string) string {
	for i := 0; i < maxCleanRounds; i++ {
		next := html.UnescapeString(textPolicy.Sanitize(html.UnescapeString(s)))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	// Still decoding after the last round: store it escaped.
	return strings.TrimSpace(textPolicy.Sanitize(s))
}

// isNotFound reports whether err is the ORM's record-not-found error.
func isNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

// actorName is the display name recorded for a session in audit rows.
func actorName(s *auth.Session) string {
	if s == nil {
		return ""
	}
	if s.Name != "" {
		return s.Name
	}
	if s.Phone != "" {
		return s.Phone
	}
	return s.UserID
}

// publish sends e and logs failures; notifications are best effort.
func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("kind", string(e.Kind)).Str("resource_id", e.ResourceID).Msg("event publish failed")
	}
}

// complaintEvent builds a change notification for c.
func complaintEvent(kind events.Kind, c *domain.Complaint) events.Event {
	e := events.New(kind, c.ID)
	e.OwnerID = c.UserID
	e.Status = string(c.Status)
	for _, p := range []*string{c.MPID, c.LocalDeputyID, c.ForwardedToDeputyID} {
		if p != nil && *p != "" {
			e.OfficialIDs = append(e.OfficialIDs, *p)
		}
	}
	return e
}

// clock returns now() or time.Now in UTC.
func clock(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
}
