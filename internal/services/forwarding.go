// Package services – forwarding
//
// An MP hands a complaint to a local deputy either inside the platform
// ("system": the deputy becomes the assignee) or over WhatsApp (the MP keeps
// the complaint and the server returns a wa.me deep link carrying a
// formatted message). A WhatsApp forward to a deputy without a usable number
// is rejected before anything is written. The audit row is written when the
// link is produced; delivery is never confirmed.
//
// Forwarding to a ministry stores a generated official letter and tags the
// complaint with the category's ministry label.
package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/observability"
	"github.com/choukwa/choukwa-backend/internal/repo"
	"github.com/choukwa/choukwa-backend/internal/utils"
)

// WhatsAppBaseURL is the deep-link endpoint.
const WhatsAppBaseURL = "https://wa.me/"

// ForwardInput asks to hand a complaint to a local deputy.
type ForwardInput struct {
	DeputyID string                  `json:"deputy_id"`
	Method   domain.ForwardingMethod `json:"method"`
	Notes    string                  `json:"notes"`
}

// ForwardResult is the forwarded complaint and, for the WhatsApp method, the
// link the client should open.
type ForwardResult struct {
	Complaint   *domain.Complaint `json:"complaint"`
	WhatsAppURL string            `json:"whatsapp_url,omitempty"`
}

// canForward reports whether sess may hand c off: the complaint's MP or an
// admin.
func canForward(sess *auth.Session, c *domain.Complaint) bool {
	if sess.IsAdmin() {
		return true
	}
	return sess != nil && sess.Role == domain.RoleMP && c.HandledBy(domain.RoleMP, sess.OfficialID)
}

// Forward hands a complaint to a local deputy.
//
// Errors: ErrInvalidMethod, ErrComplaintNotFound, ErrDeputyNotFound,
// ErrForbidden (not the complaint's MP), ErrNoWhatsAppNumber,
// ErrInvalidTransition. None of them leaves a trace in the database.
func (s *ComplaintService) Forward(ctx context.Context, sess *auth.Session, id string, in ForwardInput) (*ForwardResult, error) {
	ctx, span := s.tracer().Start(ctx, "Forward",
		trace.WithAttributes(
			attribute.String("complaint.id", id),
			attribute.String("deputy.id", in.DeputyID),
			attribute.String("forward.method", string(in.Method)),
		),
	)
	defer span.End()

	if !in.Method.Valid() {
		return nil, ErrInvalidMethod
	}
	if sess == nil {
		return nil, ErrForbidden
	}
	notes := cleanText(in.Notes)
	if utf8.RuneCountInString(notes) > maxNoteRunes {
		return nil, invalid("notes exceed %d characters", maxNoteRunes)
	}
	deputy, err := repo.GetLocalDeputy(ctx, s.DB, in.DeputyID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrDeputyNotFound
		}
		observability.RecordError(span, err)
		return nil, err
	}
	if !deputy.IsActive {
		return nil, invalid("local deputy is not active")
	}
	var number string
	if in.Method == domain.ForwardWhatsApp {
		n, ok := utils.NormalizePhone(deputy.ContactNumber())
		if !ok {
			return nil, ErrNoWhatsAppNumber
		}
		number = n
	}

	res := &ForwardResult{}
	c, err := s.mutate(ctx, sess, id, func(tx *gorm.DB, c *domain.Complaint) error {
		if !canForward(sess, c) {
			return ErrForbidden
		}
		now := s.now()
		deputyID := deputy.ID
		c.ForwardedToDeputyID = &deputyID
		c.ForwardedTo = deputy.Name
		c.ForwardingMethod = in.Method
		c.ForwardedAt = &now
		action := domain.ActionForwardedViaWhatsApp
		if in.Method == domain.ForwardSystem {
			action = domain.ActionForwardedToDeputy
			c.AssignedTo = domain.AssignedToLocalDeputy
			c.LocalDeputyID = &deputyID
		}
		return s.transition(ctx, tx, sess, c, domain.StatusForwarded, action, notes, map[string]any{
			"deputy_id": deputy.ID,
			"method":    string(in.Method),
		})
	})
	if err != nil {
		return nil, err
	}
	observability.ComplaintForwards.WithLabelValues(string(in.Method)).Inc()
	res.Complaint = c
	if in.Method == domain.ForwardWhatsApp {
		res.WhatsAppURL = WhatsAppLink(number, s.whatsAppMessage(ctx, c, sess, notes))
	}
	return res, nil
}

// WhatsAppLink builds https://wa.me/<number>?text=<message>.
func WhatsAppLink(number, message string) string {
	return WhatsAppBaseURL + number + "?text=" + url.QueryEscape(message)
}

// whatsAppMessage formats the hand-off message sent to the deputy.
func (s *ComplaintService) whatsAppMessage(ctx context.Context, c *domain.Complaint, sess *auth.Session, notes string) string {
	location := s.locationLabel(ctx, s.DB, c)
	var b strings.Builder
	b.WriteString("*Choukwa : réclamation transmise*\n\n")
	fmt.Fprintf(&b, "Référence : %s\n", c.ID)
	fmt.Fprintf(&b, "Catégorie : %s\n", categoryLabel(c.Category))
	if location != "" {
		fmt.Fprintf(&b, "Localisation : %s\n", location)
	}
	fmt.Fprintf(&b, "Date : %s\n\n", frenchDate(c.CreatedAt))
	fmt.Fprintf(&b, "Contenu :\n%s\n", c.Content)
	if notes != "" {
		fmt.Fprintf(&b, "\nNotes :\n%s\n", notes)
	}
	fmt.Fprintf(&b, "\nTransmis par : %s\n", actorName(sess))
	return b.String()
}

// locationLabel renders "Wilaya / Daira" from ids, falling back to the ids
// themselves when names are unavailable.
func (s *ComplaintService) locationLabel(ctx context.Context, db *gorm.DB, c *domain.Complaint) string {
	wilaya := c.WilayaID
	daira := ""
	if c.DairaID != nil {
		daira = *c.DairaID
	}
	if w, err := repo.GetWilaya(ctx, db, c.WilayaID); err == nil {
		wilaya = w.Name
	}
	if daira != "" {
		if d, err := repo.GetDaira(ctx, db, daira); err == nil {
			daira = d.Name
		}
	}
	if daira == "" {
		return wilaya
	}
	return wilaya + " / " + daira
}

// ForwardToMinistry generates the official letter of a non-municipal
// complaint, stores it and marks the complaint forwarded to the category's
// ministry.
func (s *ComplaintService) ForwardToMinistry(ctx context.Context, sess *auth.Session, id string) (*domain.Complaint, error) {
	ctx, span := s.tracer().Start(ctx, "ForwardToMinistry", trace.WithAttributes(attribute.String("complaint.id", id)))
	defer span.End()

	c, err := s.mutate(ctx, sess, id, func(tx *gorm.DB, c *domain.Complaint) error {
		if !canForward(sess, c) {
			return ErrForbidden
		}
		ministry := c.Category.Ministry()
		if ministry == "" {
			return invalid("municipal complaints are not forwarded to a ministry")
		}
		letter, err := s.renderLetter(ctx, tx, c, sess)
		if err != nil {
			return err
		}
		now := s.now()
		c.OfficialLetter = letter
		c.ForwardedTo = ministry
		c.ForwardingMethod = ""
		c.ForwardedAt = &now
		return s.transition(ctx, tx, sess, c, domain.StatusForwarded, domain.ActionForwardedToMinistry, "", map[string]any{
			"ministry": ministry,
		})
	})
	if err != nil {
		return nil, err
	}
	observability.ComplaintForwards.WithLabelValues("ministry").Inc()
	return c, nil
}

// GenerateLetter renders the official letter of a complaint without storing
// it.
func (s *ComplaintService) GenerateLetter(ctx context.Context, sess *auth.Session, id string) (string, error) {
	ctx, span := s.tracer().Start(ctx, "GenerateLetter", trace.WithAttributes(attribute.String("complaint.id", id)))
	defer span.End()

	c, err := s.load(ctx, s.DB, id)
	if err != nil {
		return "", err
	}
	if !canAct(sess, c) {
		return "", ErrForbidden
	}
	if c.Category.Ministry() == "" {
		return "", invalid("municipal complaints have no ministry letter")
	}
	return s.renderLetter(ctx, s.DB, c, sess)
}

func (s *ComplaintService) renderLetter(ctx context.Context, db *gorm.DB, c *domain.Complaint, sess *auth.Session) (string, error) {
	sender := LetterSender{Name: actorName(sess)}
	if c.MPID != nil {
		mp, err := repo.GetMP(ctx, db, *c.MPID)
		switch {
		case err == nil:
			sender.Name, sender.Title, sender.Wilaya = mp.Name, "Député(e) à l'Assemblée Populaire Nationale", mp.Wilaya
		case !isNotFound(err):
			return "", err
		}
	}
	return RenderLetter(c, sender, s.locationLabel(ctx, db, c), s.now()), nil
}
