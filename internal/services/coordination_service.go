package services

import (
	"context"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/observability"
	"github.com/choukwa/choukwa-backend/internal/repo"
)

const maxCoordinationRunes = 2000

// CoordinationService manages the notes officials exchange about a complaint.
// Entries live in their own table and never touch the audit log.
type CoordinationService struct {
	DB         *gorm.DB
	Complaints *ComplaintService
}

func (s *CoordinationService) tracer() trace.Tracer {
	return observability.Tracer("services/CoordinationService")
}

// complaint loads the complaint and checks the session handles it.
func (s *CoordinationService) complaint(ctx context.Context, sess *auth.Session, id string) (*domain.Complaint, error) {
	c, err := s.Complaints.load(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if !canAct(sess, c) {
		return nil, ErrForbidden
	}
	return c, nil
}

func coordinationContent(s string) (string, error) {
	content := cleanText(s)
	if content == "" {
		return "", invalid("content is required")
	}
	if utf8.RuneCountInString(content) > maxCoordinationRunes {
		return "", invalid("content exceeds %d characters", maxCoordinationRunes)
	}
	return content, nil
}

// List returns the entries of a complaint, oldest first.
func (s *CoordinationService) List(ctx context.Context, sess *auth.Session, complaintID string) ([]domain.CoordinationEntry, error) {
	ctx, span := s.tracer().Start(ctx, "List", trace.WithAttributes(attribute.String("complaint.id", complaintID)))
	defer span.End()

	if _, err := s.complaint(ctx, sess, complaintID); err != nil {
		return nil, err
	}
	out, err := repo.ListCoordination(ctx, s.DB, complaintID)
	if out == nil {
		out = []domain.CoordinationEntry{}
	}
	return out, err
}

// Create adds an entry authored by the session.
func (s *CoordinationService) Create(ctx context.Context, sess *auth.Session, complaintID, content string) (*domain.CoordinationEntry, error) {
	ctx, span := s.tracer().Start(ctx, "Create", trace.WithAttributes(attribute.String("complaint.id", complaintID)))
	defer span.End()

	text, err := coordinationContent(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.complaint(ctx, sess, complaintID); err != nil {
		return nil, err
	}
	e := &domain.CoordinationEntry{
		ComplaintID: complaintID,
		AuthorID:    authorID(sess),
		AuthorName:  actorName(sess),
		AuthorRole:  sess.Role,
		Content:     text,
	}
	if err := repo.CreateCoordination(ctx, s.DB, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Update replaces the content of an entry. Authors edit their own entries;
// admins any.
func (s *CoordinationService) Update(ctx context.Context, sess *auth.Session, complaintID, id, content string) (*domain.CoordinationEntry, error) {
	text, err := coordinationContent(content)
	if err != nil {
		return nil, err
	}
	e, err := s.entry(ctx, sess, complaintID, id)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateCoordinationContent(ctx, s.DB, complaintID, id, text); err != nil {
		if isNotFound(err) {
			return nil, ErrCoordinationNotFound
		}
		return nil, err
	}
	return repo.GetCoordination(ctx, s.DB, complaintID, e.ID)
}

// Delete removes an entry.
func (s *CoordinationService) Delete(ctx context.Context, sess *auth.Session, complaintID, id string) error {
	if _, err := s.entry(ctx, sess, complaintID, id); err != nil {
		return err
	}
	if err := repo.DeleteCoordination(ctx, s.DB, complaintID, id); err != nil {
		if isNotFound(err) {
			return ErrCoordinationNotFound
		}
		return err
	}
	return nil
}

func (s *CoordinationService) entry(ctx context.Context, sess *auth.Session, complaintID, id string) (*domain.CoordinationEntry, error) {
	if _, err := s.complaint(ctx, sess, complaintID); err != nil {
		return nil, err
	}
	e, err := repo.GetCoordination(ctx, s.DB, complaintID, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrCoordinationNotFound
		}
		return nil, err
	}
	if !sess.IsAdmin() && e.AuthorID != authorID(sess) {
		return nil, ErrForbidden
	}
	return e, nil
}

// authorID identifies officials by their directory id so entries survive a
// phone change.
func authorID(sess *auth.Session) string {
	if sess.OfficialID != "" {
		return sess.OfficialID
	}
	return sess.UserID
}
