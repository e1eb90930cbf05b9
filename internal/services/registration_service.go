package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/events"
	"github.com/choukwa/choukwa-backend/internal/observability"
	"github.com/choukwa/choukwa-backend/internal/repo"
	"github.com/choukwa/choukwa-backend/internal/utils"
)

// RegistrationService handles self-service sign-up of officials and their
// admin review.
type RegistrationService struct {
	DB     *gorm.DB
	Geo    *GeoService
	Events events.Publisher
	Now    func() time.Time
}

// RegistrationInput is a sign-up request.
type RegistrationInput struct {
	Phone    string      `json:"phone"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
	WilayaID string      `json:"wilaya_id"`
	DairaID  string      `json:"daira_id"`
}

func (s *RegistrationService) tracer() trace.Tracer {
	return observability.Tracer("services/RegistrationService")
}

// Submit records a pending registration. The phone must not belong to an
// existing official or to another pending registration.
func (s *RegistrationService) Submit(ctx context.Context, in RegistrationInput) (*domain.PendingRegistration, error) {
	ctx, span := s.tracer().Start(ctx, "Submit", trace.WithAttributes(attribute.String("role", string(in.Role))))
	defer span.End()

	if in.Role != domain.RoleMP && in.Role != domain.RoleLocalDeputy {
		return nil, invalid("role must be mp or local_deputy")
	}
	phone, ok := utils.NormalizePhone(in.Phone)
	if !ok {
		return nil, invalid("invalid phone")
	}
	name := normalizeName(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	wilayaID, dairaID := strings.TrimSpace(in.WilayaID), strings.TrimSpace(in.DairaID)
	if in.Role == domain.RoleLocalDeputy && dairaID == "" {
		return nil, invalid("daira_id is required for local deputies")
	}
	if _, _, err := s.Geo.ValidateLocation(ctx, wilayaID, dairaID, in.Role == domain.RoleLocalDeputy); err != nil {
		return nil, err
	}
	if err := s.checkUnknownPhone(ctx, phone); err != nil {
		return nil, err
	}

	r := &domain.PendingRegistration{
		Phone:    phone,
		Name:     name,
		Role:     in.Role,
		WilayaID: wilayaID,
	}
	if dairaID != "" {
		r.DairaID = &dairaID
	}
	if err := repo.CreateRegistration(ctx, s.DB, r); err != nil {
		return nil, err
	}
	e := events.New(events.RegistrationCreated, r.ID)
	e.Status = string(r.Status)
	publish(ctx, s.Events, e)
	return r, nil
}

func (s *RegistrationService) checkUnknownPhone(ctx context.Context, phone string) error {
	if _, err := repo.FindPendingRegistrationByPhone(ctx, s.DB, phone); err == nil {
		return ErrDuplicateRegistration
	} else if !isNotFound(err) {
		return err
	}
	if _, err := repo.FindMPByPhone(ctx, s.DB, phone); err == nil {
		return ErrDuplicateRegistration
	} else if !isNotFound(err) {
		return err
	}
	if _, err := repo.FindLocalDeputyByPhone(ctx, s.DB, phone); err == nil {
		return ErrDuplicateRegistration
	} else if !isNotFound(err) {
		return err
	}
	return nil
}

// List returns registrations with the given status (all when empty).
func (s *RegistrationService) List(ctx context.Context, sess *auth.Session, status domain.RegistrationStatus, page, pageSize int) ([]domain.PendingRegistration, int64, error) {
	if !sess.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	switch status {
	case "", domain.RegistrationPending, domain.RegistrationApproved, domain.RegistrationRejected:
	default:
		return nil, 0, ErrInvalidStatus
	}
	offset, limit := utils.Offset(page, pageSize)
	out, total, err := repo.ListRegistrations(ctx, s.DB, status, offset, limit)
	if out == nil {
		out = []domain.PendingRegistration{}
	}
	return out, total, err
}

// Approve creates exactly one official from a pending registration and marks
// it approved, atomically. The conditional status update makes a concurrent
// second approval fail with ErrAlreadyReviewed and roll back its insert.
func (s *RegistrationService) Approve(ctx context.Context, sess *auth.Session, id string) (any, error) {
	ctx, span := s.tracer().Start(ctx, "Approve", trace.WithAttributes(attribute.String("registration.id", id)))
	defer span.End()

	if !sess.IsAdmin() {
		return nil, ErrForbidden
	}
	r, err := s.loadPending(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	w, d, err := s.Geo.ValidateLocation(ctx, r.WilayaID, deref(r.DairaID), r.Role == domain.RoleLocalDeputy)
	if err != nil {
		return nil, err
	}

	var created any
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch r.Role {
		case domain.RoleMP:
			mp := &domain.MP{
				ID:       uuid.NewString(),
				Name:     r.Name,
				Wilaya:   w.Name,
				WilayaID: w.ID,
				Phone:    r.Phone,
				IsActive: true,
			}
			if d != nil {
				dairaID := d.ID
				mp.DairaID, mp.Daira = &dairaID, d.Name
			}
			if err := repo.CreateMP(ctx, tx, mp); err != nil {
				return err
			}
			created = mp
		case domain.RoleLocalDeputy:
			dep := &domain.LocalDeputy{
				ID:       uuid.NewString(),
				Name:     r.Name,
				WilayaID: w.ID,
				DairaID:  d.ID,
				Phone:    r.Phone,
				IsActive: true,
			}
			if err := repo.CreateLocalDeputy(ctx, tx, dep); err != nil {
				return err
			}
			created = dep
		default:
			return invalid("registration has unsupported role %q", r.Role)
		}
		return s.markReviewed(ctx, tx, sess, id, domain.RegistrationApproved)
	})
	if err != nil {
		return nil, err
	}
	s.notifyReviewed(ctx, id, domain.RegistrationApproved)
	log.Info().Str("registration_id", id).Str("reviewer", sess.UserID).Msg("registration approved")
	return created, nil
}

// Reject closes a pending registration without creating an official.
func (s *RegistrationService) Reject(ctx context.Context, sess *auth.Session, id string) error {
	ctx, span := s.tracer().Start(ctx, "Reject", trace.WithAttributes(attribute.String("registration.id", id)))
	defer span.End()

	if !sess.IsAdmin() {
		return ErrForbidden
	}
	if _, err := s.loadPending(ctx, s.DB, id); err != nil {
		return err
	}
	if err := s.markReviewed(ctx, s.DB, sess, id, domain.RegistrationRejected); err != nil {
		return err
	}
	s.notifyReviewed(ctx, id, domain.RegistrationRejected)
	return nil
}

func (s *RegistrationService) loadPending(ctx context.Context, tx *gorm.DB, id string) (*domain.PendingRegistration, error) {
	r, err := repo.GetRegistration(ctx, tx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	if r.Status != domain.RegistrationPending {
		return nil, ErrAlreadyReviewed
	}
	return r, nil
}

func (s *RegistrationService) markReviewed(ctx context.Context, tx *gorm.DB, sess *auth.Session, id string, status domain.RegistrationStatus) error {
	err := repo.MarkRegistrationReviewed(ctx, tx, id, status, sess.UserID, clock(s.Now))
	if errors.Is(err, repo.ErrNotFound) {
		return ErrAlreadyReviewed
	}
	return err
}

func (s *RegistrationService) notifyReviewed(ctx context.Context, id string, status domain.RegistrationStatus) {
	e := events.New(events.RegistrationUpdated, id)
	e.Status = string(status)
	publish(ctx, s.Events, e)
}
