package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/observability"
	"github.com/choukwa/choukwa-backend/internal/repo"
	"github.com/choukwa/choukwa-backend/internal/utils"
)

// SessionService exchanges a gateway-verified phone number for a session
// token and manages the token afterwards. Logins without a Verifier are
// refused.
type SessionService struct {
	DB          *gorm.DB
	Tokens      *auth.Manager
	Verifier    *auth.PhoneVerifier
	AdminPhones []string
}

// Login is the result of a successful login or refresh.
type Login struct {
	Token   string       `json:"token"`
	Session auth.Session `json:"session"`
}

func (s *SessionService) tracer() trace.Tracer {
	return observability.Tracer("services/SessionService")
}

// Login checks the OTP gateway assertion for phone, resolves its role and
// issues a token. Admin phones win, then active MPs, then active local
// deputies; everyone else is a citizen.
func (s *SessionService) Login(ctx context.Context, phone, assertion, name string) (*Login, error) {
	ctx, span := s.tracer().Start(ctx, "Login")
	defer span.End()

	p, ok := utils.NormalizePhone(phone)
	if !ok {
		return nil, invalid("invalid phone")
	}
	if err := s.Verifier.Verify(assertion, p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnverifiedPhone, err)
	}
	sess, err := s.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if n := normalizeName(name); n != "" {
		sess.Name = n
	}
	span.SetAttributes(attribute.String("role", string(sess.Role)))
	return s.issue(sess)
}

func (s *SessionService) resolve(ctx context.Context, phone string) (auth.Session, error) {
	sess := auth.Session{UserID: auth.UserIDForPhone(phone), Phone: phone, Role: domain.RoleCitizen}
	for _, a := range s.AdminPhones {
		if n, ok := utils.NormalizePhone(a); ok && n == phone {
			sess.Role = domain.RoleAdmin
			return sess, nil
		}
	}
	mp, err := repo.FindMPByPhone(ctx, s.DB, phone)
	switch {
	case err == nil && mp.IsActive:
		sess.Role, sess.OfficialID, sess.Name = domain.RoleMP, mp.ID, mp.Name
		return sess, nil
	case err != nil && !isNotFound(err):
		return sess, err
	}
	d, err := repo.FindLocalDeputyByPhone(ctx, s.DB, phone)
	switch {
	case err == nil && d.IsActive:
		sess.Role, sess.OfficialID, sess.Name = domain.RoleLocalDeputy, d.ID, d.Name
	case err != nil && !isNotFound(err):
		return sess, err
	}
	return sess, nil
}

func (s *SessionService) issue(sess auth.Session) (*Login, error) {
	tok, issued, err := s.Tokens.Issue(sess)
	if err != nil {
		return nil, err
	}
	return &Login{Token: tok, Session: issued}, nil
}

// Refresh issues a new token for the current session, optionally renaming
// it, and revokes the old one. The role is resolved again so that a
// deactivated official falls back to citizen.
func (s *SessionService) Refresh(ctx context.Context, sess *auth.Session, name string) (*Login, error) {
	if sess == nil {
		return nil, ErrForbidden
	}
	next := *sess
	if sess.Phone != "" {
		resolved, err := s.resolve(ctx, sess.Phone)
		if err != nil {
			return nil, err
		}
		next.Role, next.OfficialID = resolved.Role, resolved.OfficialID
	}
	if name = strings.TrimSpace(name); name != "" {
		if next.Name = normalizeName(name); next.Name == "" {
			return nil, invalid("invalid name")
		}
	}
	out, err := s.issue(next)
	if err != nil {
		return nil, err
	}
	if err := s.Tokens.Revoke(ctx, sess); err != nil {
		return nil, err
	}
	return out, nil
}

// Logout revokes the session token.
func (s *SessionService) Logout(ctx context.Context, sess *auth.Session) error {
	if sess == nil {
		return nil
	}
	return s.Tokens.Revoke(ctx, sess)
}
