// Package auth holds the explicit session object carried through a request
// and the token manager that issues, parses and revokes session tokens.
//
// Identity proof (OTP) happens upstream: the platform only exchanges a
// gateway-verified phone number for a signed session token.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

// Session is the authenticated actor of a request.
type Session struct {
	UserID     string      `json:"user_id"`
	Role       domain.Role `json:"role"`
	OfficialID string      `json:"official_id,omitempty"`
	Name       string      `json:"name,omitempty"`
	Phone      string      `json:"phone,omitempty"`

	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsOfficial reports whether the session belongs to an MP or a local deputy.
func (s *Session) IsOfficial() bool { return s != nil && s.Role.IsOfficial() }

// IsAdmin reports whether the session belongs to an admin.
func (s *Session) IsAdmin() bool { return s != nil && s.Role == domain.RoleAdmin }

// HasRole reports whether the session role is one of roles.
func (s *Session) HasRole(roles ...domain.Role) bool {
	if s == nil {
		return false
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// userNamespace scopes user ids derived from phone numbers.
var userNamespace = uuid.MustParse("9f4b7c1e-6a8d-4f0e-b5d2-3c6e1a7f8b90")

// UserIDForPhone derives the stable user id of a normalised phone number.
func UserIDForPhone(phone string) string {
	return uuid.NewSHA1(userNamespace, []byte(phone)).String()
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
