package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/choukwa/choukwa-backend/internal/cache"
	"github.com/choukwa/choukwa-backend/internal/config"
	"github.com/choukwa/choukwa-backend/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims are the JWT claims of a session token. The subject is the user id.
type Claims struct {
	Role       domain.Role `json:"role"`
	OfficialID string      `json:"oid,omitempty"`
	Name       string      `json:"name,omitempty"`
	Phone      string      `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and validates HS256 session tokens. Revoked token ids are
// remembered in the cache until the token would have expired.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	revoked cache.Cache
	now     func() time.Time
}

// NewManager builds a Manager from cfg.
func NewManager(cfg config.AuthConfig, revoked cache.Cache) *Manager {
	return &Manager{
		secret:  []byte(cfg.JWTSecret),
		ttl:     cfg.TokenTTL,
		revoked: revoked,
		now:     time.Now,
	}
}

// Issue signs a new token for s. The returned session carries the token id
// and expiry.
func (m *Manager) Issue(s Session) (string, Session, error) {
	now := m.now().UTC()
	s.TokenID = uuid.NewString()
	s.ExpiresAt = now.Add(m.ttl)
	claims := Claims{
		Role:       s.Role,
		OfficialID: s.OfficialID,
		Name:       s.Name,
		Phone:      s.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.TokenID,
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, s, nil
}

// Parse validates token and returns its session. When the revocation list
// cannot be read the token is accepted and the failure logged.
func (m *Manager) Parse(ctx context.Context, token string) (*Session, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	if m.revoked != nil && claims.ID != "" {
		_, hit, err := m.revoked.Get(ctx, revokedKey(claims.ID))
		switch {
		case err != nil:
			log.Warn().Err(err).Str("token_id", claims.ID).Msg("revocation check unavailable")
		case hit:
			return nil, ErrRevokedToken
		}
	}
	s := &Session{
		UserID:     claims.Subject,
		Role:       claims.Role,
		OfficialID: claims.OfficialID,
		Name:       claims.Name,
		Phone:      claims.Phone,
		TokenID:    claims.ID,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Revoke invalidates the token behind s until it expires.
func (m *Manager) Revoke(ctx context.Context, s *Session) error {
	if m.revoked == nil || s == nil || s.TokenID == "" {
		return nil
	}
	left := s.ExpiresAt.Sub(m.now())
	if left <= 0 {
		return nil
	}
	return m.revoked.Set(ctx, revokedKey(s.TokenID), []byte("1"), left)
}

func revokedKey(jti string) string { return "revoked:" + jti }
