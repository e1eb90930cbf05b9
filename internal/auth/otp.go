package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/choukwa/choukwa-backend/internal/config"
	"github.com/choukwa/choukwa-backend/internal/utils"
)

var (
	ErrMissingAssertion = errors.New("phone assertion is required")
	ErrInvalidAssertion = errors.New("invalid phone assertion")
	ErrPhoneMismatch    = errors.New("phone assertion is for another number")
)

// PhoneAssertion is the token the OTP gateway hands to a client after it has
// checked a one-time code sent to Phone.
type PhoneAssertion struct {
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// PhoneVerifier checks OTP gateway assertions: HS256 signed with the shared
// gateway secret, carrying iat and exp, and living no longer than maxAge.
type PhoneVerifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewPhoneVerifier builds a PhoneVerifier from cfg.
func NewPhoneVerifier(cfg config.AuthConfig) *PhoneVerifier {
	maxAge := cfg.OTPMaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	return &PhoneVerifier{
		secret: []byte(cfg.OTPGatewaySecret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Verify checks assertion and that it was issued for phone. phone must
// already be normalised.
func (v *PhoneVerifier) Verify(assertion, phone string) error {
	if v == nil || len(v.secret) == 0 {
		return fmt.Errorf("%w: no gateway secret configured", ErrInvalidAssertion)
	}
	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return ErrMissingAssertion
	}

	var claims PhoneAssertion
	_, err := jwt.ParseWithClaims(assertion, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}
	if claims.IssuedAt == nil {
		return fmt.Errorf("%w: missing iat", ErrInvalidAssertion)
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt.Time) > v.maxAge {
		return fmt.Errorf("%w: lifetime exceeds %s", ErrInvalidAssertion, v.maxAge)
	}

	asserted, ok := utils.NormalizePhone(claims.Phone)
	if !ok {
		return fmt.Errorf("%w: bad phone claim", ErrInvalidAssertion)
	}
	if asserted != phone {
		return ErrPhoneMismatch
	}
	return nil
}
