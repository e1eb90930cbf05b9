// Package services defines the business logic of the complaint platform:
// geographic lookups, complaint routing and lifecycle, forwarding, reporting,
// the officials directory, registrations, reply templates and coordination.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Lookup errors.
var (
	// ErrComplaintNotFound indicates that the requested complaint does not
	// exist.
	ErrComplaintNotFound = errors.New("complaint not found")

	// ErrOfficialNotFound indicates that the requested MP does not exist or
	// is not active.
	ErrOfficialNotFound = errors.New("official not found")

	// ErrDeputyNotFound indicates that the requested local deputy does not
	// exist.
	ErrDeputyNotFound = errors.New("local deputy not found")

	// ErrGeoNotFound indicates that a wilaya, daira or mutamadiya does not
	// exist.
	ErrGeoNotFound = errors.New("geographic entity not found")

	ErrRegistrationNotFound = errors.New("registration not found")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrCoordinationNotFound = errors.New("coordination entry not found")
)

// Rule violations.
var (
	// ErrValidation wraps every input validation failure. Use errors.Is to
	// detect it; the wrapped message is safe to show to clients.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCategory is returned for an unknown complaint category.
	ErrInvalidCategory = errors.New("invalid category")

	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidMethod   = errors.New("invalid forwarding method")

	// ErrInvalidTransition is returned when the status table does not allow
	// the requested move for the actor's role.
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrForbidden is returned when the session may not perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrUnverifiedPhone is returned when a login carries no valid OTP
	// gateway assertion for the phone.
	ErrUnverifiedPhone = errors.New("phone not verified")

	// ErrNoWhatsAppNumber is returned when forwarding over WhatsApp to a
	// deputy without a usable phone or WhatsApp number.
	ErrNoWhatsAppNumber = errors.New("local deputy has no whatsapp number")

	// ErrDuplicateRegistration is returned when the phone already has a
	// pending registration or belongs to an official.
	ErrDuplicateRegistration = errors.New("registration already exists for this phone")

	// ErrAlreadyReviewed is returned when approving or rejecting a
	// registration that is no longer pending.
	ErrAlreadyReviewed = errors.New("registration already reviewed")

	// ErrTemplateProtected is returned when deleting a default template.
	ErrTemplateProtected = errors.New("default templates cannot be deleted")

	// ErrDailyLimit is returned when a citizen exceeds the daily submission
	// allowance.
	ErrDailyLimit = errors.New("daily complaint limit reached")
)

// invalid returns an ErrValidation carrying a client-safe message.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
