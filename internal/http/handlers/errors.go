// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` and `failErr()` helpers in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., invalid_transition, no_whatsapp_number) are
//     reserved for business logic errors that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Usage:
//   - Handlers select the most specific matching code and pass it to `fail()` along
//     with the corresponding HTTP status and message.
//   - Clients are expected to branch on these codes for programmatic error handling.
//
// Example response:
//   {
//     "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//     "code": "conflict",
//     "message": "registration already exists for this phone"
//   }

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/http/middleware"
	"github.com/choukwa/choukwa-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeValidation        = "validation_failed"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeNoWhatsApp        = "no_whatsapp_number"
	ErrCodeAlreadyReviewed   = "already_reviewed"
	ErrCodeTemplateProtected = "template_protected"
	ErrCodeDailyLimit        = "daily_limit_reached"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
	ErrCodeUnverifiedPhone   = "unverified_phone"
)

// errorMapping pairs a service sentinel with its HTTP status and code.
type errorMapping struct {
	target error
	status int
	code   string
}

// errorTable is checked in order with errors.Is; the first match wins.
var errorTable = []errorMapping{
	{services.ErrComplaintNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrOfficialNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrDeputyNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrGeoNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrRegistrationNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrTemplateNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrCoordinationNotFound, http.StatusNotFound, ErrCodeNotFound},

	{services.ErrInvalidCategory, http.StatusBadRequest, ErrCodeValidation},
	{services.ErrInvalidStatus, http.StatusBadRequest, ErrCodeValidation},
	{services.ErrInvalidPriority, http.StatusBadRequest, ErrCodeValidation},
	{services.ErrInvalidMethod, http.StatusBadRequest, ErrCodeValidation},
	{services.ErrValidation, http.StatusBadRequest, ErrCodeValidation},

	{services.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
	{services.ErrInvalidTransition, http.StatusConflict, ErrCodeInvalidTransition},
	{services.ErrNoWhatsAppNumber, http.StatusUnprocessableEntity, ErrCodeNoWhatsApp},
	{services.ErrDuplicateRegistration, http.StatusConflict, ErrCodeConflict},
	{services.ErrAlreadyReviewed, http.StatusConflict, ErrCodeAlreadyReviewed},
	{services.ErrTemplateProtected, http.StatusConflict, ErrCodeTemplateProtected},
	{services.ErrDailyLimit, http.StatusTooManyRequests, ErrCodeDailyLimit},

	{services.ErrUnverifiedPhone, http.StatusUnauthorized, ErrCodeUnverifiedPhone},
	{auth.ErrInvalidToken, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrExpiredToken, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrRevokedToken, http.StatusUnauthorized, ErrCodeUnauthorized},
}

// failErr translates a service error into the error envelope. Unknown errors
// become a 500 whose message hides the cause; the cause is logged.
func failErr(c *gin.Context, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			fail(c, m.status, m.code, err.Error())
			return
		}
	}
	middleware.LoggerFrom(c).Error().Err(err).Str("path", c.FullPath()).Msg("unhandled service error")
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
}
