// Session HTTP handlers.
//
// This file exposes the session endpoints:
//   - POST /auth/login    (exchange a gateway-verified phone for a token)
//   - POST /auth/refresh  (re-resolve the role and rotate the token)
//   - POST /auth/logout   (revoke the current token)
//   - GET  /auth/me       (current session)
//
// The OTP gateway checks the one-time code and hands the client a signed
// assertion; login only accepts a phone that comes with one.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LoginRequest is the JSON payload for logging in.
type LoginRequest struct {
	// Phone is the verified phone number, in any common Algerian format.
	Phone string `json:"phone" binding:"required" example:"0661 23 45 67"`
	// Assertion is the HS256 token issued by the OTP gateway for Phone.
	Assertion string `json:"otp_assertion" example:"eyJhbGciOiJIUzI1NiIs..."`
	// Name optionally sets the display name carried by the session.
	Name string `json:"name" example:"Amina Benali"`
}

// RefreshRequest is the optional JSON payload of a refresh.
type RefreshRequest struct {
	Name string `json:"name" example:"Amina Benali"`
}

// Login godoc
// @ID          login
// @Summary     Log in with a verified phone number
// @Description Checks the OTP gateway assertion, resolves the role of the phone (admin, MP, local deputy or citizen) and issues a session token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Login payload"
// @Success     200   {object}  services.Login
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401   {object}  handlers.ErrorResponse  "Missing, invalid or mismatched OTP assertion"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := h.svc.Sessions.Login(c.Request.Context(), req.Phone, req.Assertion, req.Name)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// Refresh godoc
// @ID          refreshSession
// @Summary     Refresh the session token
// @Description Re-resolves the role behind the session phone, issues a new token and revokes the current one.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.RefreshRequest  false  "Optional new display name"
// @Success     200   {object}  services.Login
// @Failure     401   {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/refresh [post]
func (h *Handlers) Refresh(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var req RefreshRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	out, err := h.svc.Sessions.Refresh(c.Request.Context(), sess, req.Name)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// Logout godoc
// @ID          logout
// @Summary     Log out
// @Description Revokes the current session token.
// @Tags        Auth
// @Security    BearerAuth
// @Success     204
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	if err := h.svc.Sessions.Logout(c.Request.Context(), sess); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// Me godoc
// @ID          me
// @Summary     Current session
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  auth.Session
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	ok(c, http.StatusOK, sess)
}
