// Registration handlers: public self-service sign-up of prospective
// officials and its admin review queue.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/services"
)

// ListRegistrationsResponse wraps a page of registrations.
type ListRegistrationsResponse struct {
	Registrations []domain.PendingRegistration `json:"registrations"`
	Pagination    Pagination                   `json:"pagination"`
}

// SubmitRegistration godoc
// @ID          submitRegistration
// @Summary     Request an official account
// @Description Records a pending registration for a prospective MP or local deputy.
// @Tags        Registrations
// @Accept      json
// @Produce     json
// @Param       body  body      services.RegistrationInput  true  "Registration"
// @Success     201   {object}  domain.PendingRegistration
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409   {object}  handlers.ErrorResponse  "Phone already registered"
// @Router      /registrations [post]
func (h *Handlers) SubmitRegistration(c *gin.Context) {
	var in services.RegistrationInput
	if !bindJSON(c, &in) {
		return
	}
	reg, err := h.svc.Registrations.Submit(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, reg)
}

// ListRegistrations godoc
// @ID          listRegistrations
// @Summary     Registration review queue
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       status     query     string  false  "pending, approved or rejected (default: all)"
// @Param       page       query     int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query     int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200        {object}  handlers.ListRegistrationsResponse
// @Router      /admin/registrations [get]
func (h *Handlers) ListRegistrations(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	page, pageSize := clampPagination(c)
	status := domain.RegistrationStatus(strings.TrimSpace(c.Query("status")))
	items, total, err := h.svc.Registrations.List(c.Request.Context(), sess, status, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.PendingRegistration{}
	}
	ok(c, http.StatusOK, ListRegistrationsResponse{Registrations: items, Pagination: newPagination(page, pageSize, total)})
}

// ApproveRegistration godoc
// @ID          approveRegistration
// @Summary     Approve a registration
// @Description Creates the MP or local deputy and marks the registration approved.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Registration ID"
// @Success     201  {object}  domain.MP  "The created official (MP or local deputy)"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already reviewed"
// @Router      /admin/registrations/{id}/approve [post]
func (h *Handlers) ApproveRegistration(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	official, err := h.svc.Registrations.Approve(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, official)
}

// RejectRegistration godoc
// @ID          rejectRegistration
// @Summary     Reject a registration
// @Tags        Admin
// @Security    BearerAuth
// @Param       id   path  string  true  "Registration ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already reviewed"
// @Router      /admin/registrations/{id}/reject [post]
func (h *Handlers) RejectRegistration(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	if err := h.svc.Registrations.Reject(c.Request.Context(), sess, c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
