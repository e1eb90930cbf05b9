package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

// CoordinationRequest carries the text of a coordination note.
type CoordinationRequest struct {
	Content string `json:"content" binding:"required" example:"Contacté la direction des travaux publics"`
}

// ListCoordination godoc
// @ID          listCoordination
// @Summary     Coordination notes of a complaint
// @Tags        Coordination
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Complaint ID"  format(uuid)
// @Success     200  {array}   domain.CoordinationEntry
// @Router      /complaints/{id}/coordination [get]
func (h *Handlers) ListCoordination(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	items, err := h.svc.Coordination.List(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.CoordinationEntry{}
	}
	ok(c, http.StatusOK, items)
}

// CreateCoordination godoc
// @ID          createCoordination
// @Summary     Add a coordination note
// @Tags        Coordination
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                        true  "Complaint ID"  format(uuid)
// @Param       body  body      handlers.CoordinationRequest  true  "Note"
// @Success     201   {object}  domain.CoordinationEntry
// @Router      /complaints/{id}/coordination [post]
func (h *Handlers) CreateCoordination(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var req CoordinationRequest
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.svc.Coordination.Create(c.Request.Context(), sess, c.Param("id"), req.Content)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, e)
}

// UpdateCoordination godoc
// @ID          updateCoordination
// @Summary     Edit a coordination note
// @Description Authors edit their own notes; admins may edit any.
// @Tags        Coordination
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path      string                        true  "Complaint ID"  format(uuid)
// @Param       entry_id  path      string                        true  "Entry ID"
// @Param       body      body      handlers.CoordinationRequest  true  "Note"
// @Success     200       {object}  domain.CoordinationEntry
// @Router      /complaints/{id}/coordination/{entry_id} [patch]
func (h *Handlers) UpdateCoordination(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var req CoordinationRequest
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.svc.Coordination.Update(c.Request.Context(), sess, c.Param("id"), c.Param("entry_id"), req.Content)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, e)
}

// DeleteCoordination godoc
// @ID          deleteCoordination
// @Summary     Delete a coordination note
// @Tags        Coordination
// @Security    BearerAuth
// @Param       id        path  string  true  "Complaint ID"  format(uuid)
// @Param       entry_id  path  string  true  "Entry ID"
// @Success     204
// @Router      /complaints/{id}/coordination/{entry_id} [delete]
func (h *Handlers) DeleteCoordination(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	if err := h.svc.Coordination.Delete(c.Request.Context(), sess, c.Param("id"), c.Param("entry_id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
