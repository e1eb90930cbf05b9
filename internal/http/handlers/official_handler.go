// Officials directory handlers: the public MP directory and category list,
// the local-deputy directory used by MPs when forwarding, and the admin
// management of both.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/services"
)

// ListMPsResponse wraps a page of MPs and pagination information.
type ListMPsResponse struct {
	MPs        []domain.MP `json:"mps"`
	Pagination Pagination  `json:"pagination"`
}

// ListMPs godoc
// @ID          listMPs
// @Summary     Public MP directory
// @Description Returns active MPs, optionally restricted to a wilaya.
// @Tags        Officials
// @Produce     json
// @Param       wilaya_id  query     string  false  "Wilaya ID"
// @Param       page       query     int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query     int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200        {object}  handlers.ListMPsResponse
// @Router      /mps [get]
func (h *Handlers) ListMPs(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.svc.Officials.ListMPs(c.Request.Context(), strings.TrimSpace(c.Query("wilaya_id")), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.MP{}
	}
	ok(c, http.StatusOK, ListMPsResponse{MPs: items, Pagination: newPagination(page, pageSize, total)})
}

// GetMP godoc
// @ID          getMP
// @Summary     Public MP profile
// @Tags        Officials
// @Produce     json
// @Param       id   path      string  true  "MP ID"
// @Success     200  {object}  domain.MP
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /mps/{id} [get]
func (h *Handlers) GetMP(c *gin.Context) {
	mp, err := h.svc.Officials.GetMP(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, mp)
}

// ListCategories godoc
// @ID          listCategories
// @Summary     Complaint categories
// @Description Lists every category with its responsible ministry (none for municipal).
// @Tags        Officials
// @Produce     json
// @Success     200  {array}  domain.CategoryInfo
// @Router      /categories [get]
func (h *Handlers) ListCategories(c *gin.Context) {
	ok(c, http.StatusOK, domain.Categories())
}

// ListLocalDeputies godoc
// @ID          listLocalDeputies
// @Summary     Local deputies of a location
// @Description Officials see active deputies; admins also see inactive ones.
// @Tags        Officials
// @Produce     json
// @Security    BearerAuth
// @Param       wilaya_id  query     string  false  "Wilaya ID"
// @Param       daira_id   query     string  false  "Daira ID"
// @Success     200        {array}   domain.LocalDeputy
// @Failure     403        {object}  handlers.ErrorResponse  "Forbidden"
// @Router      /local-deputies [get]
func (h *Handlers) ListLocalDeputies(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	items, err := h.svc.Officials.ListLocalDeputies(c.Request.Context(), sess,
		strings.TrimSpace(c.Query("wilaya_id")), strings.TrimSpace(c.Query("daira_id")))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

//
// Admin
//

// AdminListMPs godoc
// @ID          adminListMPs
// @Summary     List MPs including inactive ones
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       wilaya_id  query     string  false  "Wilaya ID"
// @Param       page       query     int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query     int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200        {object}  handlers.ListMPsResponse
// @Router      /admin/mps [get]
func (h *Handlers) AdminListMPs(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	page, pageSize := clampPagination(c)
	items, total, err := h.svc.Officials.AdminListMPs(c.Request.Context(), sess, strings.TrimSpace(c.Query("wilaya_id")), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.MP{}
	}
	ok(c, http.StatusOK, ListMPsResponse{MPs: items, Pagination: newPagination(page, pageSize, total)})
}

// CreateMP godoc
// @ID          createMP
// @Summary     Create an MP
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.MPInput  true  "MP fields"
// @Success     201   {object}  domain.MP
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Router      /admin/mps [post]
func (h *Handlers) CreateMP(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var in services.MPInput
	if !bindJSON(c, &in) {
		return
	}
	mp, err := h.svc.Officials.CreateMP(c.Request.Context(), sess, in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, mp)
}

// UpdateMP godoc
// @ID          updateMP
// @Summary     Update an MP
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string            true  "MP ID"
// @Param       body  body      services.MPInput  true  "Fields to change"
// @Success     200   {object}  domain.MP
// @Failure     404   {object}  handlers.ErrorResponse  "Not found"
// @Router      /admin/mps/{id} [patch]
func (h *Handlers) UpdateMP(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var in services.MPInput
	if !bindJSON(c, &in) {
		return
	}
	mp, err := h.svc.Officials.UpdateMP(c.Request.Context(), sess, c.Param("id"), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, mp)
}

// DeleteMP godoc
// @ID          deleteMP
// @Summary     Delete an MP
// @Tags        Admin
// @Security    BearerAuth
// @Param       id   path  string  true  "MP ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /admin/mps/{id} [delete]
func (h *Handlers) DeleteMP(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	if err := h.svc.Officials.DeleteMP(c.Request.Context(), sess, c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// CreateLocalDeputy godoc
// @ID          createLocalDeputy
// @Summary     Create a local deputy
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.DeputyInput  true  "Deputy fields"
// @Success     201   {object}  domain.LocalDeputy
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Router      /admin/local-deputies [post]
func (h *Handlers) CreateLocalDeputy(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var in services.DeputyInput
	if !bindJSON(c, &in) {
		return
	}
	d, err := h.svc.Officials.CreateLocalDeputy(c.Request.Context(), sess, in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, d)
}

// UpdateLocalDeputy godoc
// @ID          updateLocalDeputy
// @Summary     Update a local deputy
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                true  "Deputy ID"
// @Param       body  body      services.DeputyInput  true  "Fields to change"
// @Success     200   {object}  domain.LocalDeputy
// @Failure     404   {object}  handlers.ErrorResponse  "Not found"
// @Router      /admin/local-deputies/{id} [patch]
func (h *Handlers) UpdateLocalDeputy(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var in services.DeputyInput
	if !bindJSON(c, &in) {
		return
	}
	d, err := h.svc.Officials.UpdateLocalDeputy(c.Request.Context(), sess, c.Param("id"), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// DeleteLocalDeputy godoc
// @ID          deleteLocalDeputy
// @Summary     Delete a local deputy
// @Tags        Admin
// @Security    BearerAuth
// @Param       id   path  string  true  "Deputy ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /admin/local-deputies/{id} [delete]
func (h *Handlers) DeleteLocalDeputy(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	if err := h.svc.Officials.DeleteLocalDeputy(c.Request.Context(), sess, c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
