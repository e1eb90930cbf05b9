// Geographic reference data handlers: the public wilaya → daira →
// mutamadiya lookups used by cascading selectors, and their admin CRUD.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/services"
)

// UpdateWilayaRequest patches a wilaya. Nil fields are left untouched.
type UpdateWilayaRequest struct {
	Name *string `json:"name" example:"Alger"`
	Code *int    `json:"code" example:"16"`
}

// UpdateDairaRequest patches a daira. Nil fields are left untouched.
type UpdateDairaRequest struct {
	Name     *string `json:"name" example:"Bab El Oued"`
	WilayaID *string `json:"wilaya_id" example:"16"`
}

// UpdateMutamadiyaRequest renames a mutamadiya.
type UpdateMutamadiyaRequest struct {
	Name string `json:"name" binding:"required" example:"Bologhine"`
}

// ListWilayas godoc
// @ID          listWilayas
// @Summary     List wilayas
// @Tags        Geo
// @Produce     json
// @Success     200  {array}   domain.Wilaya
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /wilayas [get]
func (h *Handlers) ListWilayas(c *gin.Context) {
	items, err := h.svc.Geo.ListWilayas(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Wilaya{}
	}
	ok(c, http.StatusOK, items)
}

// ListDairas godoc
// @ID          listDairas
// @Summary     List the dairas of a wilaya
// @Tags        Geo
// @Produce     json
// @Param       id   path      string  true  "Wilaya ID"
// @Success     200  {array}   domain.Daira
// @Router      /wilayas/{id}/dairas [get]
func (h *Handlers) ListDairas(c *gin.Context) {
	items, err := h.svc.Geo.DairasOf(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Daira{}
	}
	ok(c, http.StatusOK, items)
}

// ListMutamadiyat godoc
// @ID          listMutamadiyat
// @Summary     List the mutamadiyat of a daira
// @Tags        Geo
// @Produce     json
// @Param       id   path      string  true  "Daira ID"
// @Success     200  {array}   domain.Mutamadiya
// @Router      /dairas/{id}/mutamadiyat [get]
func (h *Handlers) ListMutamadiyat(c *gin.Context) {
	items, err := h.svc.Geo.MutamadiyatOf(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Mutamadiya{}
	}
	ok(c, http.StatusOK, items)
}

//
// Admin
//

// CreateWilaya godoc
// @ID          createWilaya
// @Summary     Create a wilaya
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.WilayaInput  true  "Wilaya"
// @Success     201   {object}  domain.Wilaya
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Router      /admin/wilayas [post]
func (h *Handlers) CreateWilaya(c *gin.Context) {
	var in services.WilayaInput
	if !bindJSON(c, &in) {
		return
	}
	w, err := h.svc.Geo.CreateWilaya(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, w)
}

// UpdateWilaya godoc
// @ID          updateWilaya
// @Summary     Update a wilaya
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                        true  "Wilaya ID"
// @Param       body  body      handlers.UpdateWilayaRequest  true  "Fields to change"
// @Success     200   {object}  domain.Wilaya
// @Failure     404   {object}  handlers.ErrorResponse  "Not found"
// @Router      /admin/wilayas/{id} [patch]
func (h *Handlers) UpdateWilaya(c *gin.Context) {
	var req UpdateWilayaRequest
	if !bindJSON(c, &req) {
		return
	}
	w, err := h.svc.Geo.UpdateWilaya(c.Request.Context(), c.Param("id"), req.Name, req.Code)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, w)
}

// DeleteWilaya godoc
// @ID          deleteWilaya
// @Summary     Delete a wilaya
// @Tags        Admin
// @Security    BearerAuth
// @Param       id   path  string  true  "Wilaya ID"
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /admin/wilayas/{id} [delete]
func (h *Handlers) DeleteWilaya(c *gin.Context) {
	if err := h.svc.Geo.DeleteWilaya(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// CreateDaira godoc
// @ID          createDaira
// @Summary     Create a daira
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.DairaInput  true  "Daira"
// @Success     201   {object}  domain.Daira
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Router      /admin/dairas [post]
func (h *Handlers) CreateDaira(c *gin.Context) {
	var in services.DairaInput
	if !bindJSON(c, &in) {
		return
	}
	d, err := h.svc.Geo.CreateDaira(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, d)
}

// UpdateDaira godoc
// @ID          updateDaira
// @Summary     Update a daira
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                       true  "Daira ID"
// @Param       body  body      handlers.UpdateDairaRequest  true  "Fields to change"
// @Success     200   {object}  domain.Daira
// @Router      /admin/dairas/{id} [patch]
func (h *Handlers) UpdateDaira(c *gin.Context) {
	var req UpdateDairaRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.svc.Geo.UpdateDaira(c.Request.Context(), c.Param("id"), req.Name, req.WilayaID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// DeleteDaira godoc
// @ID          deleteDaira
// @Summary     Delete a daira
// @Tags        Admin
// @Security    BearerAuth
// @Param       id   path  string  true  "Daira ID"
// @Success     204
// @Router      /admin/dairas/{id} [delete]
func (h *Handlers) DeleteDaira(c *gin.Context) {
	if err := h.svc.Geo.DeleteDaira(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// CreateMutamadiya godoc
// @ID          createMutamadiya
// @Summary     Create a mutamadiya
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.MutamadiyaInput  true  "Mutamadiya"
// @Success     201   {object}  domain.Mutamadiya
// @Router      /admin/mutamadiyat [post]
func (h *Handlers) CreateMutamadiya(c *gin.Context) {
	var in services.MutamadiyaInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.svc.Geo.CreateMutamadiya(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// UpdateMutamadiya godoc
// @ID          updateMutamadiya
// @Summary     Rename a mutamadiya
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                            true  "Mutamadiya ID"
// @Param       body  body      handlers.UpdateMutamadiyaRequest  true  "New name"
// @Success     200   {object}  domain.Mutamadiya
// @Router      /admin/mutamadiyat/{id} [patch]
func (h *Handlers) UpdateMutamadiya(c *gin.Context) {
	var req UpdateMutamadiyaRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.svc.Geo.UpdateMutamadiya(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// DeleteMutamadiya godoc
// @ID          deleteMutamadiya
// @Summary     Delete a mutamadiya
// @Tags        Admin
// @Security    BearerAuth
// @Param       id   path  string  true  "Mutamadiya ID"
// @Success     204
// @Router      /admin/mutamadiyat/{id} [delete]
func (h *Handlers) DeleteMutamadiya(c *gin.Context) {
	if err := h.svc.Geo.DeleteMutamadiya(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
