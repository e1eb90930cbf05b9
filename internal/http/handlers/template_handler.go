package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/services"
	"github.com/choukwa/choukwa-backend/internal/utils"
)

// ListTemplates godoc
// @ID          listTemplates
// @Summary     List reply templates
// @Description Global templates and the caller's own, optionally restricted to one category.
// @Tags        Templates
// @Produce     json
// @Security    BearerAuth
// @Param       category  query     string  false  "Category"
// @Success     200       {array}   domain.ReplyTemplate
// @Router      /templates [get]
func (h *Handlers) ListTemplates(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	items, err := h.svc.Templates.List(c.Request.Context(), sess, domain.Category(strings.TrimSpace(c.Query("category"))))
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.ReplyTemplate{}
	}
	ok(c, http.StatusOK, items)
}

// CreateTemplate godoc
// @ID          createTemplate
// @Summary     Create a reply template
// @Description Only admins may create default (global) templates.
// @Tags        Templates
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      services.TemplateInput  true  "Template"
// @Success     201   {object}  domain.ReplyTemplate
// @Failure     400   {object}  handlers.ErrorResponse  "Validation failed"
// @Router      /templates [post]
func (h *Handlers) CreateTemplate(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var in services.TemplateInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.svc.Templates.Create(c.Request.Context(), sess, in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, t)
}

// UpdateTemplate godoc
// @ID          updateTemplate
// @Summary     Update a reply template
// @Tags        Templates
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                  true  "Template ID"
// @Param       body  body      services.TemplateInput  true  "Fields to change"
// @Success     200   {object}  domain.ReplyTemplate
// @Failure     409   {object}  handlers.ErrorResponse  "Default template"
// @Router      /templates/{id} [patch]
func (h *Handlers) UpdateTemplate(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var in services.TemplateInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.svc.Templates.Update(c.Request.Context(), sess, c.Param("id"), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, t)
}

// DeleteTemplate godoc
// @ID          deleteTemplate
// @Summary     Delete a reply template
// @Tags        Templates
// @Security    BearerAuth
// @Param       id  path  string  true  "Template ID"
// @Success     204
// @Failure     409  {object}  handlers.ErrorResponse  "Default template"
// @Router      /templates/{id} [delete]
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	if err := h.svc.Templates.Delete(c.Request.Context(), sess, c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// TemplateSuggestions godoc
// @ID          templateSuggestions
// @Summary     Suggest reply templates for a complaint
// @Description Ranks the templates of the complaint's category by TF-IDF similarity to its content.
// @Tags        Templates
// @Produce     json
// @Security    BearerAuth
// @Param       id  path      string  true   "Complaint ID"  format(uuid)
// @Param       k   query     int     false  "Max suggestions"  minimum(1) maximum(10) default(3)
// @Success     200 {array}   services.Suggestion
// @Router      /complaints/{id}/template-suggestions [get]
func (h *Handlers) TemplateSuggestions(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	k := utils.Clamp(utils.AtoiDefault(c.Query("k"), 3), 1, 10)
	out, err := h.svc.Templates.Suggest(c.Request.Context(), sess, c.Param("id"), k)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}
