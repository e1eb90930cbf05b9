package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/services"
	"github.com/choukwa/choukwa-backend/internal/utils"
)

// reportQuery reads the report query parameters shared by both reports.
func reportQuery(c *gin.Context) (services.ReportQuery, bool) {
	var q services.ReportQuery
	var okT bool
	if q.From, okT = parseTimeParam(c, "from"); !okT {
		return q, false
	}
	if q.To, okT = parseTimeParam(c, "to"); !okT {
		return q, false
	}
	switch g := services.GroupBy(strings.ToLower(strings.TrimSpace(c.Query("group_by")))); g {
	case "", services.GroupByWilaya, services.GroupByDaira:
		q.GroupBy = g
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group_by must be wilaya or daira")
		return q, false
	}
	q.TopN = utils.AtoiDefault(c.Query("top_n"), 0)
	q.Months = utils.AtoiDefault(c.Query("months"), 0)
	if q.TopN < 0 || q.Months < 0 || q.Months > 36 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "top_n and months must be positive (months at most 36)")
		return q, false
	}
	q.WilayaID = strings.TrimSpace(c.Query("wilaya_id"))
	q.Category = domain.Category(strings.TrimSpace(c.Query("category")))
	return q, true
}

// OfficialReport godoc
// @ID          officialReport
// @Summary     Statistics of the session official
// @Description Counts by status, response and forward rates, and breakdowns by location (daira by default), category and month.
// @Tags        Reports
// @Produce     json
// @Security    BearerAuth
// @Param       from      query     string  false  "Created at or after (RFC 3339 or YYYY-MM-DD)"
// @Param       to        query     string  false  "Created before (RFC 3339 or YYYY-MM-DD)"
// @Param       group_by  query     string  false  "wilaya or daira"
// @Param       top_n     query     int     false  "Locations kept before folding into other"
// @Param       months    query     int     false  "Trailing months in the monthly series"
// @Param       category  query     string  false  "Category"
// @Success     200       {object}  services.Report
// @Router      /officials/me/report [get]
func (h *Handlers) OfficialReport(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	q, okQ := reportQuery(c)
	if !okQ {
		return
	}
	r, err := h.svc.Reports.OfficialReport(c.Request.Context(), sess, q)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// AdminReport godoc
// @ID          adminReport
// @Summary     Platform-wide statistics
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       from       query     string  false  "Created at or after (RFC 3339 or YYYY-MM-DD)"
// @Param       to         query     string  false  "Created before (RFC 3339 or YYYY-MM-DD)"
// @Param       group_by   query     string  false  "wilaya (default) or daira"
// @Param       top_n      query     int     false  "Locations kept before folding into other"
// @Param       months     query     int     false  "Trailing months in the monthly series"
// @Param       wilaya_id  query     string  false  "Wilaya ID"
// @Param       category   query     string  false  "Category"
// @Success     200        {object}  services.Report
// @Router      /admin/reports [get]
func (h *Handlers) AdminReport(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	q, okQ := reportQuery(c)
	if !okQ {
		return
	}
	r, err := h.svc.Reports.AdminReport(c.Request.Context(), sess, q)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}
