// Package handlers exposes the REST API over the application services.
//
// Handlers are transport-thin: they bind and validate input, resolve the
// session set by middleware.Authenticate, call one service operation and
// translate its result (or sentinel error) into a JSON response.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/events"
	"github.com/choukwa/choukwa-backend/internal/http/middleware"
	"github.com/choukwa/choukwa-backend/internal/services"
	"github.com/choukwa/choukwa-backend/internal/sysutil"
	"github.com/choukwa/choukwa-backend/internal/utils"
)

//
// Handler wiring
//

// Services bundles the application services the API depends on.
type Services struct {
	Sessions      *services.SessionService
	Geo           *services.GeoService
	Officials     *services.OfficialService
	Registrations *services.RegistrationService
	Complaints    *services.ComplaintService
	Templates     *services.TemplateService
	Coordination  *services.CoordinationService
	Reports       *services.ReportService

	// Broker feeds the Server-Sent Events stream. Nil disables it.
	Broker *events.Broker
	// IdempotencyTTL is how long an Idempotency-Key replays its first result.
	IdempotencyTTL time.Duration
	// Heartbeat is the SSE keep-alive period (defaults to 25s).
	Heartbeat time.Duration
}

// Handlers groups every HTTP endpoint of the API.
type Handlers struct {
	svc Services
}

// New constructs and returns a Handlers instance bound to the given services.
func New(svc Services) *Handlers {
	if svc.IdempotencyTTL <= 0 {
		svc.IdempotencyTTL = 24 * time.Hour
	}
	if svc.Heartbeat <= 0 {
		svc.Heartbeat = 25 * time.Second
	}
	useJSONFieldNames()
	return &Handlers{svc: svc}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// session returns the authenticated session. Routes that call it are mounted
// behind RequireSession or RequireRole; the 401 here only guards miswiring.
func session(c *gin.Context) (*auth.Session, bool) {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return nil, false
	}
	return s, true
}

// clampPagination reads page and page_size from the query.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"))
}

// parseTimeParam accepts RFC 3339 timestamps and plain dates (UTC midnight).
// An empty value yields nil.
func parseTimeParam(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be RFC 3339 or YYYY-MM-DD")
	return nil, false
}

// listFilter reads the complaint list query parameters.
func listFilter(c *gin.Context) (services.ListFilter, bool) {
	var f services.ListFilter
	for _, raw := range c.QueryArray("status") {
		for _, st := range strings.Split(raw, ",") {
			if st = strings.TrimSpace(st); st != "" {
				f.Statuses = append(f.Statuses, domain.Status(st))
			}
		}
	}
	f.Category = domain.Category(strings.TrimSpace(c.Query("category")))
	f.WilayaID = strings.TrimSpace(c.Query("wilaya_id"))
	f.DairaID = strings.TrimSpace(c.Query("daira_id"))
	f.Priority = domain.Priority(strings.TrimSpace(c.Query("priority")))
	f.Urgent = sysutil.IsTruthy(c.Query("urgent"))
	f.Overdue = sysutil.IsTruthy(c.Query("overdue"))
	f.Query = strings.TrimSpace(c.Query("q"))

	var ok bool
	if f.From, ok = parseTimeParam(c, "from"); !ok {
		return f, false
	}
	if f.To, ok = parseTimeParam(c, "to"); !ok {
		return f, false
	}
	f.Page, f.PageSize = clampPagination(c)
	return f, true
}
