// Complaint HTTP handlers.
//
// This file exposes the complaint lifecycle:
//   - POST /complaints                       (citizen submission, idempotent)
//   - GET  /complaints/mine                  (citizen's own complaints)
//   - GET  /complaints/assigned              (official inbox)
//   - GET  /complaints/{id}                  (detail)
//   - POST /complaints/{id}/view|reply|status|priority|notes
//   - POST /complaints/{id}/forward          (to a local deputy)
//   - POST /complaints/{id}/forward-ministry (store letter, mark forwarded)
//   - GET  /complaints/{id}/letter           (preview the official letter)
//   - GET  /complaints/{id}/audit            (audit trail)
//   - GET|PATCH|DELETE /admin/complaints     (admin moderation)
//
// Lists and the audit trail support weak ETags through If-None-Match.
//
// Idempotency:
// If the client supplies an Idempotency-Key header on submission and a
// previous successful result exists for (user, route, key), the handler
// returns the recorded complaint and sets `Idempotency-Replayed: true`.
package handlers

import (
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/http/middleware"
	"github.com/choukwa/choukwa-backend/internal/repo"
	"github.com/choukwa/choukwa-backend/internal/services"
)

//
// DTOs
//

// ListComplaintsResponse wraps a page of complaints and pagination information.
type ListComplaintsResponse struct {
	Complaints []domain.Complaint `json:"complaints"`
	Pagination Pagination         `json:"pagination"`
}

// StatusRequest asks for a status change.
type StatusRequest struct {
	Status domain.Status `json:"status" binding:"required" example:"in_cabinet"`
	Notes  string        `json:"notes" example:"À traiter en commission"`
}

// PriorityRequest sets the triage level.
type PriorityRequest struct {
	Priority domain.Priority `json:"priority" binding:"required" example:"urgent"`
}

// NoteRequest appends an internal note.
type NoteRequest struct {
	Note string `json:"note" binding:"required" example:"Appel du citoyen le 12/03"`
}

// LetterResponse carries a rendered official letter.
type LetterResponse struct {
	Letter string `json:"letter"`
}

//
// Helpers
//

// complaintETag computes a weak ETag for a listing scoped to sess and writes
// it. It returns true when the client copy is current and a 304 was sent.
// Derived flags (overdue) depend on the clock, so the tag also rolls hourly.
func (h *Handlers) complaintETag(c *gin.Context, sess *auth.Session, f services.ListFilter) bool {
	rf, err := h.svc.Complaints.ScopeFilter(sess, f)
	if err != nil {
		return false
	}
	count, maxTS, err := repo.ComplaintsStats(c.Request.Context(), h.svc.Complaints.DB, rf)
	if err != nil {
		return false
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.Unix()
	}
	q := fnv.New32a()
	_, _ = q.Write([]byte(c.FullPath() + "?" + c.Request.URL.RawQuery))
	etag := fmt.Sprintf(`W/"complaints:%s:%08x:%d:%d:%d"`, sess.UserID, q.Sum32(), count, ts, time.Now().Unix()/3600)
	return writeETag(c, etag)
}

// writeETag sets the ETag header and answers 304 when If-None-Match matches.
func writeETag(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

type listFunc func(c *gin.Context, sess *auth.Session, f services.ListFilter) ([]domain.Complaint, int64, error)

// listComplaints is the shared body of the three complaint listings.
func (h *Handlers) listComplaints(c *gin.Context, list listFunc) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	f, okF := listFilter(c)
	if !okF {
		return
	}
	if h.complaintETag(c, sess, f) {
		return
	}
	items, total, err := list(c, sess, f)
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Complaint{}
	}
	ok(c, http.StatusOK, ListComplaintsResponse{Complaints: items, Pagination: newPagination(f.Page, f.PageSize, total)})
}

//
// Citizen
//

// SubmitComplaint godoc
// @ID          submitComplaint
// @Summary     Submit a complaint
// @Description Validates, routes and stores a citizen complaint. Supports idempotency via the Idempotency-Key header (same key → same complaint).
// @Tags        Complaints
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header    string                 false  "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body      services.SubmitInput  true   "Complaint"
// @Success     201              {object}  domain.Complaint
// @Success     200              {object}  domain.Complaint        "Replayed result"
// @Failure     400              {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403              {object}  handlers.ErrorResponse  "Not a citizen"
// @Failure     429              {object}  handlers.ErrorResponse  "Daily limit reached"
// @Router      /complaints [post]
func (h *Handlers) SubmitComplaint(c *gin.Context) {
	ctx := c.Request.Context()
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var in services.SubmitInput
	if !bindJSON(c, &in) {
		return
	}

	// Idempotency (replay path).
	idemKey, _ := middleware.GetIdempotencyKey(c)
	scope := middleware.IdempotencyScope(c)
	db := h.svc.Complaints.DB
	if idemKey != "" {
		if rec, err := repo.GetIdempotency(ctx, db, sess.UserID, scope, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := h.svc.Complaints.Get(ctx, sess, rec.ResourceID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, prev)
				return
			}
		}
	}

	cm, err := h.svc.Complaints.Submit(ctx, sess, in)
	if err != nil {
		failErr(c, err)
		return
	}

	// Idempotency (store path), best effort.
	if idemKey != "" {
		if _, err := repo.CreateIdempotency(ctx, db, sess.UserID, scope, idemKey, cm.ID, http.StatusCreated, h.svc.IdempotencyTTL); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
		}
	}
	ok(c, http.StatusCreated, cm)
}

// ListMyComplaints godoc
// @ID          listMyComplaints
// @Summary     My complaints
// @Description Returns the citizen's complaints, newest first. Supports weak ETag via If-None-Match.
// @Tags        Complaints
// @Produce     json
// @Security    BearerAuth
// @Param       status     query     string  false  "Comma-separated statuses"
// @Param       category   query     string  false  "Category"
// @Param       page       query     int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query     int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200        {object}  handlers.ListComplaintsResponse
// @Success     304        {string}  string  "Not Modified"
// @Router      /complaints/mine [get]
func (h *Handlers) ListMyComplaints(c *gin.Context) {
	h.listComplaints(c, func(c *gin.Context, sess *auth.Session, f services.ListFilter) ([]domain.Complaint, int64, error) {
		return h.svc.Complaints.ListForCitizen(c.Request.Context(), sess, f)
	})
}

//
// Officials
//

// ListAssignedComplaints godoc
// @ID          listAssignedComplaints
// @Summary     Official inbox
// @Description Complaints assigned to (or forwarded to) the session official. Supports weak ETag via If-None-Match.
// @Tags        Complaints
// @Produce     json
// @Security    BearerAuth
// @Param       status     query     string  false  "Comma-separated statuses"
// @Param       category   query     string  false  "Category"
// @Param       wilaya_id  query     string  false  "Wilaya ID"
// @Param       daira_id   query     string  false  "Daira ID"
// @Param       priority   query     string  false  "Priority"
// @Param       urgent     query     bool    false  "Only urgent complaints"
// @Param       overdue    query     bool    false  "Only overdue complaints"
// @Param       q          query     string  false  "Text search in content"
// @Param       from       query     string  false  "Created at or after (RFC 3339 or YYYY-MM-DD)"
// @Param       to         query     string  false  "Created before (RFC 3339 or YYYY-MM-DD)"
// @Param       page       query     int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query     int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200        {object}  handlers.ListComplaintsResponse
// @Success     304        {string}  string  "Not Modified"
// @Router      /complaints/assigned [get]
func (h *Handlers) ListAssignedComplaints(c *gin.Context) {
	h.listComplaints(c, func(c *gin.Context, sess *auth.Session, f services.ListFilter) ([]domain.Complaint, int64, error) {
		return h.svc.Complaints.ListForOfficial(c.Request.Context(), sess, f)
	})
}

// GetComplaint godoc
// @ID          getComplaint
// @Summary     Complaint detail
// @Tags        Complaints
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Complaint ID"  format(uuid)
// @Success     200  {object}  domain.Complaint
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /complaints/{id} [get]
func (h *Handlers) GetComplaint(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	cm, err := h.svc.Complaints.Get(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cm)
}

// ViewComplaint godoc
// @ID          viewComplaint
// @Summary     Mark a complaint as viewed
// @Tags        Complaints
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Complaint ID"  format(uuid)
// @Success     200  {object}  domain.Complaint
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Router      /complaints/{id}/view [post]
func (h *Handlers) ViewComplaint(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	cm, err := h.svc.Complaints.MarkViewed(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cm)
}

// ReplyComplaint godoc
// @ID          replyComplaint
// @Summary     Reply to a complaint
// @Description Sets the reply (free text or a template) and moves the complaint to replied.
// @Tags        Complaints
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string               true  "Complaint ID"  format(uuid)
// @Param       body  body      services.ReplyInput  true  "Reply"
// @Success     200   {object}  domain.Complaint
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409   {object}  handlers.ErrorResponse  "Transition not allowed"
// @Router      /complaints/{id}/reply [post]
func (h *Handlers) ReplyComplaint(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var in services.ReplyInput
	if !bindJSON(c, &in) {
		return
	}
	cm, err := h.svc.Complaints.Reply(c.Request.Context(), sess, c.Param("id"), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cm)
}

// ChangeComplaintStatus godoc
// @ID          changeComplaintStatus
// @Summary     Change a complaint's status
// @Tags        Complaints
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                  true  "Complaint ID"  format(uuid)
// @Param       body  body      handlers.StatusRequest  true  "Target status"
// @Success     200   {object}  domain.Complaint
// @Failure     409   {object}  handlers.ErrorResponse  "Transition not allowed"
// @Router      /complaints/{id}/status [post]
func (h *Handlers) ChangeComplaintStatus(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var req StatusRequest
	if !bindJSON(c, &req) {
		return
	}
	cm, err := h.svc.Complaints.ChangeStatus(c.Request.Context(), sess, c.Param("id"), req.Status, req.Notes)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cm)
}

// SetComplaintPriority godoc
// @ID          setComplaintPriority
// @Summary     Set a complaint's priority
// @Tags        Complaints
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                    true  "Complaint ID"  format(uuid)
// @Param       body  body      handlers.PriorityRequest  true  "Priority"
// @Success     200   {object}  domain.Complaint
// @Router      /complaints/{id}/priority [post]
func (h *Handlers) SetComplaintPriority(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var req PriorityRequest
	if !bindJSON(c, &req) {
		return
	}
	cm, err := h.svc.Complaints.SetPriority(c.Request.Context(), sess, c.Param("id"), req.Priority)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cm)
}

// AddComplaintNote godoc
// @ID          addComplaintNote
// @Summary     Add an internal note
// @Tags        Complaints
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                true  "Complaint ID"  format(uuid)
// @Param       body  body      handlers.NoteRequest  true  "Note"
// @Success     200   {object}  domain.Complaint
// @Router      /complaints/{id}/notes [post]
func (h *Handlers) AddComplaintNote(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var req NoteRequest
	if !bindJSON(c, &req) {
		return
	}
	cm, err := h.svc.Complaints.AddNote(c.Request.Context(), sess, c.Param("id"), req.Note)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cm)
}

// ForwardComplaint godoc
// @ID          forwardComplaint
// @Summary     Forward a complaint to a local deputy
// @Description Method "system" reassigns the complaint; method "whatsapp" keeps it and returns a wa.me link.
// @Tags        Complaints
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                 true  "Complaint ID"  format(uuid)
// @Param       body  body      services.ForwardInput  true  "Forwarding"
// @Success     200   {object}  services.ForwardResult
// @Failure     404   {object}  handlers.ErrorResponse  "Complaint or deputy not found"
// @Failure     422   {object}  handlers.ErrorResponse  "Deputy has no WhatsApp number"
// @Router      /complaints/{id}/forward [post]
func (h *Handlers) ForwardComplaint(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var in services.ForwardInput
	if !bindJSON(c, &in) {
		return
	}
	res, err := h.svc.Complaints.Forward(c.Request.Context(), sess, c.Param("id"), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ForwardComplaintToMinistry godoc
// @ID          forwardComplaintToMinistry
// @Summary     Forward a complaint to its ministry
// @Description Generates and stores the official letter and marks the complaint forwarded.
// @Tags        Complaints
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Complaint ID"  format(uuid)
// @Success     200  {object}  domain.Complaint
// @Failure     400  {object}  handlers.ErrorResponse  "Municipal complaint"
// @Router      /complaints/{id}/forward-ministry [post]
func (h *Handlers) ForwardComplaintToMinistry(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	cm, err := h.svc.Complaints.ForwardToMinistry(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cm)
}

// ComplaintLetter godoc
// @ID          complaintLetter
// @Summary     Preview the official letter
// @Description Renders the ministry letter without storing it. format=text returns text/plain.
// @Tags        Complaints
// @Produce     json,plain
// @Security    BearerAuth
// @Param       id      path      string  true   "Complaint ID"  format(uuid)
// @Param       format  query     string  false  "json (default) or text"
// @Success     200     {object}  handlers.LetterResponse
// @Router      /complaints/{id}/letter [get]
func (h *Handlers) ComplaintLetter(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	letter, err := h.svc.Complaints.GenerateLetter(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	if strings.EqualFold(c.Query("format"), "text") {
		c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="lettre-%s.txt"`, time.Now().UTC().Format("2006-01-02")))
		c.String(http.StatusOK, letter)
		return
	}
	ok(c, http.StatusOK, LetterResponse{Letter: letter})
}

// ComplaintAudit godoc
// @ID          complaintAudit
// @Summary     Complaint audit trail
// @Description Oldest first. Supports weak ETag via If-None-Match.
// @Tags        Complaints
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Complaint ID"  format(uuid)
// @Success     200  {array}   domain.AuditLogEntry
// @Success     304  {string}  string  "Not Modified"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Router      /complaints/{id}/audit [get]
func (h *Handlers) ComplaintAudit(c *gin.Context) {
	ctx := c.Request.Context()
	sess, okSess := session(c)
	if !okSess {
		return
	}
	id := c.Param("id")
	entries, err := h.svc.Complaints.AuditTrail(ctx, sess, id)
	if err != nil {
		failErr(c, err)
		return
	}
	// Rows are append-only: count and newest timestamp identify the trail.
	var ts int64
	if n := len(entries); n > 0 {
		ts = entries[n-1].CreatedAt.Unix()
	}
	if writeETag(c, fmt.Sprintf(`W/"audit:%s:%d:%d"`, id, len(entries), ts)) {
		return
	}
	if entries == nil {
		entries = []domain.AuditLogEntry{}
	}
	ok(c, http.StatusOK, entries)
}

//
// Admin
//

// AdminListComplaints godoc
// @ID          adminListComplaints
// @Summary     List every complaint
// @Description Same filters as the official inbox, across all officials. Supports weak ETag via If-None-Match.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       status     query     string  false  "Comma-separated statuses"
// @Param       category   query     string  false  "Category"
// @Param       wilaya_id  query     string  false  "Wilaya ID"
// @Param       q          query     string  false  "Text search in content"
// @Param       page       query     int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query     int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200        {object}  handlers.ListComplaintsResponse
// @Router      /admin/complaints [get]
func (h *Handlers) AdminListComplaints(c *gin.Context) {
	h.listComplaints(c, func(c *gin.Context, sess *auth.Session, f services.ListFilter) ([]domain.Complaint, int64, error) {
		return h.svc.Complaints.ListAll(c.Request.Context(), sess, f)
	})
}

// AdminUpdateComplaint godoc
// @ID          adminUpdateComplaint
// @Summary     Edit a complaint
// @Description Changing category or location re-runs routing; status changes follow the status table.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string               true  "Complaint ID"  format(uuid)
// @Param       body  body      services.AdminPatch  true  "Fields to change"
// @Success     200   {object}  domain.Complaint
// @Router      /admin/complaints/{id} [patch]
func (h *Handlers) AdminUpdateComplaint(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	var p services.AdminPatch
	if !bindJSON(c, &p) {
		return
	}
	cm, err := h.svc.Complaints.AdminUpdate(c.Request.Context(), sess, c.Param("id"), p)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cm)
}

// AdminDeleteComplaint godoc
// @ID          adminDeleteComplaint
// @Summary     Delete a complaint
// @Description Removes the complaint with its audit trail and coordination notes.
// @Tags        Admin
// @Security    BearerAuth
// @Param       id   path  string  true  "Complaint ID"  format(uuid)
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /admin/complaints/{id} [delete]
func (h *Handlers) AdminDeleteComplaint(c *gin.Context) {
	sess, okSess := session(c)
	if !okSess {
		return
	}
	if err := h.svc.Complaints.AdminDelete(c.Request.Context(), sess, c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
