// Package services – ComplaintService
//
// ComplaintService owns the complaint lifecycle: citizen submission with
// routing, reads scoped by role, and the official and admin actions that move
// a complaint through the status table in domain/status.go.
//
// Every status change appends exactly one audit row, in the same transaction
// as the complaint update, whose new_value.status is the post-transition
// state. Change notifications are published after commit. Concurrent edits
// are last-write-wins.
//
// Observability: public methods are OpenTelemetry-instrumented; domain
// counters are exported through the observability package.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/cache"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/events"
	"github.com/choukwa/choukwa-backend/internal/observability"
	"github.com/choukwa/choukwa-backend/internal/repo"
	"github.com/choukwa/choukwa-backend/internal/utils"
)

const (
	defaultMaxContentRunes = 5000
	maxReplyRunes          = 5000
	maxNoteRunes           = 2000
)

// errUnchanged aborts a mutation that would not change anything.
var errUnchanged = errors.New("unchanged")

// ComplaintService coordinates complaint persistence, routing and lifecycle.
type ComplaintService struct {
	DB       *gorm.DB
	Assigner Assigner
	Geo      *GeoService // nil skips location validation

	// Limiter counts submissions per citizen per day. Nil or a DailyLimit
	// <= 0 disables the limit.
	Limiter    cache.Counter
	DailyLimit int

	OverdueAfter    time.Duration
	MaxContentRunes int

	Events events.Publisher
	Now    func() time.Time
}

func (s *ComplaintService) tracer() trace.Tracer {
	return observability.Tracer("services/ComplaintService")
}

func (s *ComplaintService) now() time.Time { return clock(s.Now) }

func (s *ComplaintService) overdueAfter() time.Duration {
	if s.OverdueAfter > 0 {
		return s.OverdueAfter
	}
	return domain.DefaultOverdueAfter
}

// SubmitInput is a citizen's complaint submission.
type SubmitInput struct {
	Content  string          `json:"content"`
	Images   []string        `json:"images"`
	Category domain.Category `json:"category"`
	WilayaID string          `json:"wilaya_id"`
	DairaID  string          `json:"daira_id"`
}

// Submit validates and stores a new complaint for the citizen behind sess,
// routes it with the Assigner and records the "created" audit row.
//
// Errors: ErrForbidden for non-citizens, ErrInvalidCategory, ErrValidation
// for bad content, images or location, ErrDailyLimit when the allowance is
// exhausted. Nothing is persisted on error.
func (s *ComplaintService) Submit(ctx context.Context, sess *auth.Session, in SubmitInput) (*domain.Complaint, error) {
	ctx, span := s.tracer().Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("complaint.category", string(in.Category)),
			attribute.String("wilaya.id", in.WilayaID),
		),
	)
	defer span.End()

	if sess == nil || sess.Role != domain.RoleCitizen {
		return nil, ErrForbidden
	}
	content := cleanText(in.Content)
	if content == "" {
		return nil, invalid("content is required")
	}
	maxRunes := s.MaxContentRunes
	if maxRunes <= 0 {
		maxRunes = defaultMaxContentRunes
	}
	if utf8.RuneCountInString(content) > maxRunes {
		return nil, invalid("content exceeds %d characters", maxRunes)
	}
	images, err := validateImages(in.Images)
	if err != nil {
		return nil, err
	}
	if !in.Category.Valid() {
		return nil, ErrInvalidCategory
	}
	wilayaID := strings.TrimSpace(in.WilayaID)
	dairaID := strings.TrimSpace(in.DairaID)
	if s.Geo != nil {
		if _, _, err := s.Geo.ValidateLocation(ctx, wilayaID, dairaID, in.Category.IsMunicipal()); err != nil {
			return nil, err
		}
	}
	assignment, err := s.Assigner.Assign(ctx, in.Category, wilayaID, dairaID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDailyLimit(ctx, sess.UserID); err != nil {
		return nil, err
	}

	now := s.now()
	c := &domain.Complaint{
		UserID:    sess.UserID,
		UserPhone: sess.Phone,
		Content:   content,
		Images:    datatypes.JSONSlice[string](images),
		Category:  in.Category,
		WilayaID:  wilayaID,
		Status:    domain.StatusPending,
		Priority:  domain.PriorityNormal,
		CreatedAt: now,
	}
	if dairaID != "" {
		c.DairaID = &dairaID
	}
	assignment.Apply(c)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateComplaint(ctx, tx, c); err != nil {
			return err
		}
		if err := repo.AppendAudit(ctx, tx, &domain.AuditLogEntry{
			ComplaintID:  c.ID,
			Action:       domain.ActionCreated,
			ActionBy:     actorName(sess),
			ActionByRole: sess.Role,
			NewValue: datatypes.JSONMap{
				"status":      string(c.Status),
				"assigned_to": string(c.AssignedTo),
				"official_id": assignment.OfficialID,
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if c.MPID != nil {
			return repo.RefreshMPCounters(ctx, tx, *c.MPID)
		}
		return nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	observability.ComplaintsSubmitted.WithLabelValues(string(c.Category), string(c.AssignedTo)).Inc()
	if !assignment.Resolved() {
		observability.UnassignedComplaints.Inc()
		log.Warn().
			Str("complaint_id", c.ID).
			Str("category", string(c.Category)).
			Str("wilaya_id", c.WilayaID).
			Str("daira_id", dairaID).
			Msg("complaint created without a responsible official")
	}
	span.SetAttributes(attribute.String("complaint.id", c.ID))
	publish(ctx, s.Events, complaintEvent(events.ComplaintCreated, c))
	c.Decorate(now, s.overdueAfter())
	return c, nil
}

// checkDailyLimit counts one submission for userID and rejects it when the
// day's allowance is exceeded. Counter failures are logged and let the
// submission through.
func (s *ComplaintService) checkDailyLimit(ctx context.Context, userID string) error {
	if s.Limiter == nil || s.DailyLimit <= 0 {
		return nil
	}
	key := "complaints:daily:" + userID + ":" + s.now().Format("20060102")
	n, _, err := s.Limiter.Incr(ctx, key, 24*time.Hour)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("daily limit counter unavailable")
		return nil
	}
	if n > int64(s.DailyLimit) {
		return ErrDailyLimit
	}
	return nil
}

// validateImages checks the image URL list: at most three absolute http(s)
// URLs.
func validateImages(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, invalid("invalid image url %q", raw)
		}
		out = append(out, raw)
	}
	if len(out) > domain.MaxComplaintImages {
		return nil, invalid("at most %d images are allowed", domain.MaxComplaintImages)
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// Reads

// canRead reports whether sess may see c.
func canRead(sess *auth.Session, c *domain.Complaint) bool {
	if sess == nil {
		return false
	}
	switch {
	case sess.IsAdmin():
		return true
	case sess.Role == domain.RoleCitizen:
		return c.UserID == sess.UserID
	}
	return c.HandledBy(sess.Role, sess.OfficialID)
}

// canAct reports whether sess may change c.
func canAct(sess *auth.Session, c *domain.Complaint) bool {
	if sess == nil {
		return false
	}
	return sess.IsAdmin() || c.HandledBy(sess.Role, sess.OfficialID)
}

func (s *ComplaintService) load(ctx context.Context, db *gorm.DB, id string) (*domain.Complaint, error) {
	c, err := repo.GetComplaint(ctx, db, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrComplaintNotFound
		}
		return nil, err
	}
	return c, nil
}

// Get returns a complaint the session may read.
func (s *ComplaintService) Get(ctx context.Context, sess *auth.Session, id string) (*domain.Complaint, error) {
	ctx, span := s.tracer().Start(ctx, "Get", trace.WithAttributes(attribute.String("complaint.id", id)))
	defer span.End()

	c, err := s.load(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if !canRead(sess, c) {
		return nil, ErrForbidden
	}
	c.Decorate(s.now(), s.overdueAfter())
	return c, nil
}

// ListFilter narrows complaint listings.
type ListFilter struct {
	Statuses []domain.Status
	Category domain.Category
	WilayaID string
	DairaID  string
	Priority domain.Priority
	Urgent   bool
	Overdue  bool
	Query    string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// repoFilter validates f and converts it to a repository filter.
func (s *ComplaintService) repoFilter(f ListFilter) (repo.ComplaintFilter, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return repo.ComplaintFilter{}, ErrInvalidStatus
		}
	}
	if f.Category != "" && !f.Category.Valid() {
		return repo.ComplaintFilter{}, ErrInvalidCategory
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return repo.ComplaintFilter{}, ErrInvalidPriority
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return repo.ComplaintFilter{}, invalid("from must be before to")
	}
	rf := repo.ComplaintFilter{
		Statuses: f.Statuses,
		Category: f.Category,
		WilayaID: f.WilayaID,
		DairaID:  f.DairaID,
		Priority: f.Priority,
		From:     f.From,
		To:       f.To,
		Query:    f.Query,
	}
	if f.Urgent {
		rf.Priority = domain.PriorityUrgent
	}
	if f.Overdue {
		cutoff := s.now().Add(-s.overdueAfter())
		rf.OpenBefore = &cutoff
	}
	return rf, nil
}

func (s *ComplaintService) list(ctx context.Context, rf repo.ComplaintFilter, page, pageSize int) ([]domain.Complaint, int64, error) {
	offset, limit := utils.Offset(page, pageSize)
	total, err := repo.CountComplaints(ctx, s.DB, rf)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Complaint{}, 0, nil
	}
	items, err := repo.ListComplaints(ctx, s.DB, rf, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	now, after := s.now(), s.overdueAfter()
	for i := range items {
		items[i].Decorate(now, after)
	}
	return items, total, nil
}

// ScopeFilter returns the repository filter a session's listing uses. It is
// exported for conditional-response fingerprints in the HTTP layer.
func (s *ComplaintService) ScopeFilter(sess *auth.Session, f ListFilter) (repo.ComplaintFilter, error) {
	rf, err := s.repoFilter(f)
	if err != nil {
		return rf, err
	}
	switch {
	case sess == nil:
		return rf, ErrForbidden
	case sess.IsAdmin():
	case sess.Role == domain.RoleCitizen:
		rf.UserID = sess.UserID
	case sess.Role == domain.RoleMP && sess.OfficialID != "":
		rf.MPID = sess.OfficialID
	case sess.Role == domain.RoleLocalDeputy && sess.OfficialID != "":
		rf.LocalDeputyID = sess.OfficialID
	default:
		return rf, ErrForbidden
	}
	return rf, nil
}

// ListForCitizen returns the session citizen's own complaints, newest first.
func (s *ComplaintService) ListForCitizen(ctx context.Context, sess *auth.Session, f ListFilter) ([]domain.Complaint, int64, error) {
	ctx, span := s.tracer().Start(ctx, "ListForCitizen", trace.WithAttributes(attribute.Int("page", f.Page)))
	defer span.End()
	if sess == nil || sess.Role != domain.RoleCitizen {
		return nil, 0, ErrForbidden
	}
	rf, err := s.ScopeFilter(sess, f)
	if err != nil {
		return nil, 0, err
	}
	return s.list(ctx, rf, f.Page, f.PageSize)
}

// ListForOfficial returns complaints assigned to the session official. A
// local deputy also sees complaints an MP forwarded to them.
func (s *ComplaintService) ListForOfficial(ctx context.Context, sess *auth.Session, f ListFilter) ([]domain.Complaint, int64, error) {
	ctx, span := s.tracer().Start(ctx, "ListForOfficial", trace.WithAttributes(attribute.Int("page", f.Page)))
	defer span.End()
	if !sess.IsOfficial() {
		return nil, 0, ErrForbidden
	}
	rf, err := s.ScopeFilter(sess, f)
	if err != nil {
		return nil, 0, err
	}
	return s.list(ctx, rf, f.Page, f.PageSize)
}

// ListAll returns every complaint matching f. Admin only.
func (s *ComplaintService) ListAll(ctx context.Context, sess *auth.Session, f ListFilter) ([]domain.Complaint, int64, error) {
	ctx, span := s.tracer().Start(ctx, "ListAll", trace.WithAttributes(attribute.Int("page", f.Page)))
	defer span.End()
	if !sess.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	rf, err := s.repoFilter(f)
	if err != nil {
		return nil, 0, err
	}
	return s.list(ctx, rf, f.Page, f.PageSize)
}

// AuditTrail returns the audit rows of a complaint, oldest first. Only the
// handling officials and admins may read it.
func (s *ComplaintService) AuditTrail(ctx context.Context, sess *auth.Session, id string) ([]domain.AuditLogEntry, error) {
	ctx, span := s.tracer().Start(ctx, "AuditTrail", trace.WithAttributes(attribute.String("complaint.id", id)))
	defer span.End()

	c, err := s.load(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if !canAct(sess, c) {
		return nil, ErrForbidden
	}
	return repo.ListAudit(ctx, s.DB, id)
}

// ----------------------------------------------------------------------------
// Mutations

// mutate loads the complaint inside a transaction, checks that sess may act
// on it and runs fn. After commit it records the transition metric and
// publishes complaint.updated. fn returns errUnchanged to skip both.
func (s *ComplaintService) mutate(ctx context.Context, sess *auth.Session, id string, fn func(tx *gorm.DB, c *domain.Complaint) error) (*domain.Complaint, error) {
	if sess == nil {
		return nil, ErrForbidden
	}
	var (
		out  *domain.Complaint
		from domain.Status
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !canAct(sess, c) {
			return ErrForbidden
		}
		from = c.Status
		out = c
		return fn(tx, c)
	})
	switch {
	case errors.Is(err, errUnchanged):
		out.Decorate(s.now(), s.overdueAfter())
		return out, nil
	case err != nil:
		return nil, err
	}
	if out.Status != from {
		observability.ComplaintTransitions.WithLabelValues(string(from), string(out.Status)).Inc()
	}
	publish(ctx, s.Events, complaintEvent(events.ComplaintUpdated, out))
	out.Decorate(s.now(), s.overdueAfter())
	return out, nil
}

// transition moves c to status to, saves it and appends the single audit row
// for the change. extra is merged into new_value.
func (s *ComplaintService) transition(ctx context.Context, tx *gorm.DB, sess *auth.Session, c *domain.Complaint, to domain.Status, action domain.AuditAction, notes string, extra map[string]any) error {
	if !domain.CanTransition(c.Status, to, sess.Role) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
	}
	return s.setStatus(ctx, tx, sess, c, to, action, notes, extra)
}

// setStatus saves c with status to and appends its audit row, without
// consulting the status table.
func (s *ComplaintService) setStatus(ctx context.Context, tx *gorm.DB, sess *auth.Session, c *domain.Complaint, to domain.Status, action domain.AuditAction, notes string, extra map[string]any) error {
	from := c.Status
	c.Status = to
	if err := repo.SaveComplaint(ctx, tx, c); err != nil {
		return err
	}
	nv := datatypes.JSONMap{"status": string(to)}
	for k, v := range extra {
		nv[k] = v
	}
	if err := repo.AppendAudit(ctx, tx, &domain.AuditLogEntry{
		ComplaintID:  c.ID,
		Action:       action,
		ActionBy:     actorName(sess),
		ActionByRole: sess.Role,
		OldValue:     datatypes.JSONMap{"status": string(from)},
		NewValue:     nv,
		Notes:        notes,
		CreatedAt:    s.now(),
	}); err != nil {
		return err
	}
	if c.MPID != nil {
		return repo.RefreshMPCounters(ctx, tx, *c.MPID)
	}
	return nil
}

// MarkViewed records that the official opened the complaint. A pending or
// forwarded complaint moves to viewed; otherwise only the first-view
// timestamp is stamped and no audit row is written.
func (s *ComplaintService) MarkViewed(ctx context.Context, sess *auth.Session, id string) (*domain.Complaint, error) {
	ctx, span := s.tracer().Start(ctx, "MarkViewed", trace.WithAttributes(attribute.String("complaint.id", id)))
	defer span.End()

	return s.mutate(ctx, sess, id, func(tx *gorm.DB, c *domain.Complaint) error {
		now := s.now()
		movable := (c.Status == domain.StatusPending || c.Status == domain.StatusForwarded) &&
			domain.CanTransition(c.Status, domain.StatusViewed, sess.Role)
		if !movable {
			if c.ViewedAt != nil {
				return errUnchanged
			}
			c.ViewedAt = &now
			return repo.SaveComplaint(ctx, tx, c)
		}
		if c.ViewedAt == nil {
			c.ViewedAt = &now
		}
		return s.transition(ctx, tx, sess, c, domain.StatusViewed, domain.ActionViewed, "", nil)
	})
}

// ReplyInput is an official answer. Reply may be empty when TemplateID names
// a template whose content becomes the reply.
type ReplyInput struct {
	Reply      string `json:"reply"`
	TemplateID string `json:"template_id"`
}

// Reply answers a complaint and moves it to replied.
func (s *ComplaintService) Reply(ctx context.Context, sess *auth.Session, id string, in ReplyInput) (*domain.Complaint, error) {
	ctx, span := s.tracer().Start(ctx, "Reply", trace.WithAttributes(attribute.String("complaint.id", id)))
	defer span.End()

	text := cleanText(in.Reply)
	if text == "" && in.TemplateID != "" {
		t, err := repo.GetTemplate(ctx, s.DB, in.TemplateID)
		if err != nil {
			if isNotFound(err) {
				return nil, ErrTemplateNotFound
			}
			return nil, err
		}
		text = t.Content
	}
	if text == "" {
		return nil, invalid("reply is required")
	}
	if utf8.RuneCountInString(text) > maxReplyRunes {
		return nil, invalid("reply exceeds %d characters", maxReplyRunes)
	}

	return s.mutate(ctx, sess, id, func(tx *gorm.DB, c *domain.Complaint) error {
		now := s.now()
		c.Reply = text
		c.RepliedAt = &now
		extra := map[string]any{"reply": text}
		if in.TemplateID != "" {
			extra["template_id"] = in.TemplateID
		}
		return s.transition(ctx, tx, sess, c, domain.StatusReplied, domain.ActionReplied, "", extra)
	})
}

// ChangeStatus moves a complaint along the status table. Replies and
// forwards carry data and go through Reply and the forward operations.
func (s *ComplaintService) ChangeStatus(ctx context.Context, sess *auth.Session, id string, to domain.Status, notes string) (*domain.Complaint, error) {
	ctx, span := s.tracer().Start(ctx, "ChangeStatus",
		trace.WithAttributes(attribute.String("complaint.id", id), attribute.String("status.to", string(to))))
	defer span.End()

	if !to.Valid() {
		return nil, ErrInvalidStatus
	}
	switch to {
	case domain.StatusReplied:
		return nil, invalid("use the reply action to answer a complaint")
	case domain.StatusForwarded:
		return nil, invalid("use a forward action to forward a complaint")
	}
	notes = cleanText(notes)

	return s.mutate(ctx, sess, id, func(tx *gorm.DB, c *domain.Complaint) error {
		if c.Status == to {
			return errUnchanged
		}
		return s.transition(ctx, tx, sess, c, to, domain.ActionStatusChanged, notes, nil)
	})
}

// SetPriority changes the triage level and audits priority_changed.
func (s *ComplaintService) SetPriority(ctx context.Context, sess *auth.Session, id string, p domain.Priority) (*domain.Complaint, error) {
	ctx, span := s.tracer().Start(ctx, "SetPriority",
		trace.WithAttributes(attribute.String("complaint.id", id), attribute.String("priority", string(p))))
	defer span.End()

	if !p.Valid() {
		return nil, ErrInvalidPriority
	}
	return s.mutate(ctx, sess, id, func(tx *gorm.DB, c *domain.Complaint) error {
		if c.Priority == p {
			return errUnchanged
		}
		old := c.Priority
		c.Priority = p
		if err := repo.SaveComplaint(ctx, tx, c); err != nil {
			return err
		}
		return repo.AppendAudit(ctx, tx, &domain.AuditLogEntry{
			ComplaintID:  c.ID,
			Action:       domain.ActionPriorityChanged,
			ActionBy:     actorName(sess),
			ActionByRole: sess.Role,
			OldValue:     datatypes.JSONMap{"priority": string(old)},
			NewValue:     datatypes.JSONMap{"priority": string(p)},
			CreatedAt:    s.now(),
		})
	})
}

// AddNote appends a timestamped internal note and audits note_added.
func (s *ComplaintService) AddNote(ctx context.Context, sess *auth.Session, id, note string) (*domain.Complaint, error) {
	ctx, span := s.tracer().Start(ctx, "AddNote", trace.WithAttributes(attribute.String("complaint.id", id)))
	defer span.End()

	note = cleanText(note)
	if note == "" {
		return nil, invalid("note is required")
	}
	if utf8.RuneCountInString(note) > maxNoteRunes {
		return nil, invalid("note exceeds %d characters", maxNoteRunes)
	}
	return s.mutate(ctx, sess, id, func(tx *gorm.DB, c *domain.Complaint) error {
		now := s.now()
		line := fmt.Sprintf("[%s] %s: %s", now.Format("2006-01-02 15:04"), actorName(sess), note)
		if c.InternalNotes != "" {
			c.InternalNotes += "\n"
		}
		c.InternalNotes += line
		if err := repo.SaveComplaint(ctx, tx, c); err != nil {
			return err
		}
		return repo.AppendAudit(ctx, tx, &domain.AuditLogEntry{
			ComplaintID:  c.ID,
			Action:       domain.ActionNoteAdded,
			ActionBy:     actorName(sess),
			ActionByRole: sess.Role,
			Notes:        note,
			CreatedAt:    now,
		})
	})
}

// AdminPatch carries the fields an admin may edit. Nil fields are left
// untouched. Changing the category or location re-runs routing.
type AdminPatch struct {
	Content  *string          `json:"content"`
	Category *domain.Category `json:"category"`
	WilayaID *string          `json:"wilaya_id"`
	DairaID  *string          `json:"daira_id"`
	Status   *domain.Status   `json:"status"`
	Priority *domain.Priority `json:"priority"`
	Reply    *string          `json:"reply"`
	Notes    string           `json:"notes"`
}

// AdminUpdate edits a complaint on behalf of an admin. A status change
// follows the status table, except that any non-terminal complaint may be
// closed as resolved; either way it is audited like any other.
func (s *ComplaintService) AdminUpdate(ctx context.Context, sess *auth.Session, id string, p AdminPatch) (*domain.Complaint, error) {
	ctx, span := s.tracer().Start(ctx, "AdminUpdate", trace.WithAttributes(attribute.String("complaint.id", id)))
	defer span.End()

	if !sess.IsAdmin() {
		return nil, ErrForbidden
	}
	if p.Category != nil && !p.Category.Valid() {
		return nil, ErrInvalidCategory
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if p.Status != nil && *p.Status == domain.StatusForwarded {
		return nil, invalid("use a forward action to forward a complaint")
	}
	var content, reply string
	if p.Content != nil {
		if content = cleanText(*p.Content); content == "" {
			return nil, invalid("content must not be empty")
		}
	}
	if p.Reply != nil {
		reply = cleanText(*p.Reply)
	}
	notes := cleanText(p.Notes)

	var staleMP string
	out, err := s.mutate(ctx, sess, id, func(tx *gorm.DB, c *domain.Complaint) error {
		if p.Content != nil {
			c.Content = content
		}
		if p.Reply != nil {
			c.Reply = reply
		}

		category, wilayaID, dairaID := c.Category, c.WilayaID, ""
		if c.DairaID != nil {
			dairaID = *c.DairaID
		}
		rerouted := false
		if p.Category != nil && *p.Category != category {
			category, rerouted = *p.Category, true
		}
		if p.WilayaID != nil && *p.WilayaID != wilayaID {
			wilayaID, rerouted = strings.TrimSpace(*p.WilayaID), true
		}
		if p.DairaID != nil && *p.DairaID != dairaID {
			dairaID, rerouted = strings.TrimSpace(*p.DairaID), true
		}
		if rerouted {
			if s.Geo != nil {
				if _, _, err := s.Geo.ValidateLocation(ctx, wilayaID, dairaID, category.IsMunicipal()); err != nil {
					return err
				}
			}
			a, err := s.Assigner.Assign(ctx, category, wilayaID, dairaID)
			if err != nil {
				return err
			}
			if c.MPID != nil && (a.Target != domain.AssignedToMP || a.OfficialID != *c.MPID) {
				staleMP = *c.MPID
			}
			c.Category, c.WilayaID = category, wilayaID
			c.DairaID = nil
			if dairaID != "" {
				c.DairaID = &dairaID
			}
			a.Apply(c)
		}

		if p.Priority != nil && *p.Priority != c.Priority {
			old := c.Priority
			c.Priority = *p.Priority
			if err := repo.AppendAudit(ctx, tx, &domain.AuditLogEntry{
				ComplaintID:  c.ID,
				Action:       domain.ActionPriorityChanged,
				ActionBy:     actorName(sess),
				ActionByRole: sess.Role,
				OldValue:     datatypes.JSONMap{"priority": string(old)},
				NewValue:     datatypes.JSONMap{"priority": string(c.Priority)},
				CreatedAt:    s.now(),
			}); err != nil {
				return err
			}
		}

		if p.Status != nil && *p.Status != c.Status {
			to := *p.Status
			if to == domain.StatusReplied {
				if strings.TrimSpace(c.Reply) == "" {
					return invalid("a reply is required to mark a complaint replied")
				}
				now := s.now()
				c.RepliedAt = &now
			}
			if domain.CanAdminOverride(c.Status, to) && !domain.CanTransition(c.Status, to, sess.Role) {
				return s.setStatus(ctx, tx, sess, c, to, domain.ActionStatusChanged, notes, map[string]any{"override": true})
			}
			return s.transition(ctx, tx, sess, c, to, domain.ActionStatusChanged, notes, nil)
		}
		if err := repo.SaveComplaint(ctx, tx, c); err != nil {
			return err
		}
		if c.MPID != nil {
			return repo.RefreshMPCounters(ctx, tx, *c.MPID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if staleMP != "" {
		if err := repo.RefreshMPCounters(ctx, s.DB, staleMP); err != nil {
			log.Warn().Err(err).Str("mp_id", staleMP).Msg("refresh counters of previous mp failed")
		}
	}
	return out, nil
}

// AdminDelete removes a complaint together with its audit and coordination
// rows.
func (s *ComplaintService) AdminDelete(ctx context.Context, sess *auth.Session, id string) error {
	ctx, span := s.tracer().Start(ctx, "AdminDelete", trace.WithAttributes(attribute.String("complaint.id", id)))
	defer span.End()

	if !sess.IsAdmin() {
		return ErrForbidden
	}
	var deleted *domain.Complaint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := repo.DeleteComplaint(ctx, tx, id); err != nil {
			return err
		}
		deleted = c
		if c.MPID != nil {
			return repo.RefreshMPCounters(ctx, tx, *c.MPID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	publish(ctx, s.Events, complaintEvent(events.ComplaintDeleted, deleted))
	return nil
}
