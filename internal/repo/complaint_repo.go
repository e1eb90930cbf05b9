// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Complaint
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only CRUD persistence and query composition.
//
// Error semantics:
//   - When a complaint is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
//
// Writes are last-write-wins: there is no version column and no conditional
// update.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ComplaintFilter narrows complaint listings. Zero values match everything.
//
// LocalDeputyID matches complaints assigned to the deputy as well as those
// an MP forwarded to them. OpenBefore selects complaints created before the
// instant that are not in a closed state, which is how the overdue filter is
// expressed in SQL.
type ComplaintFilter struct {
	UserID        string
	MPID          string
	LocalDeputyID string
	Statuses      []domain.Status
	Category      domain.Category
	WilayaID      string
	DairaID       string
	Priority      domain.Priority
	From          *time.Time
	To            *time.Time
	OpenBefore    *time.Time
	Query         string
}

func (f ComplaintFilter) apply(q *gorm.DB) *gorm.DB {
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.MPID != "" {
		q = q.Where("mp_id = ?", f.MPID)
	}
	if f.LocalDeputyID != "" {
		q = q.Where("((assigned_to = ? AND local_deputy_id = ?) OR forwarded_to_deputy_id = ?)",
			domain.AssignedToLocalDeputy, f.LocalDeputyID, f.LocalDeputyID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.WilayaID != "" {
		q = q.Where("wilaya_id = ?", f.WilayaID)
	}
	if f.DairaID != "" {
		q = q.Where("daira_id = ?", f.DairaID)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	if f.OpenBefore != nil {
		q = q.Where("created_at < ? AND status NOT IN ?", *f.OpenBefore,
			[]domain.Status{domain.StatusReplied, domain.StatusResolved, domain.StatusOutOfScope})
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		q = q.Where("LOWER(content) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(s))+"%")
	}
	return q
}

// '!' rather than a backslash: MySQL treats '\' inside a literal as an escape.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// escapeLike makes LIKE wildcards in user input match literally; the query
// declares '!' as the escape character.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// CreateComplaint inserts c, assigning a UUID and UTC timestamps when unset.
func CreateComplaint(ctx context.Context, db *gorm.DB, c *domain.Complaint) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = domain.StatusPending
	}
	if c.Priority == "" {
		c.Priority = domain.PriorityNormal
	}
	return db.WithContext(ctx).Create(c).Error
}

// GetComplaint fetches a complaint by id, or ErrNotFound.
func GetComplaint(ctx context.Context, db *gorm.DB, id string) (*domain.Complaint, error) {
	var c domain.Complaint
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListComplaints returns complaints matching f, newest first. A limit <= 0
// returns every matching row.
func ListComplaints(ctx context.Context, db *gorm.DB, f ComplaintFilter, offset, limit int) ([]domain.Complaint, error) {
	var out []domain.Complaint
	q := f.apply(db.WithContext(ctx)).Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountComplaints returns the number of complaints matching f.
func CountComplaints(ctx context.Context, db *gorm.DB, f ComplaintFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Complaint{})).Count(&total).Error
	return total, err
}

// SaveComplaint writes every column of c. UpdatedAt is refreshed.
func SaveComplaint(ctx context.Context, db *gorm.DB, c *domain.Complaint) error {
	c.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(c).Error
}

// UpdateComplaint applies fields to the complaint identified by id.
func UpdateComplaint(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return updateByID(ctx, db, &domain.Complaint{}, id, fields)
}

// DeleteComplaint removes the complaint identified by id. Audit rows and
// coordination entries go with it through the foreign-key cascade.
func DeleteComplaint(ctx context.Context, db *gorm.DB, id string) error {
	return deleteByID(ctx, db, &domain.Complaint{}, id)
}
