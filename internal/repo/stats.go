package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

// ComplaintsStats returns the number of complaints matching f and the
// greatest UpdatedAt among them. When nothing matches, the count is 0 and
// maxUpdatedAt is nil.
func ComplaintsStats(ctx context.Context, db *gorm.DB, f ComplaintFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = f.apply(db.WithContext(ctx).Model(&domain.Complaint{})).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// MAX(updated_at) comes back as TEXT from SQLite.
	var row struct {
		UpdatedAt time.Time
	}
	err = f.apply(db.WithContext(ctx).Model(&domain.Complaint{})).
		Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error
	if err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// AuditStats returns the number of audit rows of a complaint and the time of
// the newest one.
func AuditStats(ctx context.Context, db *gorm.DB, complaintID string) (count int64, latest *time.Time, err error) {
	q := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.AuditLogEntry{}).Where("complaint_id = ?", complaintID)
	}
	if err = q().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	var row struct {
		CreatedAt time.Time
	}
	if err = q().Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
