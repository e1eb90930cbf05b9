// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only complaint audit log.
// There is deliberately no update or delete function for audit rows.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

// AppendAudit inserts e, assigning an id and timestamp when unset.
func AppendAudit(ctx context.Context, db *gorm.DB, e *domain.AuditLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(e).Error
}

// ListAudit returns the audit trail of a complaint, oldest first.
func ListAudit(ctx context.Context, db *gorm.DB, complaintID string) ([]domain.AuditLogEntry, error) {
	var out []domain.AuditLogEntry
	err := db.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CountAudit returns the number of audit rows for a complaint.
func CountAudit(ctx context.Context, db *gorm.DB, complaintID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.AuditLogEntry{}).
		Where("complaint_id = ?", complaintID).
		Count(&n).Error
	return n, err
}
