// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for pending
// official registrations.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

// CreateRegistration inserts r as pending.
func CreateRegistration(ctx context.Context, db *gorm.DB, r *domain.PendingRegistration) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	r.Status = domain.RegistrationPending
	return db.WithContext(ctx).Create(r).Error
}

// GetRegistration fetches a registration by id, or ErrNotFound.
func GetRegistration(ctx context.Context, db *gorm.DB, id string) (*domain.PendingRegistration, error) {
	var r domain.PendingRegistration
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// FindPendingRegistrationByPhone returns the open registration for phone, or
// ErrNotFound.
func FindPendingRegistrationByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.PendingRegistration, error) {
	var r domain.PendingRegistration
	err := db.WithContext(ctx).
		Where("phone = ? AND status = ?", phone, domain.RegistrationPending).
		Take(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRegistrations returns a page of registrations, newest first, with the
// total. An empty status lists all.
func ListRegistrations(ctx context.Context, db *gorm.DB, status domain.RegistrationStatus, offset, limit int) ([]domain.PendingRegistration, int64, error) {
	scope := func() *gorm.DB {
		q := db.WithContext(ctx).Model(&domain.PendingRegistration{})
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}
	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.PendingRegistration
	q := scope().Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, total, err
}

// MarkRegistrationReviewed moves a pending registration to status. It
// returns ErrNotFound when the row is missing or no longer pending.
func MarkRegistrationReviewed(ctx context.Context, db *gorm.DB, id string, status domain.RegistrationStatus, reviewer string, at time.Time) error {
	res := db.WithContext(ctx).Model(&domain.PendingRegistration{}).
		Where("id = ? AND status = ?", id, domain.RegistrationPending).
		Updates(map[string]any{
			"status":      status,
			"reviewed_by": reviewer,
			"reviewed_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
