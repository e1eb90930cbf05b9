// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for coordination
// entries: editable notes exchanged by officials about a complaint.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

// CreateCoordination inserts e, assigning an id and timestamps.
func CreateCoordination(ctx context.Context, db *gorm.DB, e *domain.CoordinationEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	return db.WithContext(ctx).Create(e).Error
}

// ListCoordination returns the entries of a complaint, oldest first.
func ListCoordination(ctx context.Context, db *gorm.DB, complaintID string) ([]domain.CoordinationEntry, error) {
	var out []domain.CoordinationEntry
	err := db.WithContext(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// GetCoordination fetches an entry scoped to its complaint, or ErrNotFound.
func GetCoordination(ctx context.Context, db *gorm.DB, complaintID, id string) (*domain.CoordinationEntry, error) {
	var e domain.CoordinationEntry
	err := db.WithContext(ctx).
		Where("id = ? AND complaint_id = ?", id, complaintID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateCoordinationContent replaces the content of an entry.
func UpdateCoordinationContent(ctx context.Context, db *gorm.DB, complaintID, id, content string) error {
	res := db.WithContext(ctx).Model(&domain.CoordinationEntry{}).
		Where("id = ? AND complaint_id = ?", id, complaintID).
		Updates(map[string]any{"content": content, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCoordination removes an entry.
func DeleteCoordination(ctx context.Context, db *gorm.DB, complaintID, id string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND complaint_id = ?", id, complaintID).
		Delete(&domain.CoordinationEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
