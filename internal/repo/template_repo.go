// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for reply
// templates.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

// ListTemplates returns templates, default ones first then by title. When
// category is non-empty only templates for that category or for no category
// are returned.
func ListTemplates(ctx context.Context, db *gorm.DB, category domain.Category) ([]domain.ReplyTemplate, error) {
	var out []domain.ReplyTemplate
	q := db.WithContext(ctx)
	if category != "" {
		q = q.Where("category = ? OR category IS NULL", category)
	}
	err := q.Order("is_default desc, title asc, id asc").Find(&out).Error
	return out, err
}

// GetTemplate fetches a template by id, or ErrNotFound.
func GetTemplate(ctx context.Context, db *gorm.DB, id string) (*domain.ReplyTemplate, error) {
	var t domain.ReplyTemplate
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTemplate inserts t.
func CreateTemplate(ctx context.Context, db *gorm.DB, t *domain.ReplyTemplate) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	return db.WithContext(ctx).Create(t).Error
}

// UpdateTemplate applies fields to the template identified by id.
func UpdateTemplate(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return updateByID(ctx, db, &domain.ReplyTemplate{}, id, fields)
}

// DeleteTemplate removes the template identified by id.
func DeleteTemplate(ctx context.Context, db *gorm.DB, id string) error {
	return deleteByID(ctx, db, &domain.ReplyTemplate{}, id)
}
