// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// geographic reference tables: wilayas, dairas and mutamadiyat.
//
// Lists are ordered for display (wilayas by code, the rest by name). Updates
// and deletes report ErrNotFound when no row matched.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

// ListWilayas returns every wilaya ordered by numeric code.
func ListWilayas(ctx context.Context, db *gorm.DB) ([]domain.Wilaya, error) {
	var out []domain.Wilaya
	err := db.WithContext(ctx).Order("code asc").Find(&out).Error
	return out, err
}

// CountWilayas returns the number of wilayas.
func CountWilayas(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Wilaya{}).Count(&n).Error
	return n, err
}

// GetWilaya fetches a wilaya by id, or ErrNotFound.
func GetWilaya(ctx context.Context, db *gorm.DB, id string) (*domain.Wilaya, error) {
	var w domain.Wilaya
	if err := db.WithContext(ctx).Where("id = ?", id).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWilaya inserts w.
func CreateWilaya(ctx context.Context, db *gorm.DB, w *domain.Wilaya) error {
	return db.WithContext(ctx).Create(w).Error
}

// UpdateWilaya applies fields to the wilaya identified by id.
func UpdateWilaya(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return updateByID(ctx, db, &domain.Wilaya{}, id, fields)
}

// DeleteWilaya removes the wilaya identified by id.
func DeleteWilaya(ctx context.Context, db *gorm.DB, id string) error {
	return deleteByID(ctx, db, &domain.Wilaya{}, id)
}

// ListDairas returns the dairas of wilayaID ordered by name. An empty
// wilayaID lists every daira.
func ListDairas(ctx context.Context, db *gorm.DB, wilayaID string) ([]domain.Daira, error) {
	var out []domain.Daira
	q := db.WithContext(ctx)
	if wilayaID != "" {
		q = q.Where("wilaya_id = ?", wilayaID)
	}
	err := q.Order("name asc").Find(&out).Error
	return out, err
}

// GetDaira fetches a daira by id, or ErrNotFound.
func GetDaira(ctx context.Context, db *gorm.DB, id string) (*domain.Daira, error) {
	var d domain.Daira
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDaira inserts d.
func CreateDaira(ctx context.Context, db *gorm.DB, d *domain.Daira) error {
	return db.WithContext(ctx).Create(d).Error
}

// UpdateDaira applies fields to the daira identified by id.
func UpdateDaira(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return updateByID(ctx, db, &domain.Daira{}, id, fields)
}

// DeleteDaira removes the daira identified by id.
func DeleteDaira(ctx context.Context, db *gorm.DB, id string) error {
	return deleteByID(ctx, db, &domain.Daira{}, id)
}

// ListMutamadiyat returns the mutamadiyat of dairaID ordered by name. An
// empty dairaID lists every row.
func ListMutamadiyat(ctx context.Context, db *gorm.DB, dairaID string) ([]domain.Mutamadiya, error) {
	var out []domain.Mutamadiya
	q := db.WithContext(ctx)
	if dairaID != "" {
		q = q.Where("daira_id = ?", dairaID)
	}
	err := q.Order("name asc").Find(&out).Error
	return out, err
}

// GetMutamadiya fetches a mutamadiya by id, or ErrNotFound.
func GetMutamadiya(ctx context.Context, db *gorm.DB, id string) (*domain.Mutamadiya, error) {
	var m domain.Mutamadiya
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMutamadiya inserts m.
func CreateMutamadiya(ctx context.Context, db *gorm.DB, m *domain.Mutamadiya) error {
	return db.WithContext(ctx).Create(m).Error
}

// UpdateMutamadiya applies fields to the mutamadiya identified by id.
func UpdateMutamadiya(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return updateByID(ctx, db, &domain.Mutamadiya{}, id, fields)
}

// DeleteMutamadiya removes the mutamadiya identified by id.
func DeleteMutamadiya(ctx context.Context, db *gorm.DB, id string) error {
	return deleteByID(ctx, db, &domain.Mutamadiya{}, id)
}

// InsertGeoIgnoringExisting bulk-inserts seed rows, skipping ids that are
// already present. It returns the number of rows actually inserted.
func InsertGeoIgnoringExisting(ctx context.Context, db *gorm.DB, wilayas []domain.Wilaya, dairas []domain.Daira) (int64, error) {
	var inserted int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(wilayas) > 0 {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(wilayas, 100)
			if res.Error != nil {
				return res.Error
			}
			inserted += res.RowsAffected
		}
		if len(dairas) > 0 {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(dairas, 100)
			if res.Error != nil {
				return res.Error
			}
			inserted += res.RowsAffected
		}
		return nil
	})
	return inserted, err
}

// updateByID updates the row of model's table with the given id. It returns
// ErrNotFound when nothing matched.
func updateByID(ctx context.Context, db *gorm.DB, model any, id string, fields map[string]any) error {
	res := db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// deleteByID deletes the row of model's table with the given id. It returns
// ErrNotFound when nothing matched.
func deleteByID(ctx context.Context, db *gorm.DB, model any, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
