// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the officials
// directory: MPs and local deputies.
//
// Routing lookups (FindMPForWilaya, FindLocalDeputyFor) only consider active
// officials and break ties by the lowest id in lexicographic order so that
// the same inputs always resolve to the same official.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/domain"
)

// OfficialFilter narrows directory listings. Zero values match everything.
type OfficialFilter struct {
	WilayaID   string
	DairaID    string
	ActiveOnly bool
}

func (f OfficialFilter) apply(q *gorm.DB) *gorm.DB {
	if f.WilayaID != "" {
		q = q.Where("wilaya_id = ?", f.WilayaID)
	}
	if f.DairaID != "" {
		q = q.Where("daira_id = ?", f.DairaID)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	return q
}

// FindMPForWilaya returns the active MP responsible for non-municipal
// complaints of wilayaID, or ErrNotFound.
func FindMPForWilaya(ctx context.Context, db *gorm.DB, wilayaID string) (*domain.MP, error) {
	var mp domain.MP
	err := db.WithContext(ctx).
		Where("wilaya_id = ? AND is_active = ?", wilayaID, true).
		Order("id asc").
		Take(&mp).Error
	if err != nil {
		return nil, err
	}
	return &mp, nil
}

// FindLocalDeputyFor returns the active local deputy whose wilaya and daira
// both match, or ErrNotFound.
func FindLocalDeputyFor(ctx context.Context, db *gorm.DB, wilayaID, dairaID string) (*domain.LocalDeputy, error) {
	var d domain.LocalDeputy
	err := db.WithContext(ctx).
		Where("wilaya_id = ? AND daira_id = ? AND is_active = ?", wilayaID, dairaID, true).
		Order("id asc").
		Take(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListMPs returns a page of MPs ordered by name, plus the total matching f.
func ListMPs(ctx context.Context, db *gorm.DB, f OfficialFilter, offset, limit int) ([]domain.MP, int64, error) {
	var (
		out   []domain.MP
		total int64
	)
	if err := f.apply(db.WithContext(ctx).Model(&domain.MP{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q := f.apply(db.WithContext(ctx)).Order("name asc, id asc")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, total, err
}

// GetMP fetches an MP by id, or ErrNotFound.
func GetMP(ctx context.Context, db *gorm.DB, id string) (*domain.MP, error) {
	var mp domain.MP
	if err := db.WithContext(ctx).Where("id = ?", id).First(&mp).Error; err != nil {
		return nil, err
	}
	return &mp, nil
}

// FindMPByPhone returns the MP registered with phone, or ErrNotFound.
func FindMPByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.MP, error) {
	var mp domain.MP
	if err := db.WithContext(ctx).Where("phone = ?", phone).Order("id asc").Take(&mp).Error; err != nil {
		return nil, err
	}
	return &mp, nil
}

// CreateMP inserts mp.
func CreateMP(ctx context.Context, db *gorm.DB, mp *domain.MP) error {
	return db.WithContext(ctx).Create(mp).Error
}

// UpdateMP applies fields to the MP identified by id.
func UpdateMP(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return updateByID(ctx, db, &domain.MP{}, id, fields)
}

// DeleteMP removes the MP identified by id.
func DeleteMP(ctx context.Context, db *gorm.DB, id string) error {
	return deleteByID(ctx, db, &domain.MP{}, id)
}

// CountMPs returns the number of MP rows.
func CountMPs(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.MP{}).Count(&n).Error
	return n, err
}

// RefreshMPCounters recomputes the denormalised complaints_count and
// response_rate of an MP from the complaints table. The response rate is
// round(answered/total*100) and 0 when the MP has no complaints.
func RefreshMPCounters(ctx context.Context, db *gorm.DB, mpID string) error {
	var total, answered int64
	base := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Complaint{}).Where("mp_id = ?", mpID)
	}
	if err := base().Count(&total).Error; err != nil {
		return err
	}
	if err := base().Where("status IN ?", []domain.Status{domain.StatusReplied, domain.StatusResolved}).Count(&answered).Error; err != nil {
		return err
	}
	rate := 0
	if total > 0 {
		rate = int((answered*100 + total/2) / total)
	}
	return db.WithContext(ctx).Model(&domain.MP{}).Where("id = ?", mpID).
		Updates(map[string]any{"complaints_count": total, "response_rate": rate}).Error
}

// ListLocalDeputies returns the deputies matching f ordered by name.
func ListLocalDeputies(ctx context.Context, db *gorm.DB, f OfficialFilter) ([]domain.LocalDeputy, error) {
	var out []domain.LocalDeputy
	err := f.apply(db.WithContext(ctx)).Order("name asc, id asc").Find(&out).Error
	return out, err
}

// GetLocalDeputy fetches a local deputy by id, or ErrNotFound.
func GetLocalDeputy(ctx context.Context, db *gorm.DB, id string) (*domain.LocalDeputy, error) {
	var d domain.LocalDeputy
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// FindLocalDeputyByPhone returns the deputy registered with phone, or
// ErrNotFound.
func FindLocalDeputyByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.LocalDeputy, error) {
	var d domain.LocalDeputy
	if err := db.WithContext(ctx).Where("phone = ?", phone).Order("id asc").Take(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateLocalDeputy inserts d.
func CreateLocalDeputy(ctx context.Context, db *gorm.DB, d *domain.LocalDeputy) error {
	return db.WithContext(ctx).Create(d).Error
}

// UpdateLocalDeputy applies fields to the deputy identified by id.
func UpdateLocalDeputy(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return updateByID(ctx, db, &domain.LocalDeputy{}, id, fields)
}

// DeleteLocalDeputy removes the deputy identified by id.
func DeleteLocalDeputy(ctx context.Context, db *gorm.DB, id string) error {
	return deleteByID(ctx, db, &domain.LocalDeputy{}, id)
}
