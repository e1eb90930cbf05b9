// Package domain defines the persistence models and enumerations of the
// complaint routing platform. These types are mapped with GORM and shared by
// the repository, service and HTTP layers.
package domain

import "time"

// Wilaya is a top-level administrative province. It is reference data,
// created by seed/import and rarely edited by an admin.
type Wilaya struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(128);not null"`
	Code      int       `json:"code"       gorm:"not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Wilaya.
func (Wilaya) TableName() string { return "wilayas" }

// Daira is a municipal-level subdivision. Every Daira belongs to exactly one
// Wilaya.
type Daira struct {
	ID        string    `json:"id"        gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name"      gorm:"type:varchar(128);not null"`
	WilayaID  string    `json:"wilaya_id" gorm:"type:varchar(64);not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Daira.
func (Daira) TableName() string { return "dairas" }

// Mutamadiya is a finer subdivision of a Daira. It is admin reference data
// only and takes no part in routing.
type Mutamadiya struct {
	ID        string    `json:"id"        gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name"      gorm:"type:varchar(128);not null"`
	DairaID   string    `json:"daira_id"  gorm:"type:varchar(64);not null;index"`
	WilayaID  string    `json:"wilaya_id" gorm:"type:varchar(64);not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Mutamadiya.
func (Mutamadiya) TableName() string { return "mutamadiyat" }
