package domain

import "time"

// RegistrationStatus is the review state of a pending registration.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// PendingRegistration is a self-service sign-up request from a prospective
// MP or local deputy awaiting admin review. Approved and rejected are
// terminal.
type PendingRegistration struct {
	ID         string             `json:"id"          gorm:"type:char(36);primaryKey"`
	Phone      string             `json:"phone"       gorm:"type:varchar(32);not null;index"`
	Name       string             `json:"name"        gorm:"type:varchar(255);not null"`
	Role       Role               `json:"role"        gorm:"type:varchar(16);not null"`
	WilayaID   string             `json:"wilaya_id"   gorm:"type:varchar(64);not null"`
	DairaID    *string            `json:"daira_id,omitempty" gorm:"type:varchar(64)"`
	Status     RegistrationStatus `json:"status"      gorm:"type:varchar(16);not null;default:'pending';index"`
	ReviewedAt *time.Time         `json:"reviewed_at,omitempty"`
	ReviewedBy string             `json:"reviewed_by,omitempty" gorm:"type:varchar(64)"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// TableName returns the database table name for PendingRegistration.
func (PendingRegistration) TableName() string { return "pending_registrations" }

// ReplyTemplate is a reusable canned response. Default templates cannot be
// deleted.
type ReplyTemplate struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	Category  *Category `json:"category,omitempty" gorm:"type:varchar(32)"`
	IsDefault bool      `json:"is_default" gorm:"not null;default:false"`
	CreatedBy string    `json:"created_by" gorm:"type:varchar(64)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ReplyTemplate.
func (ReplyTemplate) TableName() string { return "reply_templates" }
