package domain

import (
	"time"

	"gorm.io/datatypes"
)

// AuditAction is the kind of action recorded in the complaint audit log.
type AuditAction string

const (
	ActionCreated              AuditAction = "created"
	ActionStatusChanged        AuditAction = "status_changed"
	ActionViewed               AuditAction = "viewed"
	ActionReplied              AuditAction = "replied"
	ActionForwardedToMinistry  AuditAction = "forwarded_to_ministry"
	ActionForwardedToDeputy    AuditAction = "forwarded_to_deputy"
	ActionForwardedViaWhatsApp AuditAction = "forwarded_via_whatsapp"
	ActionNoteAdded            AuditAction = "note_added"
	ActionPriorityChanged      AuditAction = "priority_changed"
)

// AuditLogEntry is an append-only record of an action taken on a complaint.
// Rows are written once and never updated or deleted.
type AuditLogEntry struct {
	ID           string            `json:"id"             gorm:"type:char(36);primaryKey"`
	ComplaintID  string            `json:"complaint_id"   gorm:"type:char(36);not null;index:idx_audit_complaint,priority:1"`
	Action       AuditAction       `json:"action"         gorm:"type:varchar(32);not null"`
	ActionBy     string            `json:"action_by"      gorm:"type:varchar(255)"`
	ActionByRole Role              `json:"action_by_role" gorm:"type:varchar(16)"`
	OldValue     datatypes.JSONMap `json:"old_value,omitempty"`
	NewValue     datatypes.JSONMap `json:"new_value,omitempty"`
	Notes        string            `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt    time.Time         `json:"created_at"     gorm:"index:idx_audit_complaint,priority:2"`

	Complaint Complaint `json:"-" gorm:"foreignKey:ComplaintID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AuditLogEntry.
func (AuditLogEntry) TableName() string { return "complaint_audit_log" }

// CoordinationEntry is an editable coordination note exchanged between the
// officials handling a complaint. Entries are removed with their complaint.
type CoordinationEntry struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	ComplaintID string    `json:"complaint_id" gorm:"type:char(36);not null;index"`
	AuthorID    string    `json:"author_id"    gorm:"type:varchar(64);not null"`
	AuthorName  string    `json:"author_name"  gorm:"type:varchar(255)"`
	AuthorRole  Role      `json:"author_role"  gorm:"type:varchar(16);not null"`
	Content     string    `json:"content"      gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Complaint Complaint `json:"-" gorm:"foreignKey:ComplaintID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CoordinationEntry.
func (CoordinationEntry) TableName() string { return "coordination_entries" }
