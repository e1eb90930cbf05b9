package domain

import (
	"time"

	"gorm.io/datatypes"
)

// AssignedTo names the kind of official a complaint is routed to.
type AssignedTo string

const (
	AssignedToMP          AssignedTo = "mp"
	AssignedToLocalDeputy AssignedTo = "local_deputy"
)

// ForwardingMethod is how a complaint was handed from an MP to a deputy.
type ForwardingMethod string

const (
	ForwardSystem   ForwardingMethod = "system"
	ForwardWhatsApp ForwardingMethod = "whatsapp"
)

// Valid reports whether m is a known forwarding method.
func (m ForwardingMethod) Valid() bool { return m == ForwardSystem || m == ForwardWhatsApp }

// Priority is the triage level set by the assigned official.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// MaxComplaintImages caps the number of image URLs per complaint.
const MaxComplaintImages = 3

// Complaint is the central record: a citizen grievance routed to an MP or a
// local deputy.
//
// Fields:
//   - UserID / UserPhone: the submitting citizen.
//   - Category, WilayaID, DairaID: routing inputs.
//   - AssignedTo plus MPID / LocalDeputyID: resolved routing target. The
//     official id is nil when no official matched (degraded mode).
//   - Status: lifecycle state (see status.go).
//   - Reply / RepliedAt: the official answer.
//   - Forwarded*: hand-off metadata. ForwardedTo holds a ministry label when
//     forwarded to a ministry.
//   - OfficialLetter: generated letter text, when one was produced.
//
// Concurrent edits are last-write-wins; there is no version column.
type Complaint struct {
	ID                  string                      `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID              string                      `json:"user_id"     gorm:"type:varchar(64);not null;index"`
	UserPhone           string                      `json:"user_phone,omitempty" gorm:"type:varchar(32)"`
	Content             string                      `json:"content"     gorm:"type:text;not null"`
	Images              datatypes.JSONSlice[string] `json:"images"`
	Category            Category                    `json:"category"    gorm:"type:varchar(32);not null;index"`
	WilayaID            string                      `json:"wilaya_id"   gorm:"type:varchar(64);not null;index"`
	DairaID             *string                     `json:"daira_id,omitempty" gorm:"type:varchar(64);index"`
	MPID                *string                     `json:"mp_id,omitempty" gorm:"column:mp_id;type:char(36);index"`
	LocalDeputyID       *string                     `json:"local_deputy_id,omitempty" gorm:"type:char(36);index"`
	AssignedTo          AssignedTo                  `json:"assigned_to" gorm:"type:varchar(16);not null"`
	Status              Status                      `json:"status"      gorm:"type:varchar(16);not null;default:'pending';index"`
	Reply               string                      `json:"reply,omitempty" gorm:"type:text"`
	RepliedAt           *time.Time                  `json:"replied_at,omitempty"`
	ForwardedTo         string                      `json:"forwarded_to,omitempty" gorm:"type:varchar(255)"`
	ForwardedToDeputyID *string                     `json:"forwarded_to_deputy_id,omitempty" gorm:"type:char(36);index"`
	ForwardingMethod    ForwardingMethod            `json:"forwarding_method,omitempty" gorm:"type:varchar(16)"`
	ForwardedAt         *time.Time                  `json:"forwarded_at,omitempty"`
	OfficialLetter      string                      `json:"official_letter,omitempty" gorm:"type:text"`
	InternalNotes       string                      `json:"internal_notes,omitempty" gorm:"type:text"`
	Priority            Priority                    `json:"priority"    gorm:"type:varchar(16);not null;default:'normal'"`
	ViewedAt            *time.Time                  `json:"viewed_at,omitempty"`
	CreatedAt           time.Time                   `json:"created_at"  gorm:"index"`
	UpdatedAt           time.Time                   `json:"updated_at"`

	// Derived at read time, never persisted.
	Overdue bool `json:"overdue" gorm:"-"`
	Urgent  bool `json:"urgent"  gorm:"-"`
}

// TableName returns the database table name for Complaint.
func (Complaint) TableName() string { return "complaints" }

// DefaultOverdueAfter is how long a complaint may stay unresolved before it is
// flagged overdue.
const DefaultOverdueAfter = 7 * 24 * time.Hour

// IsOverdue reports whether the complaint has stayed unresolved longer than
// after at instant now.
func (c *Complaint) IsOverdue(now time.Time, after time.Duration) bool {
	if c.Status.IsClosed() {
		return false
	}
	return now.Sub(c.CreatedAt) > after
}

// IsUrgent reports whether the complaint carries the urgent priority flag.
func (c *Complaint) IsUrgent() bool { return c.Priority == PriorityUrgent }

// Decorate fills the derived read-time flags.
func (c *Complaint) Decorate(now time.Time, overdueAfter time.Duration) {
	c.Overdue = c.IsOverdue(now, overdueAfter)
	c.Urgent = c.IsUrgent()
}

// OfficialID returns the id of the official currently responsible for the
// complaint, or "" when none resolved.
func (c *Complaint) OfficialID() string {
	var p *string
	if c.AssignedTo == AssignedToLocalDeputy {
		p = c.LocalDeputyID
	} else {
		p = c.MPID
	}
	if p == nil {
		return ""
	}
	return *p
}

// HandledBy reports whether the official (role, id) may act on the complaint:
// the assigned official, the MP who forwarded it, or the deputy it was
// forwarded to.
func (c *Complaint) HandledBy(role Role, officialID string) bool {
	if officialID == "" {
		return false
	}
	switch role {
	case RoleMP:
		return c.MPID != nil && *c.MPID == officialID
	case RoleLocalDeputy:
		if c.AssignedTo == AssignedToLocalDeputy && c.LocalDeputyID != nil && *c.LocalDeputyID == officialID {
			return true
		}
		return c.ForwardedToDeputyID != nil && *c.ForwardedToDeputyID == officialID
	}
	return false
}
