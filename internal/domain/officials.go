package domain

import "time"

// MP is a national-assembly deputy. MPs handle every non-municipal complaint
// filed in their wilaya.
//
// ComplaintsCount and ResponseRate are denormalised counters refreshed by the
// service layer whenever a complaint is assigned to or replied by the MP.
type MP struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	Name            string    `json:"name"             gorm:"type:varchar(255);not null"`
	Wilaya          string    `json:"wilaya"           gorm:"type:varchar(128)"`
	WilayaID        string    `json:"wilaya_id"        gorm:"type:varchar(64);not null;index:idx_mps_location,priority:1"`
	DairaID         *string   `json:"daira_id,omitempty" gorm:"type:varchar(64);index:idx_mps_location,priority:2"`
	Daira           string    `json:"daira,omitempty"  gorm:"type:varchar(128)"`
	Bloc            string    `json:"bloc,omitempty"   gorm:"type:varchar(128)"`
	Phone           string    `json:"phone,omitempty"  gorm:"type:varchar(32);index"`
	Email           string    `json:"email,omitempty"  gorm:"type:varchar(255)"`
	Bio             string    `json:"bio,omitempty"    gorm:"type:text"`
	Image           string    `json:"image,omitempty"  gorm:"type:text"`
	ProfileURL      string    `json:"profile_url,omitempty" gorm:"type:text"`
	ComplaintsCount int       `json:"complaints_count" gorm:"not null;default:0"`
	ResponseRate    int       `json:"response_rate"    gorm:"not null;default:0"`
	IsActive        bool      `json:"is_active"        gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for MP.
func (MP) TableName() string { return "mps" }

// LocalDeputy is the official responsible for a daira's municipal affairs.
type LocalDeputy struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	Name           string    `json:"name"            gorm:"type:varchar(255);not null"`
	WilayaID       string    `json:"wilaya_id"       gorm:"type:varchar(64);not null;index:idx_deputies_location,priority:1"`
	DairaID        string    `json:"daira_id"        gorm:"type:varchar(64);not null;index:idx_deputies_location,priority:2"`
	Phone          string    `json:"phone,omitempty" gorm:"type:varchar(32);index"`
	WhatsAppNumber string    `json:"whatsapp_number,omitempty" gorm:"column:whatsapp_number;type:varchar(32)"`
	Email          string    `json:"email,omitempty" gorm:"type:varchar(255)"`
	Bio            string    `json:"bio,omitempty"   gorm:"type:text"`
	Image          string    `json:"image,omitempty" gorm:"type:text"`
	IsActive       bool      `json:"is_active"       gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for LocalDeputy.
func (LocalDeputy) TableName() string { return "local_deputies" }

// ContactNumber returns the number used for WhatsApp forwarding: the
// dedicated WhatsApp number when set, otherwise the phone. Empty when the
// deputy has neither.
func (d LocalDeputy) ContactNumber() string {
	if d.WhatsAppNumber != "" {
		return d.WhatsAppNumber
	}
	return d.Phone
}
