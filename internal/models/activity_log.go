package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityLog is an append-only audit record. A nil UserID means the system acted.
type ActivityLog struct {
	ID         uuid.UUID         `gorm:"type:char(36);primaryKey" json:"id"`
	UserID     *uuid.UUID        `gorm:"type:char(36);index" json:"user_id"`
	Action     string            `gorm:"size:100;not null;index" json:"action"`
	EntityType string            `gorm:"size:50;not null;index" json:"entity_type"`
	EntityID   *uuid.UUID        `gorm:"type:char(36)" json:"entity_id"`
	OldValues  datatypes.JSONMap `json:"old_values"`
	NewValues  datatypes.JSONMap `json:"new_values"`
	IPAddress  string            `gorm:"size:45" json:"ip_address"`
	UserAgent  string            `gorm:"size:255" json:"user_agent"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ActivityLog) TableName() string { return "activity_logs" }

func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
