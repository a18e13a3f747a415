package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var MessageTypes = map[string]bool{
	"general":   true,
	"update":    true,
	"feedback":  true,
	"invoice":   true,
	"milestone": true,
	"urgent":    true,
}

// Message is a project-scoped note between a client and staff.
type Message struct {
	ID              uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	ProjectID       uuid.UUID      `gorm:"type:char(36);index;not null" json:"project_id"`
	SenderID        uuid.UUID      `gorm:"type:char(36);index;not null" json:"sender_id"`
	RecipientID     uuid.UUID      `gorm:"type:char(36);index;not null" json:"recipient_id"`
	Subject         string         `gorm:"size:255" json:"subject"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	MessageType     string         `gorm:"size:20;not null;default:general" json:"message_type"`
	IsRead          bool           `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt          *time.Time     `json:"read_at"`
	ParentMessageID *uuid.UUID     `gorm:"type:char(36);index" json:"parent_message_id"`
	Attachments     datatypes.JSON `json:"attachments"`
	CreatedAt       time.Time      `json:"created_at"`

	Sender    *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Recipient *User     `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
	Project   *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Replies   []Message `gorm:"foreignKey:ParentMessageID" json:"replies,omitempty"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// Notification is an in-app alert for a single user.
type Notification struct {
	ID                uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	UserID            uuid.UUID  `gorm:"type:char(36);index;not null" json:"user_id"`
	Title             string     `gorm:"size:255;not null" json:"title"`
	Message           string     `gorm:"type:text;not null" json:"message"`
	Type              string     `gorm:"size:50;not null;index" json:"type"`
	RelatedEntityType string     `gorm:"size:50" json:"related_entity_type"`
	RelatedEntityID   *uuid.UUID `gorm:"type:char(36)" json:"related_entity_id"`
	IsRead            bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt            *time.Time `json:"read_at"`
	ActionURL         string     `gorm:"size:500" json:"action_url"`
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	assignID(&n.ID)
	return nil
}
