package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleClient = "client"
	RoleAdmin  = "admin"

	AuthTypeLocal = "local"
	AuthTypeLDAP  = "ldap"

	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// User is an account, either a client or a member of staff.
type User struct {
	ID                uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	Email             string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash      string     `gorm:"size:255;not null" json:"-"`
	FirstName         string     `gorm:"size:100;not null" json:"first_name"`
	LastName          string     `gorm:"size:100;not null" json:"last_name"`
	Company           string     `gorm:"size:255" json:"company"`
	Phone             string     `gorm:"size:20" json:"phone"`
	Role              string     `gorm:"size:20;not null;default:client;index" json:"role"`
	AuthType          string     `gorm:"size:20;not null;default:local" json:"auth_type"`
	IsVerified        bool       `gorm:"not null;default:false" json:"is_verified"`
	IsActive          bool       `gorm:"not null;default:true;index" json:"is_active"`
	VerificationToken *string    `gorm:"size:255;index" json:"-"`
	ResetToken        *string    `gorm:"size:255;index" json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	LastLogin         *time.Time `json:"last_login"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Profile              *UserProfile          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	IdentityVerification *IdentityVerification `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Sessions             []UserSession         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Notifications        []Notification        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u User) MarshalJSON() ([]byte, error) {
	type alias User
	return json.Marshal(struct {
		alias
		FullName string `json:"full_name"`
	}{alias(u), u.FullName()})
}

// DefaultNotificationPreferences is applied to new profiles.
func DefaultNotificationPreferences() datatypes.JSONMap {
	return datatypes.JSONMap{"email": true, "sms": false, "push": true}
}

// UserProfile holds per-user presentation settings.
type UserProfile struct {
	ID                      uuid.UUID         `gorm:"type:char(36);primaryKey" json:"id"`
	UserID                  uuid.UUID         `gorm:"type:char(36);uniqueIndex;not null" json:"user_id"`
	AvatarURL               string            `gorm:"size:500" json:"avatar_url"`
	Bio                     string            `gorm:"type:text" json:"bio"`
	Website                 string            `gorm:"size:255" json:"website"`
	Timezone                string            `gorm:"size:50;default:UTC" json:"timezone"`
	NotificationPreferences datatypes.JSONMap `json:"notification_preferences"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profiles" }

func (p *UserProfile) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	if p.NotificationPreferences == nil {
		p.NotificationPreferences = DefaultNotificationPreferences()
	}
	return nil
}

// IdentityVerification is a KYC document submission.
type IdentityVerification struct {
	ID                 uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	UserID             uuid.UUID  `gorm:"type:char(36);uniqueIndex;not null" json:"user_id"`
	FrontIDImageURL    string     `gorm:"size:500;not null" json:"front_id_image_url"`
	BackIDImageURL     string     `gorm:"size:500;not null" json:"back_id_image_url"`
	SignatureImageURL  string     `gorm:"size:500;not null" json:"signature_image_url"`
	VerificationStatus string     `gorm:"size:20;not null;default:pending;index" json:"verification_status"`
	VerifiedAt         *time.Time `json:"verified_at"`
	VerifiedBy         *uuid.UUID `gorm:"type:char(36)" json:"verified_by"`
	RejectionReason    string     `gorm:"type:text" json:"rejection_reason"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (IdentityVerification) TableName() string { return "identity_verifications" }

func (v *IdentityVerification) BeforeCreate(tx *gorm.DB) error {
	assignID(&v.ID)
	if v.VerificationStatus == "" {
		v.VerificationStatus = VerificationPending
	}
	return nil
}

func (v IdentityVerification) IsVerified() bool {
	return v.VerificationStatus == VerificationVerified
}

// ImageURLs lists the three stored document references.
func (v IdentityVerification) ImageURLs() []string {
	return []string{v.FrontIDImageURL, v.BackIDImageURL, v.SignatureImageURL}
}

// UserSession is a login session; the opaque token doubles as the refresh token.
type UserSession struct {
	ID           uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:char(36);index;not null" json:"user_id"`
	TokenHash    string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt    time.Time  `gorm:"index;not null" json:"expires_at"`
	IPAddress    string     `gorm:"size:45" json:"ip_address"`
	UserAgent    string     `gorm:"size:255" json:"user_agent"`
	IsActive     bool       `gorm:"not null;default:true;index" json:"is_active"`
	ReplacedByID *uuid.UUID `gorm:"type:char(36)" json:"replaced_by_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (UserSession) TableName() string { return "user_sessions" }

func (s *UserSession) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

func (s UserSession) Usable(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
