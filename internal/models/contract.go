package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ContractDraft     = "draft"
	ContractSent      = "sent"
	ContractSigned    = "signed"
	ContractActive    = "active"
	ContractCompleted = "completed"
	ContractCancelled = "cancelled"
	ContractExpired   = "expired"

	SignatureValid = "valid"
)

var ContractStatusDisplay = map[string]string{
	ContractDraft:     "Draft",
	ContractSent:      "Sent for Signature",
	ContractSigned:    "Signed",
	ContractActive:    "Active",
	ContractCompleted: "Completed",
	ContractCancelled: "Cancelled",
	ContractExpired:   "Expired",
}

// Contract is the agreement drafted for a project.
type Contract struct {
	ID                 uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	ProjectID          uuid.UUID  `gorm:"type:char(36);index;not null" json:"project_id"`
	ClientID           uuid.UUID  `gorm:"type:char(36);index;not null" json:"client_id"`
	ContractNumber     string     `gorm:"size:50;uniqueIndex;not null" json:"contract_number"`
	Title              string     `gorm:"size:255;not null" json:"title"`
	Content            string     `gorm:"type:text;not null" json:"content"`
	Amount             float64    `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency           string     `gorm:"size:3;not null;default:OMR" json:"currency"`
	Status             string     `gorm:"size:20;not null;default:draft;index" json:"status"`
	CreatedDate        time.Time  `json:"created_date"`
	SentDate           *time.Time `json:"sent_date"`
	SignedDate         *time.Time `json:"signed_date"`
	ExpiryDate         *time.Time `json:"expiry_date"`
	CompletionDate     *time.Time `json:"completion_date"`
	TermsAndConditions string     `gorm:"type:text" json:"terms_and_conditions"`
	CreatedBy          *uuid.UUID `gorm:"type:char(36)" json:"created_by"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Project    *Project            `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Client     *User               `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Signatures []ContractSignature `gorm:"foreignKey:ContractID;constraint:OnDelete:CASCADE" json:"signatures,omitempty"`
}

func (Contract) TableName() string { return "contracts" }

func (c *Contract) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	if c.CreatedDate.IsZero() {
		c.CreatedDate = time.Now()
	}
	return nil
}

// IsExpiredAt reports whether an unsigned contract has passed its expiry date.
// Signed, active, completed and cancelled contracts never expire.
func (c Contract) IsExpiredAt(now time.Time) bool {
	if c.ExpiryDate == nil {
		return false
	}
	switch c.Status {
	case ContractSigned, ContractActive, ContractCompleted, ContractCancelled:
		return false
	}
	return dayOf(now).After(dayOf(*c.ExpiryDate))
}

func (c Contract) IsExpired() bool { return c.IsExpiredAt(time.Now()) }

func (c Contract) MarshalJSON() ([]byte, error) {
	type alias Contract
	return json.Marshal(struct {
		alias
		StatusDisplay string `json:"status_display"`
		IsExpired     bool   `json:"is_expired"`
	}{alias(c), displayOr(ContractStatusDisplay, c.Status), c.IsExpired()})
}

// ContractSignature records one signer's acceptance of a contract.
type ContractSignature struct {
	ID                 uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	ContractID         uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_contract_signer" json:"contract_id"`
	SignerID           uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_contract_signer" json:"signer_id"`
	SignatureImageURL  string    `gorm:"size:500;not null" json:"signature_image_url"`
	SignedAt           time.Time `json:"signed_at"`
	IPAddress          string    `gorm:"size:45" json:"ip_address"`
	UserAgent          string    `gorm:"size:255" json:"user_agent"`
	VerificationStatus string    `gorm:"size:20;not null;default:valid" json:"verification_status"`

	Signer *User `gorm:"foreignKey:SignerID" json:"signer,omitempty"`
}

func (ContractSignature) TableName() string { return "contract_signatures" }

func (s *ContractSignature) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	if s.SignedAt.IsZero() {
		s.SignedAt = time.Now()
	}
	return nil
}

// dayOf truncates t to a UTC date.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
