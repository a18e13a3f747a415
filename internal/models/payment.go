package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"

	InvoiceDraft     = "draft"
	InvoiceSent      = "sent"
	InvoicePaid      = "paid"
	InvoiceOverdue   = "overdue"
	InvoiceCancelled = "cancelled"
)

// Payment is an amount owed by a client for a project.
type Payment struct {
	ID              uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	ProjectID       uuid.UUID      `gorm:"type:char(36);index;not null" json:"project_id"`
	MilestoneID     *uuid.UUID     `gorm:"type:char(36);index" json:"milestone_id"`
	ContractID      *uuid.UUID     `gorm:"type:char(36);index" json:"contract_id"`
	ClientID        uuid.UUID      `gorm:"type:char(36);index;not null" json:"client_id"`
	Amount          float64        `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency        string         `gorm:"size:3;not null;default:OMR" json:"currency"`
	PaymentMethod   string         `gorm:"size:50" json:"payment_method"`
	PaymentGateway  string         `gorm:"size:50" json:"payment_gateway"`
	TransactionID   string         `gorm:"size:255;index" json:"transaction_id"`
	GatewayResponse datatypes.JSON `json:"gateway_response"`
	Status          string         `gorm:"size:20;not null;default:pending;index" json:"status"`
	DueDate         *time.Time     `json:"due_date"`
	PaidDate        *time.Time     `json:"paid_date"`
	Description     string         `gorm:"type:text" json:"description"`
	InvoiceNumber   string         `gorm:"size:50;index" json:"invoice_number"`
	RefundedAmount  float64        `gorm:"type:decimal(12,2);not null;default:0" json:"refunded_amount"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Project   *Project          `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Client    *User             `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Milestone *ProjectMilestone `gorm:"foreignKey:MilestoneID" json:"milestone,omitempty"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

func (p Payment) IsOverdueAt(now time.Time) bool {
	return p.Status == PaymentPending && p.DueDate != nil && dayOf(now).After(dayOf(*p.DueDate))
}

func (p Payment) MarshalJSON() ([]byte, error) {
	type alias Payment
	return json.Marshal(struct {
		alias
		IsOverdue bool `json:"is_overdue"`
	}{alias(p), p.IsOverdueAt(time.Now())})
}

// LineItem is one row of an invoice.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// Invoice is the billing document issued to a client.
type Invoice struct {
	ID            uuid.UUID                     `gorm:"type:char(36);primaryKey" json:"id"`
	ProjectID     uuid.UUID                     `gorm:"type:char(36);index;not null" json:"project_id"`
	ClientID      uuid.UUID                     `gorm:"type:char(36);index;not null" json:"client_id"`
	PaymentID     *uuid.UUID                    `gorm:"type:char(36);index" json:"payment_id"`
	InvoiceNumber string                        `gorm:"size:50;uniqueIndex;not null" json:"invoice_number"`
	Amount        float64                       `gorm:"type:decimal(12,2);not null" json:"amount"`
	TaxAmount     float64                       `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	TotalAmount   float64                       `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Currency      string                        `gorm:"size:3;not null;default:OMR" json:"currency"`
	Status        string                        `gorm:"size:20;not null;default:draft;index" json:"status"`
	IssueDate     time.Time                     `json:"issue_date"`
	DueDate       time.Time                     `gorm:"not null" json:"due_date"`
	PaidDate      *time.Time                    `json:"paid_date"`
	Description   string                        `gorm:"type:text" json:"description"`
	LineItems     datatypes.JSONSlice[LineItem] `json:"line_items"`
	CreatedAt     time.Time                     `json:"created_at"`
	UpdatedAt     time.Time                     `json:"updated_at"`

	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Client  *User    `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

func (Invoice) TableName() string { return "invoices" }

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	if i.IssueDate.IsZero() {
		i.IssueDate = dayOf(time.Now())
	}
	return nil
}

func (i Invoice) IsOverdueAt(now time.Time) bool {
	return i.Status == InvoiceSent && dayOf(now).After(dayOf(i.DueDate))
}

func (i Invoice) MarshalJSON() ([]byte, error) {
	type alias Invoice
	return json.Marshal(struct {
		alias
		IsOverdue bool `json:"is_overdue"`
	}{alias(i), i.IsOverdueAt(time.Now())})
}
