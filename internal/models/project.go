package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProjectSubmitted  = "submitted"
	ProjectReviewing  = "reviewing"
	ProjectApproved   = "approved"
	ProjectInProgress = "in-progress"
	ProjectReview     = "review"
	ProjectCompleted  = "completed"
	ProjectCancelled  = "cancelled"
	ProjectOnHold     = "on-hold"

	MilestonePending    = "pending"
	MilestoneInProgress = "in-progress"
	MilestoneCompleted  = "completed"
)

var ProjectStatusDisplay = map[string]string{
	ProjectSubmitted:  "Submitted",
	ProjectReviewing:  "Under Review",
	ProjectApproved:   "Approved",
	ProjectInProgress: "In Progress",
	ProjectReview:     "Client Review",
	ProjectCompleted:  "Completed",
	ProjectCancelled:  "Cancelled",
	ProjectOnHold:     "On Hold",
}

var PriorityDisplay = map[string]string{
	"low":    "Low",
	"medium": "Medium",
	"high":   "High",
	"urgent": "Urgent",
}

// ProjectType is a catalog entry for the kinds of work the agency offers.
type ProjectType struct {
	ID          uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Icon        string    `gorm:"size:50" json:"icon"`
	Color       string    `gorm:"size:20" json:"color"`
	IsActive    bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ProjectType) TableName() string { return "project_types" }

func (t *ProjectType) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// Project is a client engagement.
type Project struct {
	ID             uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	ClientID       uuid.UUID  `gorm:"type:char(36);index;not null" json:"client_id"`
	ProjectTypeID  *uuid.UUID `gorm:"type:char(36);index" json:"project_type_id"`
	Name           string     `gorm:"size:255;not null" json:"name"`
	Description    string     `gorm:"type:text;not null" json:"description"`
	Features       string     `gorm:"type:text" json:"features"`
	Timeline       string     `gorm:"size:50" json:"timeline"`
	BudgetRange    string     `gorm:"size:50" json:"budget_range"`
	EstimatedCost  *float64   `gorm:"type:decimal(12,2)" json:"estimated_cost"`
	FinalCost      *float64   `gorm:"type:decimal(12,2)" json:"final_cost"`
	Status         string     `gorm:"size:20;not null;default:submitted;index" json:"status"`
	Priority       string     `gorm:"size:10;not null;default:medium" json:"priority"`
	Progress       int        `gorm:"not null;default:0" json:"progress"`
	StartDate      *time.Time `json:"start_date"`
	Deadline       *time.Time `json:"deadline"`
	CompletionDate *time.Time `json:"completion_date"`
	AssignedTo     *uuid.UUID `gorm:"type:char(36);index" json:"assigned_to"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Client       *User              `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	ProjectType  *ProjectType       `gorm:"foreignKey:ProjectTypeID" json:"project_type,omitempty"`
	AssignedUser *User              `gorm:"foreignKey:AssignedTo" json:"assigned_user,omitempty"`
	Milestones   []ProjectMilestone `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"milestones,omitempty"`
	Files        []ProjectFile      `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"files,omitempty"`
}

func (Project) TableName() string { return "projects" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

func (p Project) MarshalJSON() ([]byte, error) {
	type alias Project
	out := struct {
		alias
		StatusDisplay    string `json:"status_display"`
		PriorityDisplay  string `json:"priority_display"`
		ClientName       string `json:"client_name,omitempty"`
		ProjectTypeName  string `json:"project_type_name,omitempty"`
		AssignedUserName string `json:"assigned_user_name,omitempty"`
	}{
		alias:           alias(p),
		StatusDisplay:   displayOr(ProjectStatusDisplay, p.Status),
		PriorityDisplay: displayOr(PriorityDisplay, p.Priority),
	}
	if p.Client != nil {
		out.ClientName = p.Client.FullName()
	}
	if p.ProjectType != nil {
		out.ProjectTypeName = p.ProjectType.Name
	}
	if p.AssignedUser != nil {
		out.AssignedUserName = p.AssignedUser.FullName()
	}
	return json.Marshal(out)
}

// ProjectMilestone is a billable checkpoint inside a project.
type ProjectMilestone struct {
	ID                uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	ProjectID         uuid.UUID  `gorm:"type:char(36);index;not null" json:"project_id"`
	Title             string     `gorm:"size:255;not null" json:"title"`
	Description       string     `gorm:"type:text" json:"description"`
	DueDate           *time.Time `json:"due_date"`
	CompletionDate    *time.Time `json:"completion_date"`
	Status            string     `gorm:"size:20;not null;default:pending" json:"status"`
	PaymentPercentage float64    `gorm:"type:decimal(5,2);not null;default:0" json:"payment_percentage"`
	OrderIndex        int        `gorm:"not null" json:"order_index"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (ProjectMilestone) TableName() string { return "project_milestones" }

func (m *ProjectMilestone) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// ProjectFile is an uploaded artifact attached to a project.
type ProjectFile struct {
	ID          uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	ProjectID   uuid.UUID  `gorm:"type:char(36);index;not null" json:"project_id"`
	UploadedBy  *uuid.UUID `gorm:"type:char(36)" json:"uploaded_by"`
	FileName    string     `gorm:"size:255;not null" json:"file_name"`
	FilePath    string     `gorm:"size:500;not null;index" json:"file_path"`
	FileSize    int64      `json:"file_size"`
	FileType    string     `gorm:"size:100" json:"file_type"`
	MimeType    string     `gorm:"size:100" json:"mime_type"`
	Description string     `gorm:"type:text" json:"description"`
	IsPublic    bool       `gorm:"not null;default:false" json:"is_public"`
	CreatedAt   time.Time  `json:"created_at"`

	Uploader *User `gorm:"foreignKey:UploadedBy" json:"uploader,omitempty"`
}

func (ProjectFile) TableName() string { return "project_files" }

func (f *ProjectFile) BeforeCreate(tx *gorm.DB) error {
	assignID(&f.ID)
	return nil
}

func displayOr(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return key
}
