package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectService struct {
	db     *gorm.DB
	files  *FileService
	notify *NotificationService
	mailer *Mailer
}

func NewProjectService(db *gorm.DB, files *FileService, notify *NotificationService, mailer *Mailer) *ProjectService {
	return &ProjectService{db: db, files: files, notify: notify, mailer: mailer}
}

// ListTypes returns the active catalog ordered by name.
func (s *ProjectService) ListTypes() ([]models.ProjectType, error) {
	var types []models.ProjectType
	err := s.db.Where("is_active = ?", true).Order("name").Find(&types).Error
	return types, err
}

type SubmitProjectRequest struct {
	Name          string  `json:"name" binding:"required"`
	Description   string  `json:"description" binding:"required"`
	Email         string  `json:"email" binding:"required"`
	FirstName     string  `json:"first_name" binding:"required"`
	LastName      string  `json:"last_name" binding:"required"`
	Company       string  `json:"company"`
	Phone         string  `json:"phone"`
	ProjectTypeID *string `json:"project_type_id"`
	Features      string  `json:"features"`
	Timeline      string  `json:"timeline"`
	BudgetRange   string  `json:"budget_range"`
}

type SubmitResult struct {
	Project        *models.Project
	AccountCreated bool
}

// Submit is the public intake form. Unknown emails get an account with a
// generated password that is mailed to them.
func (s *ProjectService) Submit(actor Actor, req *SubmitProjectRequest) (*SubmitResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !utils.ValidEmail(email) {
		return nil, response.NewBadRequest("Invalid email format")
	}
	if req.Phone != "" && !utils.ValidPhone(req.Phone) {
		return nil, response.NewBadRequest("Invalid phone number format")
	}
	typeID, err := parseUUIDRef(req.ProjectTypeID)
	if err != nil {
		return nil, response.NewBadRequest("Invalid project type")
	}
	if typeID != nil {
		var n int64
		if err := s.db.Model(&models.ProjectType{}).Where("id = ?", *typeID).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, response.NewBadRequest("Invalid project type")
		}
	}

	var (
		user        models.User
		project     models.Project
		created     bool
		generatedPw string
	)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			generatedPw, err = utils.RandomPassword(12)
			if err != nil {
				return err
			}
			hash, err := utils.HashPassword(generatedPw)
			if err != nil {
				return err
			}
			user = models.User{
				Email:        email,
				PasswordHash: hash,
				FirstName:    strings.TrimSpace(req.FirstName),
				LastName:     strings.TrimSpace(req.LastName),
				Company:      req.Company,
				Phone:        req.Phone,
				Role:         models.RoleClient,
				AuthType:     models.AuthTypeLocal,
				IsActive:     true,
			}
			if err := createAccount(tx, &user, ""); err != nil {
				return err
			}
			created = true
		case err != nil:
			return err
		case !user.IsActive:
			return response.NewBadRequest("Account is inactive. Please contact support.")
		}

		project = models.Project{
			ClientID:      user.ID,
			ProjectTypeID: typeID,
			Name:          req.Name,
			Description:   req.Description,
			Features:      req.Features,
			Timeline:      req.Timeline,
			BudgetRange:   req.BudgetRange,
			Status:        models.ProjectSubmitted,
			Priority:      "medium",
		}
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		actor.UserID = user.ID
		actor.Role = user.Role
		return logActivity(tx, actor, "project.submit", "project", &project.ID, nil, map[string]interface{}{
			"name":            project.Name,
			"account_created": created,
		})
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.mailer.SendWelcome(&user, generatedPw)
	}
	s.mailer.SendProjectSubmitted(&user, &project)
	s.notify.NotifyAdmins(NotificationInput{
		Title:      "New Project Submission",
		Message:    fmt.Sprintf("%s submitted %q", user.FullName(), project.Name),
		Type:       "project_submitted",
		EntityType: "project",
		EntityID:   &project.ID,
		ActionURL:  "/admin/projects/" + project.ID.String(),
	})

	project.Client = &user
	return &SubmitResult{Project: &project, AccountCreated: created}, nil
}

type ProjectListRequest struct {
	Status string `form:"status"`
	Search string `form:"search"`
}

func (s *ProjectService) List(actor Actor, req *ProjectListRequest, p pagination.Params) ([]models.Project, pagination.Meta, error) {
	query := s.db.Model(&models.Project{})
	if !actor.IsAdmin() {
		query = query.Where("client_id = ?", actor.UserID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Search != "" {
		like := "%" + req.Search + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}
	return pagination.Paginate[models.Project](query, p,
		pagination.OrderBy("created_at DESC"),
		pagination.Preload("Client"), pagination.Preload("ProjectType"), pagination.Preload("AssignedUser"))
}

func (s *ProjectService) Get(actor Actor, id uuid.UUID) (*models.Project, error) {
	if _, err := loadProjectFor(s.db, actor, id); err != nil {
		return nil, err
	}
	var project models.Project
	err := s.db.
		Preload("Client").Preload("ProjectType").Preload("AssignedUser").
		Preload("Milestones", func(db *gorm.DB) *gorm.DB { return db.Order("order_index") }).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		First(&project, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

type UpdateProjectStatusRequest struct {
	Status        *string  `json:"status" binding:"omitempty,oneof=submitted reviewing approved in-progress review completed cancelled on-hold"`
	Priority      *string  `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Progress      *int     `json:"progress"`
	EstimatedCost *float64 `json:"estimated_cost" binding:"omitempty,gte=0"`
	FinalCost     *float64 `json:"final_cost" binding:"omitempty,gte=0"`
	StartDate     *string  `json:"start_date"`
	Deadline      *string  `json:"deadline"`
	AssignedTo    *string  `json:"assigned_to"`
}

// UpdateStatus applies staff edits. Entering completed forces progress to 100;
// entering approved mails the client. No contract is created here.
func (s *ProjectService) UpdateStatus(actor Actor, id uuid.UUID, req *UpdateProjectStatusRequest) (*models.Project, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Project not found")
	}
	oldStatus := project.Status
	updates := map[string]interface{}{}

	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.Progress != nil {
		updates["progress"] = clampProgress(*req.Progress)
	}
	if req.EstimatedCost != nil {
		updates["estimated_cost"] = utils.Round2(*req.EstimatedCost)
	}
	if req.FinalCost != nil {
		updates["final_cost"] = utils.Round2(*req.FinalCost)
	}
	for field, raw := range map[string]*string{"start_date": req.StartDate, "deadline": req.Deadline} {
		if raw == nil {
			continue
		}
		if *raw == "" {
			updates[field] = nil
			continue
		}
		d, err := utils.ParseDate(*raw)
		if err != nil {
			return nil, response.NewBadRequest(fmt.Sprintf("Invalid %s, expected YYYY-MM-DD", field))
		}
		updates[field] = d
	}
	if req.AssignedTo != nil {
		if *req.AssignedTo == "" {
			updates["assigned_to"] = nil
		} else {
			staffID, err := uuid.Parse(*req.AssignedTo)
			if err != nil {
				return nil, response.NewBadRequest("Invalid assigned_to")
			}
			var n int64
			if err := s.db.Model(&models.User{}).Where("id = ? AND role = ?", staffID, models.RoleAdmin).Count(&n).Error; err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, response.NewBadRequest("Assigned user must be an admin")
			}
			updates["assigned_to"] = staffID
		}
	}
	if req.Status != nil && *req.Status != oldStatus {
		updates["status"] = *req.Status
		if *req.Status == models.ProjectCompleted {
			updates["completion_date"] = utils.Today()
			updates["progress"] = 100
		}
	}
	if len(updates) == 0 {
		return nil, response.NewBadRequest("No changes provided")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&project).Updates(updates).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "project.update", "project", &project.ID,
			map[string]interface{}{"status": oldStatus}, updates)
	})
	if err != nil {
		return nil, err
	}
	if err := s.db.Preload("Client").Preload("ProjectType").Preload("AssignedUser").
		First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if project.Status != oldStatus && project.Client != nil {
		if project.Status == models.ProjectApproved {
			s.mailer.SendProjectApproved(project.Client, &project)
		}
		s.notify.Notify(project.ClientID, NotificationInput{
			Title:      "Project Status Updated",
			Message:    fmt.Sprintf("%s is now %s", project.Name, models.ProjectStatusDisplay[project.Status]),
			Type:       "project_status",
			EntityType: "project",
			EntityID:   &project.ID,
			ActionURL:  "/dashboard/projects/" + project.ID.String(),
		})
	}
	return &project, nil
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func (s *ProjectService) Milestones(actor Actor, projectID uuid.UUID) ([]models.ProjectMilestone, error) {
	if _, err := loadProjectFor(s.db, actor, projectID); err != nil {
		return nil, err
	}
	var milestones []models.ProjectMilestone
	err := s.db.Where("project_id = ?", projectID).Order("order_index").Find(&milestones).Error
	return milestones, err
}

type CreateMilestoneRequest struct {
	Title             string   `json:"title" binding:"required"`
	Description       string   `json:"description"`
	DueDate           string   `json:"due_date"`
	PaymentPercentage *float64 `json:"payment_percentage" binding:"omitempty,gte=0,lte=100"`
}

func (s *ProjectService) AddMilestone(actor Actor, projectID uuid.UUID, req *CreateMilestoneRequest) (*models.ProjectMilestone, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
		return nil, notFound(err, "Project not found")
	}
	milestone := models.ProjectMilestone{
		ProjectID:   projectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.MilestonePending,
	}
	if req.DueDate != "" {
		d, err := utils.ParseDate(req.DueDate)
		if err != nil {
			return nil, response.NewBadRequest("Invalid due_date, expected YYYY-MM-DD")
		}
		milestone.DueDate = &d
	}
	if req.PaymentPercentage != nil {
		milestone.PaymentPercentage = *req.PaymentPercentage
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var maxIndex *int
		if err := tx.Model(&models.ProjectMilestone{}).
			Where("project_id = ?", projectID).
			Select("MAX(order_index)").Scan(&maxIndex).Error; err != nil {
			return err
		}
		if maxIndex != nil {
			milestone.OrderIndex = *maxIndex + 1
		}
		if err := tx.Create(&milestone).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "milestone.create", "milestone", &milestone.ID, nil, map[string]interface{}{
			"project_id":  projectID.String(),
			"title":       milestone.Title,
			"order_index": milestone.OrderIndex,
		})
	})
	if err != nil {
		return nil, err
	}
	return &milestone, nil
}

// CompleteMilestone marks a milestone done and recomputes project progress
// as floor(completed/total*100) in the same transaction.
func (s *ProjectService) CompleteMilestone(actor Actor, projectID, milestoneID uuid.UUID) (*models.ProjectMilestone, int, error) {
	var project models.Project
	if err := s.db.Preload("Client").First(&project, "id = ?", projectID).Error; err != nil {
		return nil, 0, notFound(err, "Project not found")
	}
	var milestone models.ProjectMilestone
	if err := s.db.Where("id = ? AND project_id = ?", milestoneID, projectID).First(&milestone).Error; err != nil {
		return nil, 0, notFound(err, "Milestone not found")
	}
	if milestone.Status == models.MilestoneCompleted {
		return nil, 0, response.NewBadRequest("Milestone is already completed")
	}

	var progress int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		today := utils.Today()
		if err := tx.Model(&milestone).Updates(map[string]interface{}{
			"status":          models.MilestoneCompleted,
			"completion_date": today,
		}).Error; err != nil {
			return err
		}
		var total, completed int64
		if err := tx.Model(&models.ProjectMilestone{}).Where("project_id = ?", projectID).Count(&total).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ProjectMilestone{}).
			Where("project_id = ? AND status = ?", projectID, models.MilestoneCompleted).
			Count(&completed).Error; err != nil {
			return err
		}
		progress = milestoneProgress(completed, total)
		if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Update("progress", progress).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "milestone.complete", "milestone", &milestone.ID,
			map[string]interface{}{"status": models.MilestonePending, "project_progress": project.Progress},
			map[string]interface{}{"status": models.MilestoneCompleted, "project_progress": progress})
	})
	if err != nil {
		return nil, 0, err
	}
	if err := s.db.First(&milestone, "id = ?", milestone.ID).Error; err != nil {
		return nil, 0, err
	}

	project.Progress = progress
	if project.Client != nil {
		s.mailer.SendMilestoneCompleted(project.Client, &project, &milestone)
	}
	s.notify.Notify(project.ClientID, NotificationInput{
		Title:      "Milestone Completed",
		Message:    fmt.Sprintf("%q in %s is complete (%d%%)", milestone.Title, project.Name, progress),
		Type:       "milestone",
		EntityType: "project",
		EntityID:   &project.ID,
		ActionURL:  "/dashboard/projects/" + project.ID.String(),
	})
	return &milestone, progress, nil
}

func milestoneProgress(completed, total int64) int {
	if total == 0 {
		return 0
	}
	return int(completed * 100 / total)
}

func (s *ProjectService) Files(actor Actor, projectID uuid.UUID) ([]models.ProjectFile, error) {
	if _, err := loadProjectFor(s.db, actor, projectID); err != nil {
		return nil, err
	}
	var files []models.ProjectFile
	err := s.db.Preload("Uploader").Where("project_id = ?", projectID).Order("created_at DESC").Find(&files).Error
	return files, err
}

type UploadProjectFileRequest struct {
	File        *multipart.FileHeader
	Description string
	IsPublic    bool
}

func (s *ProjectService) UploadFile(ctx context.Context, actor Actor, projectID uuid.UUID, req *UploadProjectFileRequest) (*models.ProjectFile, error) {
	if _, err := loadProjectFor(s.db, actor, projectID); err != nil {
		return nil, err
	}
	stored, err := s.files.Save(ctx, "projects/"+projectID.String(), req.File, nil)
	if err != nil {
		return nil, err
	}
	file := models.ProjectFile{
		ProjectID:   projectID,
		UploadedBy:  actor.userRef(),
		FileName:    stored.OriginalName,
		FilePath:    stored.URL,
		FileSize:    stored.Size,
		FileType:    stored.Extension,
		MimeType:    stored.MimeType,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&file).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "file.upload", "project_file", &file.ID, nil, map[string]interface{}{
			"project_id": projectID.String(),
			"file_name":  file.FileName,
		})
	})
	if err != nil {
		s.files.RemoveRef(ctx, stored.URL)
		return nil, err
	}
	return &file, nil
}

// DeleteFile removes a project file. Admins and the uploader may delete; a
// failed storage delete is logged and the row still goes.
func (s *ProjectService) DeleteFile(ctx context.Context, actor Actor, projectID, fileID uuid.UUID) error {
	if _, err := loadProjectFor(s.db, actor, projectID); err != nil {
		return err
	}
	var file models.ProjectFile
	if err := s.db.Where("id = ? AND project_id = ?", fileID, projectID).First(&file).Error; err != nil {
		return notFound(err, "File not found")
	}
	if !actor.IsAdmin() && (file.UploadedBy == nil || *file.UploadedBy != actor.UserID) {
		return response.NewForbidden("Access denied")
	}
	s.files.RemoveRef(ctx, file.FilePath)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&file).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "file.delete", "project_file", &file.ID,
			map[string]interface{}{"file_name": file.FileName}, nil)
	})
}

type ProjectStats struct {
	TotalProjects    int64   `json:"total_projects"`
	Submitted        int64   `json:"submitted"`
	InProgress       int64   `json:"in_progress"`
	Completed        int64   `json:"completed"`
	Cancelled        int64   `json:"cancelled"`
	TotalRevenue     float64 `json:"total_revenue"`
	EstimatedRevenue float64 `json:"estimated_revenue"`
}

func (s *ProjectService) Stats() (*ProjectStats, error) {
	var st ProjectStats
	projects := func() *gorm.DB { return s.db.Model(&models.Project{}) }
	steps := []*gorm.DB{
		projects().Count(&st.TotalProjects),
		projects().Where("status = ?", models.ProjectSubmitted).Count(&st.Submitted),
		projects().Where("status = ?", models.ProjectInProgress).Count(&st.InProgress),
		projects().Where("status = ?", models.ProjectCompleted).Count(&st.Completed),
		projects().Where("status = ?", models.ProjectCancelled).Count(&st.Cancelled),
		projects().Where("status = ?", models.ProjectCompleted).
			Select("COALESCE(SUM(final_cost), 0)").Scan(&st.TotalRevenue),
		projects().Where("status IN ?", []string{models.ProjectApproved, models.ProjectInProgress}).
			Select("COALESCE(SUM(estimated_cost), 0)").Scan(&st.EstimatedRevenue),
	}
	for _, step := range steps {
		if step.Error != nil {
			return nil, step.Error
		}
	}
	st.TotalRevenue = utils.Round2(st.TotalRevenue)
	st.EstimatedRevenue = utils.Round2(st.EstimatedRevenue)
	return &st, nil
}
