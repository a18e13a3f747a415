package services

import (
	"math"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminService backs the staff console: dashboard, user review, catalog and
// maintenance actions.
type AdminService struct {
	db       *gorm.DB
	rules    *BusinessRules
	settings *SystemConfigService
	holidays *HolidayService
	notify   *NotificationService
}

func NewAdminService(db *gorm.DB, rules *BusinessRules, settings *SystemConfigService, holidays *HolidayService, notify *NotificationService) *AdminService {
	return &AdminService{db: db, rules: rules, settings: settings, holidays: holidays, notify: notify}
}

type Dashboard struct {
	Users          DashboardUsers     `json:"users"`
	Projects       DashboardProjects  `json:"projects"`
	Revenue        DashboardRevenue   `json:"revenue"`
	Contracts      DashboardContracts `json:"contracts"`
	Alerts         DashboardAlerts    `json:"alerts"`
	RecentActivity RecentActivity     `json:"recent_activity"`
}

type DashboardUsers struct {
	TotalClients     int64   `json:"total_clients"`
	NewThisWeek      int64   `json:"new_this_week"`
	Verified         int64   `json:"verified"`
	VerificationRate float64 `json:"verification_rate"`
}

type DashboardProjects struct {
	Total          int64   `json:"total"`
	Active         int64   `json:"active"`
	Completed      int64   `json:"completed"`
	NewThisWeek    int64   `json:"new_this_week"`
	CompletionRate float64 `json:"completion_rate"`
}

type DashboardRevenue struct {
	Total    float64 `json:"total"`
	Monthly  float64 `json:"monthly"`
	Pending  float64 `json:"pending"`
	Currency string  `json:"currency"`
}

type DashboardContracts struct {
	Active            int64 `json:"active"`
	PendingSignatures int64 `json:"pending_signatures"`
}

type DashboardAlerts struct {
	OverduePayments  int64 `json:"overdue_payments"`
	ExpiredContracts int64 `json:"expired_contracts"`
}

type RecentActivity struct {
	Projects []models.Project `json:"projects"`
	Users    []models.User    `json:"users"`
	Payments []models.Payment `json:"payments"`
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

func (s *AdminService) Dashboard() (*Dashboard, error) {
	var d Dashboard
	now := time.Now()
	weekAgo := now.AddDate(0, 0, -7)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	today := utils.Today()

	clients := func() *gorm.DB { return s.db.Model(&models.User{}).Where("role = ?", models.RoleClient) }
	projects := func() *gorm.DB { return s.db.Model(&models.Project{}) }
	payments := func() *gorm.DB { return s.db.Model(&models.Payment{}) }
	contracts := func() *gorm.DB { return s.db.Model(&models.Contract{}) }

	steps := []*gorm.DB{
		clients().Count(&d.Users.TotalClients),
		clients().Where("created_at >= ?", weekAgo).Count(&d.Users.NewThisWeek),
		clients().Where("is_verified = ?", true).Count(&d.Users.Verified),

		projects().Count(&d.Projects.Total),
		projects().Where("status IN ?", []string{models.ProjectApproved, models.ProjectInProgress}).Count(&d.Projects.Active),
		projects().Where("status = ?", models.ProjectCompleted).Count(&d.Projects.Completed),
		projects().Where("created_at >= ?", weekAgo).Count(&d.Projects.NewThisWeek),

		payments().Where("status = ?", models.PaymentCompleted).Select("COALESCE(SUM(amount), 0)").Scan(&d.Revenue.Total),
		payments().Where("status = ? AND paid_date >= ?", models.PaymentCompleted, monthStart).Select("COALESCE(SUM(amount), 0)").Scan(&d.Revenue.Monthly),
		payments().Where("status = ?", models.PaymentPending).Select("COALESCE(SUM(amount), 0)").Scan(&d.Revenue.Pending),
		payments().Where("status = ? AND due_date < ?", models.PaymentPending, today).Count(&d.Alerts.OverduePayments),

		contracts().Where("status = ?", models.ContractActive).Count(&d.Contracts.Active),
		contracts().Where("status = ?", models.ContractSent).Count(&d.Contracts.PendingSignatures),
		contracts().Where("status IN ? AND expiry_date IS NOT NULL AND expiry_date < ?",
			[]string{models.ContractDraft, models.ContractSent}, today).Count(&d.Alerts.ExpiredContracts),

		s.db.Preload("Client").Order("created_at DESC").Limit(5).Find(&d.RecentActivity.Projects),
		s.db.Order("created_at DESC").Limit(5).Find(&d.RecentActivity.Users),
		s.db.Preload("Project").Order("created_at DESC").Limit(5).Find(&d.RecentActivity.Payments),
	}
	for _, step := range steps {
		if step.Error != nil {
			return nil, step.Error
		}
	}
	d.Users.VerificationRate = percent(d.Users.Verified, d.Users.TotalClients)
	d.Projects.CompletionRate = percent(d.Projects.Completed, d.Projects.Total)
	d.Revenue.Total = utils.Round2(d.Revenue.Total)
	d.Revenue.Monthly = utils.Round2(d.Revenue.Monthly)
	d.Revenue.Pending = utils.Round2(d.Revenue.Pending)
	d.Revenue.Currency = s.rules.Currency()
	return &d, nil
}

// AdminUser is a user row annotated for the staff console.
type AdminUser struct {
	models.User
	ProjectCount       int64  `json:"project_count"`
	VerificationStatus string `json:"verification_status"`
}

func (u AdminUser) MarshalJSON() ([]byte, error) {
	return marshalWith(u.User, map[string]interface{}{
		"project_count":       u.ProjectCount,
		"verification_status": u.VerificationStatus,
	})
}

func (s *AdminService) annotate(users []models.User) ([]AdminUser, error) {
	out := make([]AdminUser, len(users))
	if len(users) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	var counts []struct {
		ClientID uuid.UUID
		Count    int64
	}
	if err := s.db.Model(&models.Project{}).
		Select("client_id, COUNT(*) AS count").
		Where("client_id IN ?", ids).
		Group("client_id").Scan(&counts).Error; err != nil {
		return nil, err
	}
	byUser := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byUser[c.ClientID] = c.Count
	}

	var kycs []models.IdentityVerification
	if err := s.db.Where("user_id IN ?", ids).Find(&kycs).Error; err != nil {
		return nil, err
	}
	status := make(map[uuid.UUID]string, len(kycs))
	for _, k := range kycs {
		status[k.UserID] = k.VerificationStatus
	}

	for i, u := range users {
		vs := status[u.ID]
		if vs == "" {
			vs = "not_submitted"
		}
		out[i] = AdminUser{User: u, ProjectCount: byUser[u.ID], VerificationStatus: vs}
	}
	return out, nil
}

func (s *AdminService) Users(req *UserListRequest, p pagination.Params) ([]AdminUser, pagination.Meta, error) {
	users, meta, err := pagination.Paginate[models.User](userFilter(s.db.Model(&models.User{}), req), p,
		pagination.OrderBy("created_at DESC"))
	if err != nil {
		return nil, meta, err
	}
	rows, err := s.annotate(users)
	return rows, meta, err
}

type AdminUserDetail struct {
	User         AdminUser                    `json:"user"`
	Profile      *models.UserProfile          `json:"profile"`
	Verification *models.IdentityVerification `json:"identity_verification"`
	Projects     []models.Project             `json:"projects"`
}

func (s *AdminService) User(id uuid.UUID) (*AdminUserDetail, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "User not found")
	}
	rows, err := s.annotate([]models.User{user})
	if err != nil {
		return nil, err
	}
	detail := &AdminUserDetail{User: rows[0]}
	var profile models.UserProfile
	if err := s.db.Where("user_id = ?", id).First(&profile).Error; err == nil {
		detail.Profile = &profile
	}
	var kyc models.IdentityVerification
	if err := s.db.Where("user_id = ?", id).First(&kyc).Error; err == nil {
		detail.Verification = &kyc
	}
	if err := s.db.Preload("ProjectType").Where("client_id = ?", id).Order("created_at DESC").Find(&detail.Projects).Error; err != nil {
		return nil, err
	}
	return detail, nil
}

type AdminUserStatusRequest struct {
	IsActive *bool  `json:"is_active"`
	Reason   string `json:"reason"`
}

func (s *AdminService) UpdateUserStatus(actor Actor, id uuid.UUID, req *AdminUserStatusRequest) (*models.User, error) {
	if req.IsActive == nil {
		return nil, response.NewBadRequest("is_active is required")
	}
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "User not found")
	}
	old := user.IsActive
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("is_active", *req.IsActive).Error; err != nil {
			return err
		}
		if !*req.IsActive {
			if err := tx.Model(&models.UserSession{}).Where("user_id = ?", user.ID).Update("is_active", false).Error; err != nil {
				return err
			}
		}
		return logActivity(tx, actor, "user.status_update", "user", &user.ID,
			map[string]interface{}{"is_active": old},
			map[string]interface{}{"is_active": *req.IsActive, "reason": req.Reason})
	})
	if err != nil {
		return nil, err
	}
	user.IsActive = *req.IsActive

	state := "deactivated"
	if user.IsActive {
		state = "activated"
	}
	msg := "Your account has been " + state
	if req.Reason != "" {
		msg += ": " + req.Reason
	}
	s.notify.Notify(user.ID, NotificationInput{
		Title:      "Account Status Updated",
		Message:    msg,
		Type:       "account_status",
		EntityType: "user",
		EntityID:   &user.ID,
	})
	return &user, nil
}

type VerificationDecisionRequest struct {
	Status          string `json:"status" binding:"required,oneof=pending verified rejected"`
	RejectionReason string `json:"rejection_reason"`
}

func (s *AdminService) UpdateVerification(actor Actor, userID uuid.UUID, req *VerificationDecisionRequest) (*models.IdentityVerification, error) {
	var kyc models.IdentityVerification
	if err := s.db.Where("user_id = ?", userID).First(&kyc).Error; err != nil {
		return nil, notFound(err, "Identity verification not found")
	}
	old := kyc.VerificationStatus
	updates := map[string]interface{}{
		"verification_status": req.Status,
		"rejection_reason":    req.RejectionReason,
	}
	if req.Status == models.VerificationVerified {
		updates["verified_at"] = time.Now()
		updates["verified_by"] = actor.UserID
	} else {
		updates["verified_at"] = nil
		updates["verified_by"] = nil
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&kyc).Updates(updates).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "identity.review", "identity_verification", &kyc.ID,
			map[string]interface{}{"verification_status": old},
			map[string]interface{}{"verification_status": req.Status, "rejection_reason": req.RejectionReason})
	})
	if err != nil {
		return nil, err
	}
	if err := s.db.First(&kyc, "id = ?", kyc.ID).Error; err != nil {
		return nil, err
	}

	switch req.Status {
	case models.VerificationVerified:
		s.notify.Notify(userID, NotificationInput{
			Title:      "Identity Verified",
			Message:    "Your identity has been verified. You can now sign contracts.",
			Type:       "verification_approved",
			EntityType: "identity_verification",
			EntityID:   &kyc.ID,
			ActionURL:  "/dashboard/profile",
		})
	case models.VerificationRejected:
		msg := "Your identity verification was rejected"
		if req.RejectionReason != "" {
			msg += ": " + req.RejectionReason
		}
		s.notify.Notify(userID, NotificationInput{
			Title:      "Identity Verification Rejected",
			Message:    msg,
			Type:       "verification_rejected",
			EntityType: "identity_verification",
			EntityID:   &kyc.ID,
			ActionURL:  "/dashboard/profile",
		})
	}
	return &kyc, nil
}

func (s *AdminService) ProjectTypes() ([]models.ProjectType, error) {
	var types []models.ProjectType
	err := s.db.Order("name").Find(&types).Error
	return types, err
}

type ProjectTypeRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
	IsActive    *bool   `json:"is_active"`
}

func (s *AdminService) CreateProjectType(actor Actor, req *ProjectTypeRequest) (*models.ProjectType, error) {
	if req.Name == nil || *req.Name == "" {
		return nil, response.NewBadRequest("Name is required")
	}
	pt := models.ProjectType{Name: *req.Name, IsActive: true}
	if req.Description != nil {
		pt.Description = *req.Description
	}
	if req.Icon != nil {
		pt.Icon = *req.Icon
	}
	if req.Color != nil {
		pt.Color = *req.Color
	}
	if req.IsActive != nil {
		pt.IsActive = *req.IsActive
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&pt).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "project_type.create", "project_type", &pt.ID, nil, map[string]interface{}{"name": pt.Name})
	})
	if err != nil {
		return nil, err
	}
	return &pt, nil
}

func (s *AdminService) UpdateProjectType(actor Actor, id uuid.UUID, req *ProjectTypeRequest) (*models.ProjectType, error) {
	var pt models.ProjectType
	if err := s.db.First(&pt, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Project type not found")
	}
	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, response.NewBadRequest("Name cannot be empty")
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Icon != nil {
		updates["icon"] = *req.Icon
	}
	if req.Color != nil {
		updates["color"] = *req.Color
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return &pt, nil
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&pt).Updates(updates).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "project_type.update", "project_type", &pt.ID, nil, updates)
	})
	if err != nil {
		return nil, err
	}
	return &pt, s.db.First(&pt, "id = ?", id).Error
}

type CleanupRequest struct {
	Type string `json:"type"`
	Days *int   `json:"days"`
}

// Cleanup runs an on-demand purge. Only notifications are supported.
func (s *AdminService) Cleanup(actor Actor, req *CleanupRequest) (int64, error) {
	if req.Type == "" {
		req.Type = "notifications"
	}
	if req.Type != "notifications" {
		return 0, response.NewBadRequest("Invalid cleanup type")
	}
	days := s.rules.RetentionDays()
	if req.Days != nil {
		days = *req.Days
	}
	deleted, err := s.notify.Purge(days)
	if err != nil {
		return 0, err
	}
	if err := logActivity(s.db, actor, "system.cleanup", "system", nil, nil, map[string]interface{}{
		"type":          req.Type,
		"days":          days,
		"deleted_count": deleted,
	}); err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *AdminService) Settings() Settings {
	return s.rules.Settings()
}

func (s *AdminService) UpdateSettings(actor Actor, req *UpdateSettingsRequest) (Settings, error) {
	before := s.rules.Settings()
	if err := s.settings.UpdateSettings(req, s.holidays); err != nil {
		return Settings{}, err
	}
	after := s.rules.Settings()
	if err := logActivity(s.db, actor, "system.settings_update", "system", nil,
		map[string]interface{}{"tax_rate": before.TaxRate, "notification_retention_days": before.NotificationRetentionDays,
			"business_day_due_dates": before.BusinessDayDueDates, "holiday_country": before.HolidayCountry},
		map[string]interface{}{"tax_rate": after.TaxRate, "notification_retention_days": after.NotificationRetentionDays,
			"business_day_due_dates": after.BusinessDayDueDates, "holiday_country": after.HolidayCountry},
	); err != nil {
		return Settings{}, err
	}
	return after, nil
}

func (s *AdminService) HolidayCountries() []CountryInfo {
	return s.holidays.GetSupportedCountries()
}
