package services

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// createAccount inserts user together with a default profile.
func createAccount(tx *gorm.DB, user *models.User, timezone string) error {
	if err := tx.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.NewConflict("Email already registered")
		}
		return err
	}
	profile := models.UserProfile{UserID: user.ID, Timezone: timezone}
	if err := tx.Create(&profile).Error; err != nil {
		return err
	}
	user.Profile = &profile
	return nil
}

type UserService struct {
	db     *gorm.DB
	files  *FileService
	notify *NotificationService
}

func NewUserService(db *gorm.DB, files *FileService, notify *NotificationService) *UserService {
	return &UserService{db: db, files: files, notify: notify}
}

func (s *UserService) load(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "User not found")
	}
	return &user, nil
}

// profileOf returns the user's profile, creating it with defaults when missing.
func (s *UserService) profileOf(userID uuid.UUID) (*models.UserProfile, error) {
	profile := models.UserProfile{UserID: userID}
	err := s.db.Where(models.UserProfile{UserID: userID}).FirstOrCreate(&profile).Error
	return &profile, err
}

func (s *UserService) Profile(actor Actor) (*models.User, *models.UserProfile, error) {
	user, err := s.load(actor.UserID)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.profileOf(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, profile, nil
}

type UpdateProfileRequest struct {
	FirstName               *string                `json:"first_name"`
	LastName                *string                `json:"last_name"`
	Company                 *string                `json:"company"`
	Phone                   *string                `json:"phone"`
	Bio                     *string                `json:"bio"`
	Website                 *string                `json:"website"`
	Timezone                *string                `json:"timezone"`
	NotificationPreferences map[string]interface{} `json:"notification_preferences"`
}

func (s *UserService) UpdateProfile(actor Actor, req *UpdateProfileRequest) (*models.User, *models.UserProfile, error) {
	user, profile, err := s.Profile(actor)
	if err != nil {
		return nil, nil, err
	}

	userUpdates := map[string]interface{}{}
	if req.FirstName != nil {
		if strings.TrimSpace(*req.FirstName) == "" {
			return nil, nil, response.NewBadRequest("First name cannot be empty")
		}
		userUpdates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		if strings.TrimSpace(*req.LastName) == "" {
			return nil, nil, response.NewBadRequest("Last name cannot be empty")
		}
		userUpdates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.Company != nil {
		userUpdates["company"] = *req.Company
	}
	if req.Phone != nil {
		if *req.Phone != "" && !utils.ValidPhone(*req.Phone) {
			return nil, nil, response.NewBadRequest("Invalid phone number format")
		}
		userUpdates["phone"] = *req.Phone
	}

	profileUpdates := map[string]interface{}{}
	if req.Bio != nil {
		profileUpdates["bio"] = *req.Bio
	}
	if req.Website != nil {
		profileUpdates["website"] = *req.Website
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, nil, response.NewBadRequest("Invalid timezone")
		}
		profileUpdates["timezone"] = *req.Timezone
	}
	if req.NotificationPreferences != nil {
		prefs := models.DefaultNotificationPreferences()
		for k, v := range profile.NotificationPreferences {
			prefs[k] = v
		}
		for k, v := range req.NotificationPreferences {
			prefs[k] = v
		}
		profileUpdates["notification_preferences"] = datatypes.JSONMap(prefs)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(userUpdates) > 0 {
			if err := tx.Model(user).Updates(userUpdates).Error; err != nil {
				return err
			}
		}
		if len(profileUpdates) > 0 {
			if err := tx.Model(profile).Updates(profileUpdates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return s.Profile(actor)
}

// UploadAvatar stores a new avatar and removes the previous object.
func (s *UserService) UploadAvatar(ctx context.Context, actor Actor, fh *multipart.FileHeader) (*models.UserProfile, error) {
	profile, err := s.profileOf(actor.UserID)
	if err != nil {
		return nil, err
	}
	stored, err := s.files.Save(ctx, "avatars", fh, utils.ImageExtensions)
	if err != nil {
		return nil, err
	}
	previous := profile.AvatarURL
	if err := s.db.Model(profile).Update("avatar_url", stored.URL).Error; err != nil {
		s.files.RemoveRef(ctx, stored.URL)
		return nil, err
	}
	s.files.RemoveRef(ctx, previous)
	return profile, nil
}

type IdentityDocuments struct {
	FrontID   *multipart.FileHeader
	BackID    *multipart.FileHeader
	Signature *multipart.FileHeader
}

// SubmitIdentity stores the three KYC images. A resubmission replaces the
// previous images and resets the review.
func (s *UserService) SubmitIdentity(ctx context.Context, actor Actor, docs *IdentityDocuments) (*models.IdentityVerification, error) {
	if docs.FrontID == nil || docs.BackID == nil || docs.Signature == nil {
		return nil, response.NewBadRequest("front_id, back_id and signature images are required")
	}
	var existing models.IdentityVerification
	err := s.db.Where("user_id = ?", actor.UserID).First(&existing).Error
	hasExisting := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if hasExisting && existing.IsVerified() {
		return nil, response.NewBadRequest("Identity already verified")
	}

	var saved []string
	save := func(folder string, fh *multipart.FileHeader) (string, error) {
		stored, err := s.files.Save(ctx, folder, fh, utils.ImageExtensions)
		if err != nil {
			return "", err
		}
		saved = append(saved, stored.URL)
		return stored.URL, nil
	}
	rollback := func() {
		for _, ref := range saved {
			s.files.RemoveRef(ctx, ref)
		}
	}
	front, err := save("identity/front_id", docs.FrontID)
	if err != nil {
		rollback()
		return nil, err
	}
	back, err := save("identity/back_id", docs.BackID)
	if err != nil {
		rollback()
		return nil, err
	}
	sig, err := save("identity/signatures", docs.Signature)
	if err != nil {
		rollback()
		return nil, err
	}

	kyc := existing
	old := existing.ImageURLs()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if hasExisting {
			if err := tx.Model(&kyc).Updates(map[string]interface{}{
				"front_id_image_url":  front,
				"back_id_image_url":   back,
				"signature_image_url": sig,
				"verification_status": models.VerificationPending,
				"verified_at":         nil,
				"verified_by":         nil,
				"rejection_reason":    "",
			}).Error; err != nil {
				return err
			}
		} else {
			kyc = models.IdentityVerification{
				UserID:             actor.UserID,
				FrontIDImageURL:    front,
				BackIDImageURL:     back,
				SignatureImageURL:  sig,
				VerificationStatus: models.VerificationPending,
			}
			if err := tx.Create(&kyc).Error; err != nil {
				return err
			}
		}
		return logActivity(tx, actor, "identity.submit", "identity_verification", &kyc.ID, nil,
			map[string]interface{}{"verification_status": models.VerificationPending})
	})
	if err != nil {
		rollback()
		return nil, err
	}
	if hasExisting {
		for _, ref := range old {
			s.files.RemoveRef(ctx, ref)
		}
	}
	if err := s.db.First(&kyc, "id = ?", kyc.ID).Error; err != nil {
		return nil, err
	}

	s.notify.NotifyAdmins(NotificationInput{
		Title:      "Identity Verification Submitted",
		Message:    "A client submitted identity documents for review",
		Type:       "verification_submitted",
		EntityType: "user",
		EntityID:   &actor.UserID,
		ActionURL:  "/admin/users/" + actor.UserID.String(),
	})
	return &kyc, nil
}

// Identity returns nil without error when nothing was submitted.
func (s *UserService) Identity(actor Actor) (*models.IdentityVerification, error) {
	var kyc models.IdentityVerification
	err := s.db.Where("user_id = ?", actor.UserID).First(&kyc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &kyc, nil
}

type UserListRequest struct {
	Search string `form:"search"`
	Role   string `form:"role"`
	Status string `form:"status"`
}

// userFilter applies the shared admin list filters.
func userFilter(query *gorm.DB, req *UserListRequest) *gorm.DB {
	if req.Search != "" {
		like := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(company) LIKE ?",
			like, like, like, like)
	}
	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}
	switch req.Status {
	case "active":
		query = query.Where("is_active = ?", true)
	case "inactive":
		query = query.Where("is_active = ?", false)
	case "verified":
		query = query.Where("is_verified = ?", true)
	case "unverified":
		query = query.Where("is_verified = ?", false)
	}
	return query
}

func (s *UserService) List(req *UserListRequest, p pagination.Params) ([]models.User, pagination.Meta, error) {
	query := userFilter(s.db.Model(&models.User{}), req)
	return pagination.Paginate[models.User](query, p,
		pagination.OrderBy("created_at DESC"), pagination.Preload("Profile"))
}

func (s *UserService) Get(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Profile").First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "User not found")
	}
	return &user, nil
}

type UpdateUserStatusRequest struct {
	IsActive   *bool   `json:"is_active"`
	IsVerified *bool   `json:"is_verified"`
	Role       *string `json:"role"`
}

// UpdateStatus toggles account flags. Unknown roles are ignored.
func (s *UserService) UpdateStatus(actor Actor, id uuid.UUID, req *UpdateUserStatusRequest) (*models.User, error) {
	user, err := s.load(id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.IsVerified != nil {
		updates["is_verified"] = *req.IsVerified
	}
	if req.Role != nil && (*req.Role == models.RoleClient || *req.Role == models.RoleAdmin) {
		updates["role"] = *req.Role
	}
	if len(updates) == 0 {
		return user, nil
	}
	old := map[string]interface{}{"is_active": user.IsActive, "is_verified": user.IsVerified, "role": user.Role}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Updates(updates).Error; err != nil {
			return err
		}
		if active, ok := updates["is_active"].(bool); ok && !active {
			if err := tx.Model(&models.UserSession{}).Where("user_id = ?", user.ID).Update("is_active", false).Error; err != nil {
				return err
			}
		}
		return logActivity(tx, actor, "user.status_update", "user", &user.ID, old, updates)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}
