package services

import (
	"errors"
	"strings"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"gorm.io/gorm"
)

const resetTokenTTL = time.Hour

type AuthService struct {
	db          *gorm.DB
	ldapService *LDAPService
	jwtConfig   *config.JWTConfig
	mailer      *Mailer
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, ldapService *LDAPService, mailer *Mailer) *AuthService {
	return &AuthService{
		db:          db,
		ldapService: ldapService,
		jwtConfig:   jwtCfg,
		mailer:      mailer,
	}
}

// TokenPair is issued on login, registration and refresh. The refresh token
// is the session token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func (s *AuthService) accessHours() int {
	if s.jwtConfig.AccessExpireHour > 0 {
		return s.jwtConfig.AccessExpireHour
	}
	return 24
}

func (s *AuthService) refreshHours() int {
	if s.jwtConfig.RefreshExpireHour > 0 {
		return s.jwtConfig.RefreshExpireHour
	}
	return 720
}

// newSession stores a session for user and returns the token pair.
func (s *AuthService) newSession(tx *gorm.DB, user *models.User, actor Actor) (*TokenPair, *models.UserSession, error) {
	access, err := utils.GenerateToken(user.ID, user.Email, user.Role, s.accessHours())
	if err != nil {
		return nil, nil, err
	}
	refresh, err := utils.RandomToken()
	if err != nil {
		return nil, nil, err
	}
	session := models.UserSession{
		UserID:    user.ID,
		TokenHash: utils.HashToken(refresh),
		ExpiresAt: time.Now().Add(time.Duration(s.refreshHours()) * time.Hour),
		IPAddress: actor.IP,
		UserAgent: truncate(actor.UserAgent, 255),
		IsActive:  true,
	}
	if err := tx.Create(&session).Error; err != nil {
		return nil, nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: session.ExpiresAt}, &session, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Company   string `json:"company"`
	Phone     string `json:"phone"`
	Timezone  string `json:"timezone"`
}

type RegisterResult struct {
	User              *models.User
	Tokens            *TokenPair
	GeneratedPassword string
}

func (s *AuthService) Register(actor Actor, req *RegisterRequest) (*RegisterResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !utils.ValidEmail(email) {
		return nil, response.NewBadRequest("Invalid email format")
	}
	if req.Phone != "" && !utils.ValidPhone(req.Phone) {
		return nil, response.NewBadRequest("Invalid phone number format")
	}

	password := req.Password
	generated := ""
	if password == "" {
		var err error
		if generated, err = utils.RandomPassword(12); err != nil {
			return nil, err
		}
		password = generated
	} else if len(password) < 8 {
		return nil, response.NewBadRequest("Password must be at least 8 characters long")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	verifyToken, err := utils.RandomToken()
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:             email,
		PasswordHash:      hash,
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		Company:           req.Company,
		Phone:             req.Phone,
		Role:              models.RoleClient,
		AuthType:          models.AuthTypeLocal,
		IsActive:          true,
		VerificationToken: &verifyToken,
	}
	var tokens *TokenPair
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return response.NewConflict("Email already registered")
		}
		if err := createAccount(tx, &user, req.Timezone); err != nil {
			return err
		}
		tokens, _, err = s.newSession(tx, &user, actor)
		if err != nil {
			return err
		}
		actor.UserID = user.ID
		return logActivity(tx, actor, "user.register", "user", &user.ID, nil, map[string]interface{}{"email": email})
	})
	if err != nil {
		return nil, err
	}

	s.mailer.SendWelcome(&user, generated)
	return &RegisterResult{User: &user, Tokens: tokens, GeneratedPassword: generated}, nil
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	AuthType string `json:"auth_type"` // local, ldap
}

type LoginResult struct {
	User   *models.User
	Tokens *TokenPair
}

func (s *AuthService) Login(actor Actor, req *LoginRequest) (*LoginResult, error) {
	if req.AuthType == "" {
		req.AuthType = models.AuthTypeLocal
	}

	var user *models.User
	var err error
	switch req.AuthType {
	case models.AuthTypeLocal:
		user, err = s.localAuth(req.Email, req.Password)
	case models.AuthTypeLDAP:
		user, err = s.ldapAuth(req.Email, req.Password)
	default:
		return nil, response.NewBadRequest("Invalid auth type")
	}
	if err != nil {
		return nil, err
	}

	var tokens *TokenPair
	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(user).Update("last_login", now).Error; err != nil {
			return err
		}
		user.LastLogin = &now
		tokens, _, err = s.newSession(tx, user, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens}, nil
}

func (s *AuthService) localAuth(email, password string) (*models.User, error) {
	var user models.User
	err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewUnauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if user.AuthType != models.AuthTypeLocal || !utils.CheckPassword(password, user.PasswordHash) {
		return nil, response.NewUnauthorized("Invalid email or password")
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("Account is deactivated")
	}
	if utils.NeedsRehash(user.PasswordHash) {
		if hash, err := utils.HashPassword(password); err == nil {
			if err := s.db.Model(&user).Update("password_hash", hash).Error; err != nil {
				logger.Warnf("[Auth] rehash for %s failed: %v", user.Email, err)
			}
		}
	}
	return &user, nil
}

// ldapAuth binds against the directory and provisions staff on first login.
func (s *AuthService) ldapAuth(username, password string) (*models.User, error) {
	if !s.ldapService.Enabled() {
		return nil, response.NewBadRequest("LDAP authentication is not enabled")
	}
	ldapUser, err := s.ldapService.Authenticate(username, password)
	if err != nil {
		logger.Warnf("[Auth] LDAP login for %s failed: %v", username, err)
		return nil, response.NewUnauthorized("Invalid email or password")
	}
	if ldapUser.Email == "" {
		return nil, response.NewUnauthorized("Directory account has no email address")
	}

	var user models.User
	err = s.db.Where("email = ?", ldapUser.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// The password column is not used for directory accounts.
		placeholder, err := utils.RandomToken()
		if err != nil {
			return nil, err
		}
		hash, err := utils.HashPassword(placeholder)
		if err != nil {
			return nil, err
		}
		user = models.User{
			Email:        ldapUser.Email,
			PasswordHash: hash,
			FirstName:    firstNonEmpty(ldapUser.FirstName, ldapUser.Username),
			LastName:     ldapUser.LastName,
			Role:         models.RoleAdmin,
			AuthType:     models.AuthTypeLDAP,
			IsActive:     true,
			IsVerified:   true,
		}
		if err := s.db.Transaction(func(tx *gorm.DB) error { return createAccount(tx, &user, "") }); err != nil {
			return nil, err
		}
		logger.Infof("[Auth] provisioned LDAP user %s", user.Email)
	} else if err != nil {
		return nil, err
	}

	if user.AuthType != models.AuthTypeLDAP {
		return nil, response.NewUnauthorized("Invalid email or password")
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("Account is deactivated")
	}
	return &user, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Refresh rotates the session named by refreshToken.
func (s *AuthService) Refresh(actor Actor, refreshToken string) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, response.NewUnauthorized("Refresh token required")
	}

	var stored models.UserSession
	err := s.db.Where("token_hash = ?", utils.HashToken(refreshToken)).First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewUnauthorized("Invalid refresh token")
	}
	if err != nil {
		return nil, err
	}
	if !stored.IsActive {
		return nil, response.NewUnauthorized("Refresh token revoked")
	}
	if !stored.Usable(time.Now()) {
		return nil, response.NewUnauthorized("Refresh token expired")
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", stored.UserID).Error; err != nil {
		return nil, notFound(err, "User not found")
	}
	if !user.IsActive {
		return nil, response.NewNotFound("User not found")
	}

	var tokens *TokenPair
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var session *models.UserSession
		tokens, session, err = s.newSession(tx, &user, actor)
		if err != nil {
			return err
		}
		res := tx.Model(&models.UserSession{}).
			Where("id = ? AND is_active = ?", stored.ID, true).
			Updates(map[string]interface{}{"is_active": false, "replaced_by_id": session.ID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewUnauthorized("Refresh token revoked")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: &user, Tokens: tokens}, nil
}

// Logout deactivates the session for token. Unknown tokens are ignored.
func (s *AuthService) Logout(token string) error {
	if token == "" {
		return nil
	}
	return s.db.Model(&models.UserSession{}).
		Where("token_hash = ? AND is_active = ?", utils.HashToken(token), true).
		Update("is_active", false).Error
}

// ForgotPassword issues a reset token when the email is known. Callers reply
// with the same message either way.
func (s *AuthService) ForgotPassword(email string) error {
	var user models.User
	err := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !user.IsActive || user.AuthType != models.AuthTypeLocal {
		return nil
	}
	token, err := utils.RandomToken()
	if err != nil {
		return err
	}
	expires := time.Now().Add(resetTokenTTL)
	if err := s.db.Model(&user).Updates(map[string]interface{}{
		"reset_token":         token,
		"reset_token_expires": expires,
	}).Error; err != nil {
		return err
	}
	s.mailer.SendPasswordReset(&user, token)
	return nil
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (s *AuthService) ResetPassword(actor Actor, req *ResetPasswordRequest) error {
	if problem := utils.PasswordProblem(req.NewPassword); problem != "" {
		return response.NewBadRequest(problem)
	}
	var user models.User
	err := s.db.Where("reset_token = ?", req.Token).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewBadRequest("Invalid or expired reset token")
	}
	if err != nil {
		return err
	}
	if user.ResetTokenExpires == nil || time.Now().After(*user.ResetTokenExpires) {
		return response.NewBadRequest("Invalid or expired reset token")
	}
	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Updates(map[string]interface{}{
			"password_hash":       hash,
			"reset_token":         nil,
			"reset_token_expires": nil,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.UserSession{}).Where("user_id = ?", user.ID).Update("is_active", false).Error; err != nil {
			return err
		}
		actor.UserID = user.ID
		return logActivity(tx, actor, "user.password_reset", "user", &user.ID, nil, nil)
	})
}

func (s *AuthService) VerifyEmail(token string) (*models.User, error) {
	if token == "" {
		return nil, response.NewBadRequest("Invalid verification token")
	}
	var user models.User
	err := s.db.Where("verification_token = ?", token).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewBadRequest("Invalid verification token")
	}
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(&user).Updates(map[string]interface{}{
		"is_verified":        true,
		"verification_token": nil,
	}).Error; err != nil {
		return nil, err
	}
	user.IsVerified = true
	return &user, nil
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	SessionToken    string `json:"session_token"`
}

// ChangePassword keeps the session named in the request and ends all others.
func (s *AuthService) ChangePassword(actor Actor, req *ChangePasswordRequest) error {
	var user models.User
	if err := s.db.First(&user, "id = ?", actor.UserID).Error; err != nil {
		return notFound(err, "User not found")
	}
	if user.AuthType != models.AuthTypeLocal {
		return response.NewBadRequest("LDAP users cannot change password here")
	}
	if !utils.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		return response.NewBadRequest("Current password is incorrect")
	}
	if problem := utils.PasswordProblem(req.NewPassword); problem != "" {
		return response.NewBadRequest(problem)
	}
	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password_hash", hash).Error; err != nil {
			return err
		}
		sessions := tx.Model(&models.UserSession{}).Where("user_id = ?", user.ID)
		if req.SessionToken != "" {
			sessions = sessions.Where("token_hash <> ?", utils.HashToken(req.SessionToken))
		}
		if err := sessions.Update("is_active", false).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "user.password_change", "user", &user.ID, nil, nil)
	})
}

type MeResult struct {
	User     *models.User
	Profile  *models.UserProfile
	Identity *models.IdentityVerification
}

func (s *AuthService) Me(actor Actor) (*MeResult, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", actor.UserID).Error; err != nil {
		return nil, notFound(err, "User not found")
	}
	out := &MeResult{User: &user}
	var profile models.UserProfile
	if err := s.db.Where("user_id = ?", user.ID).First(&profile).Error; err == nil {
		out.Profile = &profile
	}
	var kyc models.IdentityVerification
	if err := s.db.Where("user_id = ?", user.ID).First(&kyc).Error; err == nil {
		out.Identity = &kyc
	}
	return out, nil
}

func (s *AuthService) IsLDAPEnabled() bool {
	return s.ldapService.Enabled()
}

// CreateAdminIfNotExists creates or promotes the bootstrap admin when an email
// and password are configured.
func (s *AuthService) CreateAdminIfNotExists(email, password, firstName, lastName string) (*models.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, false, nil
	}
	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if err == nil {
		if user.Role != models.RoleAdmin {
			if err := s.db.Model(&user).Update("role", models.RoleAdmin).Error; err != nil {
				return nil, false, err
			}
			user.Role = models.RoleAdmin
		}
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	user = models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstNonEmpty(firstName, "Admin"),
		LastName:     firstNonEmpty(lastName, "User"),
		Role:         models.RoleAdmin,
		AuthType:     models.AuthTypeLocal,
		IsActive:     true,
		IsVerified:   true,
	}
	if err := s.db.Transaction(func(tx *gorm.DB) error { return createAccount(tx, &user, "") }); err != nil {
		return nil, false, err
	}
	return &user, true, nil
}
