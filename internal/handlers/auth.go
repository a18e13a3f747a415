package handlers

import (
	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService    *services.AuthService
	publishableKey string
}

func NewAuthHandler(authService *services.AuthService, paymentCfg *config.PaymentConfig) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		publishableKey: paymentCfg.StripePublishableKey,
	}
}

// Register creates a client account
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Register(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	body := gin.H{
		"message":       "User registered successfully",
		"user":          res.User,
		"access_token":  res.Tokens.AccessToken,
		"refresh_token": res.Tokens.RefreshToken,
	}
	if res.GeneratedPassword != "" {
		body["auto_generated_password"] = res.GeneratedPassword
	}
	response.Created(c, body)
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Login(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{
		"message":       "Login successful",
		"user":          res.User,
		"access_token":  res.Tokens.AccessToken,
		"refresh_token": res.Tokens.RefreshToken,
		"session_token": res.Tokens.RefreshToken,
		"expires_at":    res.Tokens.ExpiresAt,
	})
}

// Refresh rotates the session and issues new tokens
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Refresh(actorFrom(c), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{
		"user":          res.User,
		"access_token":  res.Tokens.AccessToken,
		"refresh_token": res.Tokens.RefreshToken,
		"session_token": res.Tokens.RefreshToken,
		"expires_at":    res.Tokens.ExpiresAt,
	})
}

// Logout ends the session named in the body, if any
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		SessionToken string `json:"session_token"`
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req)
	token := req.SessionToken
	if token == "" {
		token = req.RefreshToken
	}

	if err := h.authService.Logout(token); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Logout successful")
}

// ForgotPassword always answers with the same message
// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ForgotPassword(req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "If the email exists, a reset link has been sent")
}

// ResetPassword sets a new password from a reset token
// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req services.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ResetPassword(actorFrom(c), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Password reset successful")
}

// VerifyEmail confirms the email address
// POST /api/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if _, err := h.authService.VerifyEmail(req.Token); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Email verified successfully")
}

// ChangePassword
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.ChangePassword(actorFrom(c), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Password changed successfully")
}

// Me returns the current logged-in user
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	res, err := h.authService.Me(actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	var identity gin.H
	if res.Identity != nil {
		identity = gin.H{
			"status":      res.Identity.VerificationStatus,
			"verified_at": res.Identity.VerifiedAt,
		}
	}
	response.OK(c, gin.H{
		"user":                  res.User,
		"profile":               res.Profile,
		"identity_verification": identity,
	})
}

// Config returns what the login page needs to know
// GET /api/auth/config
func (h *AuthHandler) Config(c *gin.Context) {
	response.OK(c, gin.H{
		"ldap_enabled":           h.authService.IsLDAPEnabled(),
		"stripe_publishable_key": h.publishableKey,
	})
}
