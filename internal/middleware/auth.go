package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ContextUserID = logger.UserIDKey
	ContextEmail  = "email"
	ContextRole   = "role"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
	if !found || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}

// authenticate resolves the caller's claims or the message explaining why
// the request is rejected.
func authenticate(c *gin.Context) (*utils.Claims, string) {
	if c.GetHeader("Authorization") == "" {
		return nil, "authorization header required"
	}
	raw, ok := BearerToken(c)
	if !ok {
		return nil, "invalid authorization header format"
	}
	claims, err := utils.ParseToken(raw)
	if err != nil {
		return nil, "invalid or expired token"
	}
	return claims, ""
}

func deny(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, response.ErrorBody{Error: msg})
}

var errAccountUnavailable = response.NewUnauthorized("account is inactive or no longer exists")

// LoadPrincipal re-reads the token's subject. Account changes apply to tokens
// that are still within their lifetime.
func LoadPrincipal(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).
		Select("id", "email", "role", "is_active").
		Where("id = ?", id).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errAccountUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("load principal: %w", err)
	}
	if !user.IsActive {
		return nil, errAccountUnavailable
	}
	return &user, nil
}

// AuthRequired rejects requests without a valid access token for an active
// user. The role exposed to later handlers is the stored one, not the claim.
func AuthRequired(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, problem := authenticate(c)
		if claims == nil {
			deny(c, http.StatusUnauthorized, problem)
			return
		}
		user, err := LoadPrincipal(c.Request.Context(), db, claims.UserID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextUserID, user.ID)
		c.Set(ContextEmail, user.Email)
		c.Set(ContextRole, user.Role)
		c.Next()
	}
}

// AdminRequired is a middleware that checks for admin role
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != models.RoleAdmin {
			deny(c, http.StatusForbidden, "admin access required")
			return
		}
		c.Next()
	}
}

// RoleRequired admits callers holding any of the given roles.
func RoleRequired(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[GetRole(c)] {
			deny(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user's ID, or uuid.Nil.
func GetUserID(c *gin.Context) uuid.UUID {
	id, _ := c.Value(ContextUserID).(uuid.UUID)
	return id
}

func GetEmail(c *gin.Context) string { return c.GetString(ContextEmail) }

func GetRole(c *gin.Context) string { return c.GetString(ContextRole) }
