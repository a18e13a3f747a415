package handlers

import (
	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile returns the caller's user and profile
// GET /api/users/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, profile, err := h.userService.Profile(actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"user": user, "profile": profile})
}

// UpdateProfile
// PUT /api/users/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req services.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, profile, err := h.userService.UpdateProfile(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Profile updated successfully", "user": user, "profile": profile})
}

// UploadAvatar replaces the caller's avatar
// POST /api/users/avatar
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		response.BadRequest(c, "No file provided")
		return
	}

	profile, err := h.userService.UploadAvatar(c.Request.Context(), actorFrom(c), fh)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Avatar uploaded successfully", "avatar_url": profile.AvatarURL, "profile": profile})
}

// SubmitIdentity uploads the three KYC images
// POST /api/users/identity-verification
func (h *UserHandler) SubmitIdentity(c *gin.Context) {
	docs := &services.IdentityDocuments{}
	docs.FrontID, _ = c.FormFile("front_id")
	docs.BackID, _ = c.FormFile("back_id")
	docs.Signature, _ = c.FormFile("signature")

	kyc, err := h.userService.SubmitIdentity(c.Request.Context(), actorFrom(c), docs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "Identity verification submitted successfully", "verification": kyc})
}

// GetIdentity returns the caller's verification or null
// GET /api/users/identity-verification
func (h *UserHandler) GetIdentity(c *gin.Context) {
	kyc, err := h.userService.Identity(actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"verification": kyc})
}

// List returns paginated users (admin)
// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	var req services.UserListRequest
	if !bindQuery(c, &req) {
		return
	}

	users, meta, err := h.userService.List(&req, pagination.FromQuery(c, pagination.DefaultPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, users, meta)
}

// GetByID (admin)
// GET /api/users/:id
func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.Get(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"user": user})
}

// UpdateStatus toggles activation, verification and role (admin)
// PUT /api/users/:id/status
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateUserStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.UpdateStatus(actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "User status updated successfully", "user": user})
}
