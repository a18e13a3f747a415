package handlers

import (
	"fmt"
	"net/http"

	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminService        *services.AdminService
	notificationService *services.NotificationService
}

func NewAdminHandler(adminService *services.AdminService, notificationService *services.NotificationService) *AdminHandler {
	return &AdminHandler{
		adminService:        adminService,
		notificationService: notificationService,
	}
}

// Dashboard
// GET /api/admin/dashboard
func (h *AdminHandler) Dashboard(c *gin.Context) {
	d, err := h.adminService.Dashboard()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ListUsers returns users annotated with project and KYC counts
// GET /api/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var req services.UserListRequest
	if !bindQuery(c, &req) {
		return
	}

	users, meta, err := h.adminService.Users(&req, pagination.FromQuery(c, pagination.DefaultPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, users, meta)
}

// GetUser
// GET /api/admin/users/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	detail, err := h.adminService.User(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// UpdateUserStatus activates or deactivates an account
// PUT /api/admin/users/:id/status
func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.AdminUserStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.adminService.UpdateUserStatus(actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	state := "deactivated"
	if user.IsActive {
		state = "activated"
	}
	response.OK(c, gin.H{"message": fmt.Sprintf("User %s successfully", state), "user": user})
}

// UpdateVerification records a KYC review decision
// PUT /api/admin/users/:id/verification
func (h *AdminHandler) UpdateVerification(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.VerificationDecisionRequest
	if !bindJSON(c, &req) {
		return
	}

	kyc, err := h.adminService.UpdateVerification(actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"message":      "Verification status updated to " + kyc.VerificationStatus,
		"verification": kyc,
	})
}

// ListProjectTypes returns all types, active or not
// GET /api/admin/project-types
func (h *AdminHandler) ListProjectTypes(c *gin.Context) {
	types, err := h.adminService.ProjectTypes()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"project_types": types})
}

// CreateProjectType
// POST /api/admin/project-types
func (h *AdminHandler) CreateProjectType(c *gin.Context) {
	var req services.ProjectTypeRequest
	if !bindJSON(c, &req) {
		return
	}

	pt, err := h.adminService.CreateProjectType(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "Project type created successfully", "project_type": pt})
}

// UpdateProjectType
// PUT /api/admin/project-types/:id
func (h *AdminHandler) UpdateProjectType(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.ProjectTypeRequest
	if !bindJSON(c, &req) {
		return
	}

	pt, err := h.adminService.UpdateProjectType(actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Project type updated successfully", "project_type": pt})
}

// Cleanup purges read notifications on demand
// POST /api/admin/system/cleanup
func (h *AdminHandler) Cleanup(c *gin.Context) {
	var req services.CleanupRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	n, err := h.adminService.Cleanup(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"message":       fmt.Sprintf("Cleaned up %d old notifications", n),
		"deleted_count": n,
	})
}

// Broadcast
// POST /api/admin/system/broadcast
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req services.BroadcastRequest
	if !bindJSON(c, &req) {
		return
	}

	n, err := h.notificationService.Broadcast(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"message":          fmt.Sprintf("Broadcast sent to %d users", n),
		"recipients_count": n,
	})
}
