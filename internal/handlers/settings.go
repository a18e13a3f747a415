package handlers

import (
	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

// SystemConfigHandler exposes the admin-tunable business settings.
type SystemConfigHandler struct {
	adminService *services.AdminService
}

func NewSystemConfigHandler(adminService *services.AdminService) *SystemConfigHandler {
	return &SystemConfigHandler{adminService: adminService}
}

// GET /api/admin/settings
func (h *SystemConfigHandler) GetSettings(c *gin.Context) {
	response.OK(c, gin.H{"settings": h.adminService.Settings()})
}

// PUT /api/admin/settings
func (h *SystemConfigHandler) UpdateSettings(c *gin.Context) {
	var req services.UpdateSettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	settings, err := h.adminService.UpdateSettings(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Settings updated successfully", "settings": settings})
}

// GET /api/admin/holiday-countries
func (h *SystemConfigHandler) HolidayCountries(c *gin.Context) {
	response.OK(c, gin.H{"countries": h.adminService.HolidayCountries()})
}
