package handlers

import (
	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

const activityLogsPerPage = 50

type ActivityLogHandler struct {
	activityService *services.ActivityService
}

func NewActivityLogHandler(activityService *services.ActivityService) *ActivityLogHandler {
	return &ActivityLogHandler{activityService: activityService}
}

// List returns the audit trail, newest first
// GET /api/admin/activity-logs
func (h *ActivityLogHandler) List(c *gin.Context) {
	var req services.ActivityListRequest
	if !bindQuery(c, &req) {
		return
	}

	logs, meta, err := h.activityService.List(&req, pagination.FromQuery(c, activityLogsPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, logs, meta)
}
