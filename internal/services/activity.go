package services

import (
	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// logActivity appends an audit row using tx so it commits with the change it describes.
func logActivity(tx *gorm.DB, actor Actor, action, entityType string, entityID *uuid.UUID, oldValues, newValues map[string]interface{}) error {
	entry := models.ActivityLog{
		UserID:     actor.userRef(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	return tx.Create(&entry).Error
}

type ActivityService struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

type ActivityListRequest struct {
	Action     string `form:"action"`
	EntityType string `form:"entity_type"`
	UserID     string `form:"user_id"`
}

// List returns audit rows newest first.
func (s *ActivityService) List(req *ActivityListRequest, p pagination.Params) ([]models.ActivityLog, pagination.Meta, error) {
	query := s.db.Model(&models.ActivityLog{})
	if req.Action != "" {
		query = query.Where("action = ?", req.Action)
	}
	if req.EntityType != "" {
		query = query.Where("entity_type = ?", req.EntityType)
	}
	if req.UserID != "" {
		if id, err := uuid.Parse(req.UserID); err == nil {
			query = query.Where("user_id = ?", id)
		}
	}
	return pagination.Paginate[models.ActivityLog](query, p,
		pagination.OrderBy("created_at DESC"), pagination.Preload("User"))
}
