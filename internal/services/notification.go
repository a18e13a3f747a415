package services

import (
	"time"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationInput describes an in-app notification before it is stored.
type NotificationInput struct {
	Title      string
	Message    string
	Type       string
	EntityType string
	EntityID   *uuid.UUID
	ActionURL  string
}

func (in NotificationInput) forUser(userID uuid.UUID) models.Notification {
	return models.Notification{
		UserID:            userID,
		Title:             in.Title,
		Message:           in.Message,
		Type:              in.Type,
		RelatedEntityType: in.EntityType,
		RelatedEntityID:   in.EntityID,
		ActionURL:         in.ActionURL,
	}
}

// NotificationService stores in-app notifications and pushes them to open
// event streams.
type NotificationService struct {
	db  *gorm.DB
	hub *SSEHub
}

func NewNotificationService(db *gorm.DB, hub *SSEHub) *NotificationService {
	return &NotificationService{db: db, hub: hub}
}

func (s *NotificationService) push(n *models.Notification) {
	if s.hub == nil {
		return
	}
	s.hub.PublishTo(n.UserID, NotificationEvent{Type: "notification", Notification: n})
}

// Notify stores and pushes one notification. Failures are logged, not returned.
func (s *NotificationService) Notify(userID uuid.UUID, in NotificationInput) {
	n := in.forUser(userID)
	if err := s.db.Create(&n).Error; err != nil {
		logger.Warnf("[Notifications] create %s for %s failed: %v", in.Type, userID, err)
		return
	}
	s.push(&n)
}

// NotifyAdmins fans one notification out to every active admin.
func (s *NotificationService) NotifyAdmins(in NotificationInput) int {
	var adminIDs []uuid.UUID
	if err := s.db.Model(&models.User{}).
		Where("role = ? AND is_active = ?", models.RoleAdmin, true).
		Pluck("id", &adminIDs).Error; err != nil {
		logger.Warnf("[Notifications] load admins failed: %v", err)
		return 0
	}
	for _, id := range adminIDs {
		s.Notify(id, in)
	}
	return len(adminIDs)
}

type BroadcastRequest struct {
	Title    string `json:"title" binding:"required"`
	Message  string `json:"message" binding:"required"`
	UserRole string `json:"user_role" binding:"omitempty,oneof=all client admin"`
	Type     string `json:"type"`
}

// Broadcast creates one notification per matching active user and a single
// activity entry, all in one transaction.
func (s *NotificationService) Broadcast(actor Actor, req *BroadcastRequest) (int, error) {
	if req.UserRole == "" {
		req.UserRole = "all"
	}
	if req.Type == "" {
		req.Type = "broadcast"
	}

	query := s.db.Model(&models.User{}).Where("is_active = ?", true)
	if req.UserRole != "all" {
		query = query.Where("role = ?", req.UserRole)
	}
	var userIDs []uuid.UUID
	if err := query.Pluck("id", &userIDs).Error; err != nil {
		return 0, err
	}

	in := NotificationInput{Title: req.Title, Message: req.Message, Type: req.Type}
	created := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		created = append(created, in.forUser(id))
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if len(created) > 0 {
			if err := tx.CreateInBatches(&created, 200).Error; err != nil {
				return err
			}
		}
		return logActivity(tx, actor, "system.broadcast", "system", nil, nil, map[string]interface{}{
			"title":            req.Title,
			"user_role":        req.UserRole,
			"recipients_count": len(created),
		})
	})
	if err != nil {
		return 0, err
	}

	for i := range created {
		s.push(&created[i])
	}
	return len(created), nil
}

type NotificationListRequest struct {
	UnreadOnly bool `form:"unread_only"`
}

func (s *NotificationService) List(userID uuid.UUID, req *NotificationListRequest, p pagination.Params) ([]models.Notification, pagination.Meta, error) {
	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if req.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	return pagination.Paginate[models.Notification](query, p, pagination.OrderBy("created_at DESC"))
}

// MarkRead marks a notification read; only its owner may do so.
func (s *NotificationService) MarkRead(actor Actor, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.First(&n, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Notification not found")
	}
	if n.UserID != actor.UserID {
		return nil, response.NewForbidden("Access denied")
	}
	if !n.IsRead {
		now := time.Now()
		if err := s.db.Model(&n).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
			return nil, err
		}
		n.IsRead = true
		n.ReadAt = &now
	}
	return &n, nil
}

type NotificationCounts struct {
	UnreadCount int64 `json:"unread_count"`
	Total       int64 `json:"total"`
	Read        int64 `json:"read"`
}

func (s *NotificationService) Counts(userID uuid.UUID) (*NotificationCounts, error) {
	var counts NotificationCounts
	base := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if err := base.Session(&gorm.Session{}).Count(&counts.Total).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("is_read = ?", false).Count(&counts.UnreadCount).Error; err != nil {
		return nil, err
	}
	counts.Read = counts.Total - counts.UnreadCount
	return &counts, nil
}

func (s *NotificationService) MarkAllRead(userID uuid.UUID) (int64, error) {
	res := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()})
	if res.Error != nil {
		return 0, res.Error
	}
	if s.hub != nil {
		zero := int64(0)
		s.hub.PublishTo(userID, NotificationEvent{Type: "unread_count", UnreadCount: &zero})
	}
	return res.RowsAffected, nil
}

// Purge deletes read notifications older than days.
func (s *NotificationService) Purge(days int) (int64, error) {
	if days < 1 {
		return 0, response.NewBadRequest("days must be at least 1")
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	res := s.db.Where("is_read = ? AND created_at < ?", true, cutoff).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
